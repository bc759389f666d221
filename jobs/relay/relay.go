// Package relay ships outbox records to Kafka until they are acknowledged.
package relay

import (
	"context"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"matchbook/infra/logging"
	"matchbook/infra/metrics"
	"matchbook/infra/outbox"
)

const (
	DefaultInterval   = 250 * time.Millisecond
	DefaultMaxRetries = 5
)

type Config struct {
	Topic      string
	Interval   time.Duration
	MaxRetries uint32
	// PruneAcked deletes acknowledged records after every pass.
	PruneAcked bool
}

type Relay struct {
	box      *outbox.Outbox
	producer sarama.SyncProducer
	cfg      Config
	log      *zap.Logger
}

// NewSyncProducer builds the producer the relay expects: acks from all
// in-sync replicas and successes returned.
func NewSyncProducer(brokers []string, clientID string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	return p, nil
}

func New(box *outbox.Outbox, producer sarama.SyncProducer, cfg Config, logger *zap.Logger) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &Relay{
		box:      box,
		producer: producer,
		cfg:      cfg,
		log:      logging.OrNop(logger).Named("relay"),
	}
}

// Run relays on every tick until ctx is done, then makes one last pass.
func (r *Relay) Run(ctx context.Context) error {
	r.log.Info("relay started", zap.String("topic", r.cfg.Topic), zap.Duration("interval", r.cfg.Interval))

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if _, err := r.Flush(); err != nil {
				r.log.Warn("final relay pass failed", zap.Error(err))
			}
			r.log.Info("relay stopped")
			return nil

		case <-ticker.C:
			if _, err := r.Flush(); err != nil {
				r.log.Warn("relay pass failed", zap.Error(err))
			}
		}
	}
}

// Flush sends every NEW and SENT record once and returns how many were
// acknowledged.
func (r *Relay) Flush() (int, error) {
	var pending []outbox.Record
	collect := func(rec outbox.Record) error {
		pending = append(pending, rec)
		return nil
	}
	// SENT means a previous attempt did not finish; send again.
	if err := r.box.ScanByState(outbox.StateSent, collect); err != nil {
		return 0, err
	}
	if err := r.box.ScanByState(outbox.StateNew, collect); err != nil {
		return 0, err
	}

	acked := 0
	for _, rec := range pending {
		ok, err := r.deliver(rec)
		if err != nil {
			return acked, err
		}
		if ok {
			acked++
		}
	}

	if r.cfg.PruneAcked && acked > 0 {
		if _, err := r.box.DeleteAcked(); err != nil {
			return acked, err
		}
	}
	return acked, nil
}

func (r *Relay) deliver(rec outbox.Record) (bool, error) {
	if err := r.box.Mark(rec.Seq, outbox.StateSent, rec.Retries); err != nil {
		return false, err
	}

	_, _, err := r.producer.SendMessage(&sarama.ProducerMessage{
		Topic: r.cfg.Topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(rec.Seq, 10)),
		Value: sarama.ByteEncoder(rec.Payload),
	})
	if err == nil {
		metrics.OutboxRelayed.WithLabelValues("acked").Inc()
		return true, r.box.Mark(rec.Seq, outbox.StateAcked, rec.Retries)
	}

	retries := rec.Retries + 1
	state := outbox.StateSent
	if retries >= r.cfg.MaxRetries {
		state = outbox.StateFailed
		metrics.OutboxRelayed.WithLabelValues("failed").Inc()
		r.log.Error("giving up on outbox record",
			zap.Uint64("seq", rec.Seq),
			zap.Uint32("retries", retries),
			zap.Error(err),
		)
	} else {
		metrics.OutboxRelayed.WithLabelValues("retry").Inc()
		r.log.Warn("kafka send failed", zap.Uint64("seq", rec.Seq), zap.Uint32("retries", retries), zap.Error(err))
	}
	return false, r.box.Mark(rec.Seq, state, retries)
}

func (r *Relay) Close() error {
	return r.producer.Close()
}
