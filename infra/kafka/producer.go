// Package kafka publishes market-data documents with kafka-go.
package kafka

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
)

type Config struct {
	Brokers []string
	Topic   string
	// WriteTimeout bounds one Send. Zero uses kafka-go's default.
	WriteTimeout time.Duration
}

// Producer writes messages keyed by symbol. The hash balancer keeps every
// symbol on one partition so consumers see its snapshots in order.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg Config) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: no topic configured")
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			Async:                  false,
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           cfg.WriteTimeout,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

func (p *Producer) Send(ctx context.Context, key, value []byte) error {
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value}); err != nil {
		return errors.Wrapf(err, "kafka write to %s", p.writer.Topic)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
