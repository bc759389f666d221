// Package marketdata publishes the latest book snapshot of each update to
// a file, to websocket subscribers and optionally to Kafka.
package marketdata

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"matchbook/domain/event"
	"matchbook/infra/logging"
	"matchbook/infra/metrics"
	"matchbook/infra/queue"
)

// Sink is an external feed, such as a Kafka topic keyed by symbol.
type Sink interface {
	Send(ctx context.Context, key, value []byte) error
}

type Options struct {
	Hub         *Hub
	Sink        Sink
	SendTimeout time.Duration
}

type Gateway struct {
	channel *queue.Latest[event.BookSnapshot]
	opts    Options
	log     *zap.Logger

	file *os.File
	out  *bufio.Writer
}

// Open creates or truncates the output file at path.
func Open(path string, channel *queue.Latest[event.BookSnapshot], opts Options, logger *zap.Logger) (*Gateway, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create market data dir for %s", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open market data file %s", path)
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 2 * time.Second
	}
	return &Gateway{
		channel: channel,
		opts:    opts,
		log:     logging.OrNop(logger).Named("marketdata"),
		file:    f,
		out:     bufio.NewWriter(f),
	}, nil
}

// Run publishes snapshots until the channel is shut down. ctx only bounds
// sink sends.
func (g *Gateway) Run(ctx context.Context) error {
	g.log.Info("waiting for market data")

	for {
		snap, ok := g.channel.WaitForUpdate()
		if !ok {
			break
		}
		g.publish(ctx, snap)
	}

	g.log.Info("market data gateway has finished consuming")
	return g.Close()
}

func (g *Gateway) publish(ctx context.Context, snap event.BookSnapshot) {
	doc, err := Render(snap)
	if err != nil {
		g.log.Error("render snapshot", zap.String("symbol", snap.Symbol), zap.Error(err))
		return
	}
	metrics.SnapshotsPublished.Inc()

	if _, err := g.out.Write(append(doc, '\n')); err == nil {
		err = g.out.Flush()
	}
	if err != nil {
		g.log.Error("write snapshot", zap.String("symbol", snap.Symbol), zap.Error(err))
	}

	if g.opts.Hub != nil {
		g.opts.Hub.Broadcast(snap.Symbol, doc)
	}

	if g.opts.Sink != nil && ctx.Err() == nil {
		sendCtx, cancel := context.WithTimeout(ctx, g.opts.SendTimeout)
		err := g.opts.Sink.Send(sendCtx, []byte(snap.Symbol), doc)
		cancel()
		if err != nil {
			g.log.Warn("market data sink send failed", zap.String("symbol", snap.Symbol), zap.Error(err))
		}
	}
}

func (g *Gateway) Close() error {
	if g.file == nil {
		return nil
	}
	err := g.out.Flush()
	if cerr := g.file.Close(); err == nil {
		err = cerr
	}
	g.file = nil
	return err
}
