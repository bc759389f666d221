// Package inbound turns raw client FIX lines into engine commands.
//
// Every line is journaled before it is parsed, so the log holds exactly
// what clients sent, including messages that were then rejected.
package inbound

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"matchbook/domain/event"
	"matchbook/gateway/fix"
	"matchbook/infra/logging"
	"matchbook/infra/metrics"
	"matchbook/infra/queue"
	"matchbook/infra/wal/entry"
)

var (
	ErrEmpty       = errors.New("inbound: empty message")
	ErrUnsupported = errors.New("inbound: unsupported message type")
)

// Journal is the write-ahead log the gateway appends raw lines to.
type Journal interface {
	Append(t entry.RecordType, data []byte) (uint64, error)
}

type Gateway struct {
	journal  Journal
	commands *queue.Queue[event.Command]
	log      *zap.Logger
	now      func() time.Time
}

func New(journal Journal, commands *queue.Queue[event.Command], logger *zap.Logger) *Gateway {
	return &Gateway{
		journal:  journal,
		commands: commands,
		log:      logging.OrNop(logger).Named("inbound"),
		now:      time.Now,
	}
}

// Submit journals line, parses it and queues the resulting command. It
// returns the journal sequence of the line, which is also set when parsing
// fails afterwards.
func (g *Gateway) Submit(ctx context.Context, line string, clientID uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if line == "" {
		metrics.InboundMessages.WithLabelValues("empty").Inc()
		return 0, ErrEmpty
	}
	received := g.now()

	seq, err := g.journal.Append(entry.RecordInbound, []byte(line))
	if err != nil {
		metrics.InboundMessages.WithLabelValues("journal_error").Inc()
		return 0, errors.Wrap(err, "journal inbound message")
	}

	cmd, err := g.decode(line, clientID, received)
	if err != nil {
		metrics.InboundMessages.WithLabelValues("invalid").Inc()
		g.log.Warn("invalid inbound message",
			zap.Uint64("seq", seq),
			zap.Uint64("client_id", clientID),
			zap.Error(err),
		)
		return seq, err
	}
	cmd.NewOrder.InboundSeq = seq

	if err := g.commands.Push(cmd); err != nil {
		metrics.InboundMessages.WithLabelValues("closed").Inc()
		return seq, err
	}
	metrics.InboundMessages.WithLabelValues("accepted").Inc()
	metrics.QueueDepth.WithLabelValues("commands").Set(float64(g.commands.Len()))
	return seq, nil
}

func (g *Gateway) decode(line string, clientID uint64, received time.Time) (event.Command, error) {
	msg, err := fix.Parse(line)
	if err != nil {
		return event.Command{}, err
	}
	if t := msg.MsgType(); t != "" && t != "D" {
		return event.Command{}, errors.Wrapf(ErrUnsupported, "35=%s", t)
	}
	n, err := msg.NewOrder(clientID, received)
	if err != nil {
		return event.Command{}, err
	}
	return event.NewOrderCommand(n), nil
}
