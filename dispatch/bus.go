// Package dispatch routes engine events to their consumers.
package dispatch

import (
	"go.uber.org/zap"

	"matchbook/domain/event"
	"matchbook/infra/logging"
	"matchbook/infra/metrics"
	"matchbook/infra/queue"
)

// Bus fans engine events out by kind. Accepted and trade events go to the
// audit queue in order; book snapshots overwrite the market-data slot.
type Bus struct {
	events     *queue.Queue[event.Event]
	marketData *queue.Latest[event.BookSnapshot]
	log        *zap.Logger
}

func NewBus(events *queue.Queue[event.Event], marketData *queue.Latest[event.BookSnapshot], logger *zap.Logger) *Bus {
	return &Bus{
		events:     events,
		marketData: marketData,
		log:        logging.OrNop(logger).Named("dispatch"),
	}
}

// Publish never blocks the engine. Malformed or unroutable events are
// logged and dropped.
func (b *Bus) Publish(ev event.Event) {
	if err := ev.Validate(); err != nil {
		metrics.EventsDropped.WithLabelValues("malformed").Inc()
		b.log.Warn("dropping malformed event", zap.Uint64("seq", ev.Seq), zap.Error(err))
		return
	}

	switch ev.Kind {
	case event.KindOrderAccepted, event.KindTradeExecuted:
		if err := b.events.Push(ev); err != nil {
			metrics.EventsDropped.WithLabelValues("closed").Inc()
			b.log.Warn("event queue closed",
				zap.Uint64("seq", ev.Seq),
				zap.Stringer("kind", ev.Kind),
				zap.Error(err),
			)
			return
		}
		metrics.QueueDepth.WithLabelValues("events").Set(float64(b.events.Len()))

	case event.KindBookSnapshot:
		b.marketData.Update(*ev.Snapshot)

	default:
		metrics.EventsDropped.WithLabelValues("unroutable").Inc()
		b.log.Warn("unroutable event", zap.Uint64("seq", ev.Seq), zap.Stringer("kind", ev.Kind))
	}
}
