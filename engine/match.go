package engine

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"matchbook/domain/event"
	"matchbook/domain/orderbook"
	"matchbook/infra/metrics"
)

func (e *Engine) processNewOrder(n *event.NewOrder) error {
	if n == nil {
		return ErrNilOrder
	}
	book, ok := e.books[n.Symbol]
	if !ok {
		return errors.Wrapf(ErrUnknownSymbol, "symbol %q", n.Symbol)
	}
	if !orderbook.ValidPrice(n.Price) {
		return errors.Wrapf(ErrInvalidPrice, "price %v", n.Price)
	}
	if n.Quantity > orderbook.MaxQuantity {
		return errors.Wrapf(ErrInvalidQuantity, "quantity %d", n.Quantity)
	}

	start := time.Now()
	defer func() { metrics.MatchLatency.Observe(time.Since(start).Seconds()) }()

	o := e.orders.Get()
	o.Reset(e.orderIDs.Next(), n.Terms())
	if book.Contains(o.ID) {
		id := o.ID
		e.orders.Put(o)
		return errors.Wrapf(orderbook.ErrDuplicateOrder, "order %d", id)
	}

	e.log.Debug("processing new order",
		zap.Uint64("order_id", o.ID),
		zap.String("symbol", o.Symbol),
		zap.Stringer("side", o.Side),
		zap.Float64("price", o.Price),
		zap.Uint64("qty", o.Quantity),
	)

	e.match(o, book)

	if o.Remaining() > 0 {
		if err := book.AddOrder(o); err != nil {
			e.orders.Put(o)
			return err
		}
		e.publish(event.NewOrderAccepted(e.eventIDs.Next(), e.now(), o.Snapshot()))
	} else {
		e.log.Debug("order not rested",
			zap.Uint64("order_id", o.ID),
			zap.Stringer("status", o.Status()),
			zap.String("avg_price", o.AveragePrice().String()),
		)
		e.orders.Put(o)
	}

	metrics.RestingOrders.WithLabelValues(book.Symbol()).Set(float64(book.Len()))
	e.publishSnapshot(book)

	if ce := e.log.Check(zap.DebugLevel, "book state"); ce != nil {
		d := book.Depth(0)
		ce.Write(zap.String("symbol", book.Symbol()), zap.Any("bids", d.Bids), zap.Any("asks", d.Asks))
	}
	return nil
}

// match fills aggr against the opposite side for as long as it crosses
// the top of book. Every fill executes at the passive order's price.
func (e *Engine) match(aggr *orderbook.Order, book *orderbook.OrderBook) {
	opposite := aggr.Side.Opposite()

	for aggr.Remaining() > 0 {
		passive, ok := book.Top(opposite)
		if !ok || !crosses(aggr, passive) {
			return
		}

		qty := min(aggr.Remaining(), passive.Remaining())
		price := passive.Price

		mustFill(aggr.ApplyFill(qty, price))
		_, err := book.ApplyFill(passive.ID, qty, price)
		mustFill(err)

		tr := orderbook.Trade{
			ID:                e.tradeIDs.Next(),
			AggressiveOrderID: aggr.ID,
			PassiveOrderID:    passive.ID,
			Symbol:            book.Symbol(),
			Price:             price,
			Quantity:          qty,
			ExecutedAt:        e.now(),
		}
		e.publish(event.NewTradeExecuted(e.eventIDs.Next(), tr.ExecutedAt, tr, aggr.Snapshot(), passive.Snapshot()))

		metrics.Trades.WithLabelValues(tr.Symbol).Inc()
		metrics.TradedQuantity.WithLabelValues(tr.Symbol).Add(float64(qty))
		e.log.Debug("trade executed",
			zap.Uint64("trade_id", tr.ID),
			zap.String("symbol", tr.Symbol),
			zap.Uint64("qty", qty),
			zap.Float64("price", price),
			zap.Uint64("aggressive_id", aggr.ID),
			zap.Uint64("passive_id", passive.ID),
			zap.Uint64("aggressive_remaining", aggr.Remaining()),
			zap.Uint64("passive_remaining", passive.Remaining()),
		)

		if passive.IsFilled() {
			if _, err := book.RemoveOrder(passive.ID); err != nil {
				panic(errors.NewAssertionErrorWithWrappedErrf(err, "filled passive order %d vanished", passive.ID))
			}
			e.orders.Put(passive)
		}
	}
}

// crosses reports whether aggr is marketable against the resting order.
func crosses(aggr, passive *orderbook.Order) bool {
	if aggr.Side == orderbook.Buy {
		return aggr.Price >= passive.Price
	}
	return aggr.Price <= passive.Price
}

// mustFill panics on a fill error. The fill size is the smaller of the two
// remaining quantities and both are positive, so an error is a bug.
func mustFill(err error) {
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "fill rejected during matching"))
	}
}
