package orderbook

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// Terms are the immutable parts of an order as received from a client.
type Terms struct {
	ClientID      uint64
	ClientOrderID uint64
	Symbol        string
	Side          Side
	Type          OrderType
	Quantity      uint64
	Price         float64
	TimeInForce   TimeInForce
	Capacity      Capacity
	ReceivedAt    time.Time
}

// Order is a single client order with its fill state.
//
// Only the engine goroutine mutates an order, and only through ApplyFill.
// Everything that leaves the engine gets a Snapshot, never the pointer.
type Order struct {
	ID uint64
	Terms

	filled    uint64
	remaining uint64
	notional  decimal.Decimal
	status    Status
}

func NewOrder(id uint64, t Terms) *Order {
	o := &Order{}
	o.Reset(id, t)
	return o
}

// Reset reinitializes a recycled order as if built by NewOrder.
func (o *Order) Reset(id uint64, t Terms) {
	*o = Order{
		ID:        id,
		Terms:     t,
		remaining: t.Quantity,
		notional:  decimal.Zero,
		status:    New,
	}
}

func (o *Order) Filled() uint64            { return o.filled }
func (o *Order) Remaining() uint64         { return o.remaining }
func (o *Order) Notional() decimal.Decimal { return o.notional }
func (o *Order) Status() Status            { return o.status }
func (o *Order) IsFilled() bool            { return o.status == Filled }

// AveragePrice is filled notional over filled quantity, zero before the
// first fill.
func (o *Order) AveragePrice() decimal.Decimal {
	if o.filled == 0 {
		return decimal.Zero
	}
	return o.notional.Div(decimal.NewFromUint64(o.filled))
}

// ApplyFill records qty executed at price. A fill larger than what is left,
// or an empty fill, is rejected without touching the order.
func (o *Order) ApplyFill(qty uint64, price float64) error {
	if qty == 0 || qty > o.remaining {
		return errors.Wrapf(ErrInvalidFill, "order %d: fill %d, remaining %d", o.ID, qty, o.remaining)
	}
	if !ValidPrice(price) {
		return errors.Wrapf(ErrInvalidPrice, "order %d: fill at %v", o.ID, price)
	}

	o.remaining -= qty
	o.filled += qty
	o.notional = o.notional.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromUint64(qty)))

	if o.remaining == 0 {
		o.status = Filled
	} else {
		o.status = PartiallyFilled
	}
	return nil
}

// OrderView is a point-in-time copy of an order.
type OrderView struct {
	ID uint64
	Terms

	Filled       uint64
	Remaining    uint64
	Notional     decimal.Decimal
	AveragePrice decimal.Decimal
	Status       Status
}

func (o *Order) Snapshot() OrderView {
	return OrderView{
		ID:           o.ID,
		Terms:        o.Terms,
		Filled:       o.filled,
		Remaining:    o.remaining,
		Notional:     o.notional,
		AveragePrice: o.AveragePrice(),
		Status:       o.status,
	}
}
