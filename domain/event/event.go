package event

import (
	"time"

	"github.com/cockroachdb/errors"

	"matchbook/domain/orderbook"
)

type Kind uint8

const (
	KindOrderAccepted Kind = iota + 1
	KindTradeExecuted
	KindBookSnapshot
)

func (k Kind) String() string {
	switch k {
	case KindOrderAccepted:
		return "OrderAccepted"
	case KindTradeExecuted:
		return "TradeExecuted"
	case KindBookSnapshot:
		return "BookSnapshot"
	default:
		return "UnknownEvent"
	}
}

var ErrMalformed = errors.New("event: payload does not match kind")

// OrderAccepted reports an order that came to rest in the book.
type OrderAccepted struct {
	Order orderbook.OrderView
}

// TradeExecuted reports one fill together with both participants as they
// stood right after it.
type TradeExecuted struct {
	Trade      orderbook.Trade
	Aggressive orderbook.OrderView
	Passive    orderbook.OrderView
}

// BookSnapshot is the top of one book, best level first on each side.
type BookSnapshot struct {
	Symbol string
	Time   time.Time
	Bids   []orderbook.Level
	Asks   []orderbook.Level
}

// Event is an immutable fact emitted by the engine. Payloads are value
// copies taken at emission time; nothing in an event aliases live book
// state.
type Event struct {
	Kind Kind
	Seq  uint64
	Time time.Time

	Accepted *OrderAccepted
	Trade    *TradeExecuted
	Snapshot *BookSnapshot
}

func NewOrderAccepted(seq uint64, at time.Time, o orderbook.OrderView) Event {
	return Event{Kind: KindOrderAccepted, Seq: seq, Time: at, Accepted: &OrderAccepted{Order: o}}
}

func NewTradeExecuted(seq uint64, at time.Time, tr orderbook.Trade, aggressive, passive orderbook.OrderView) Event {
	return Event{
		Kind: KindTradeExecuted,
		Seq:  seq,
		Time: at,
		Trade: &TradeExecuted{
			Trade:      tr,
			Aggressive: aggressive,
			Passive:    passive,
		},
	}
}

func NewBookSnapshot(seq uint64, at time.Time, symbol string, d orderbook.Depth) Event {
	return Event{
		Kind: KindBookSnapshot,
		Seq:  seq,
		Time: at,
		Snapshot: &BookSnapshot{
			Symbol: symbol,
			Time:   at,
			Bids:   append([]orderbook.Level(nil), d.Bids...),
			Asks:   append([]orderbook.Level(nil), d.Asks...),
		},
	}
}

// Validate checks that exactly the payload named by Kind is present.
func (e Event) Validate() error {
	set := 0
	for _, p := range []bool{e.Accepted != nil, e.Trade != nil, e.Snapshot != nil} {
		if p {
			set++
		}
	}
	ok := set == 1
	switch e.Kind {
	case KindOrderAccepted:
		ok = ok && e.Accepted != nil
	case KindTradeExecuted:
		ok = ok && e.Trade != nil
	case KindBookSnapshot:
		ok = ok && e.Snapshot != nil
	default:
		ok = false
	}
	if !ok {
		return errors.Wrapf(ErrMalformed, "seq %d kind %s", e.Seq, e.Kind)
	}
	return nil
}

// Symbol returns the instrument the event is about.
func (e Event) Symbol() string {
	switch e.Kind {
	case KindOrderAccepted:
		return e.Accepted.Order.Symbol
	case KindTradeExecuted:
		return e.Trade.Trade.Symbol
	case KindBookSnapshot:
		return e.Snapshot.Symbol
	}
	return ""
}

// TimeLayout renders event times in local time with nanoseconds.
const TimeLayout = "2006-01-02 15:04:05.000000000"

func FormatTime(t time.Time) string {
	return t.Local().Format(TimeLayout)
}
