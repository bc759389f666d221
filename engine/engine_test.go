package engine

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"matchbook/domain/event"
	"matchbook/domain/orderbook"
	"matchbook/infra/queue"
	"matchbook/infra/sequence"
)

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Publish(ev event.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []event.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Kind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) trades() []event.TradeExecuted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.TradeExecuted
	for _, ev := range r.events {
		if ev.Kind == event.KindTradeExecuted {
			out = append(out, *ev.Trade)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

var epoch = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T, symbols ...string) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	e := New(Config{}, queue.New[event.Command](), rec, zaptest.NewLogger(t),
		WithClock(func() time.Time { return epoch }),
	)
	for _, s := range symbols {
		require.NoError(t, e.AddSymbol(s))
	}
	return e, rec
}

func newOrder(symbol string, side orderbook.Side, price float64, qty uint64) event.Command {
	return event.NewOrderCommand(&event.NewOrder{
		ClientID:      1,
		ClientOrderID: 1,
		Symbol:        symbol,
		Side:          side,
		Type:          orderbook.Limit,
		Quantity:      qty,
		Price:         price,
		TimeInForce:   orderbook.Day,
		Capacity:      orderbook.Agency,
		ReceivedAt:    epoch,
	})
}

func TestEngine_RestingBuyOnEmptyBook(t *testing.T) {
	e, rec := newTestEngine(t, "AAPL")

	require.NoError(t, e.Process(newOrder("AAPL", orderbook.Buy, 10.00, 100)))

	book, _ := e.Book("AAPL")
	assert.Equal(t, map[float64]uint64{10.00: 100}, book.AggregatedBids())
	assert.Empty(t, book.AggregatedAsks())
	assert.Equal(t, []event.Kind{event.KindOrderAccepted, event.KindBookSnapshot}, rec.kinds())

	acc := rec.events[0].Accepted.Order
	assert.Equal(t, uint64(1), acc.ID)
	assert.Equal(t, uint64(100), acc.Remaining)
	assert.Equal(t, orderbook.New, acc.Status)

	snap := rec.events[1].Snapshot
	assert.Equal(t, []orderbook.Level{{Price: 10.00, Quantity: 100}}, snap.Bids)
}

func TestEngine_PartialFillThenRest(t *testing.T) {
	e, rec := newTestEngine(t, "AAPL")
	require.NoError(t, e.Process(newOrder("AAPL", orderbook.Sell, 10.00, 50)))
	rec.reset()

	require.NoError(t, e.Process(newOrder("AAPL", orderbook.Buy, 10.00, 100)))

	assert.Equal(t,
		[]event.Kind{event.KindTradeExecuted, event.KindOrderAccepted, event.KindBookSnapshot},
		rec.kinds())

	tr := rec.trades()[0]
	assert.Equal(t, uint64(50), tr.Trade.Quantity)
	assert.Equal(t, 10.00, tr.Trade.Price)
	assert.Equal(t, uint64(2), tr.Trade.AggressiveOrderID)
	assert.Equal(t, uint64(1), tr.Trade.PassiveOrderID)
	assert.Equal(t, uint64(50), tr.Aggressive.Remaining)
	assert.Equal(t, orderbook.Filled, tr.Passive.Status)

	book, _ := e.Book("AAPL")
	assert.Empty(t, book.AggregatedAsks())
	assert.False(t, book.Contains(1))
	assert.Equal(t, map[float64]uint64{10.00: 50}, book.AggregatedBids())

	acc := rec.events[1].Accepted.Order
	assert.Equal(t, orderbook.PartiallyFilled, acc.Status)
	assert.Equal(t, uint64(50), acc.Filled)
}

func TestEngine_SweepsLevelsAtPassivePrices(t *testing.T) {
	e, rec := newTestEngine(t, "AAPL")
	require.NoError(t, e.Process(newOrder("AAPL", orderbook.Buy, 10.00, 20)))
	require.NoError(t, e.Process(newOrder("AAPL", orderbook.Buy, 9.80, 40)))
	rec.reset()

	require.NoError(t, e.Process(newOrder("AAPL", orderbook.Sell, 9.50, 30)))

	trades := rec.trades()
	require.Len(t, trades, 2)
	assert.Equal(t, uint64(20), trades[0].Trade.Quantity)
	assert.Equal(t, 10.00, trades[0].Trade.Price)
	assert.Equal(t, uint64(10), trades[1].Trade.Quantity)
	assert.Equal(t, 9.80, trades[1].Trade.Price)

	assert.Equal(t,
		[]event.Kind{event.KindTradeExecuted, event.KindTradeExecuted, event.KindBookSnapshot},
		rec.kinds(), "fully filled aggressor is not accepted into the book")

	book, _ := e.Book("AAPL")
	assert.Equal(t, map[float64]uint64{9.80: 30}, book.AggregatedBids())
	assert.Empty(t, book.AggregatedAsks())
	assert.Equal(t, 1, book.Len())
}

func TestEngine_TradeSnapshotsAreFrozen(t *testing.T) {
	e, rec := newTestEngine(t, "AAPL")
	require.NoError(t, e.Process(newOrder("AAPL", orderbook.Sell, 10, 100)))
	require.NoError(t, e.Process(newOrder("AAPL", orderbook.Buy, 10, 30)))
	require.NoError(t, e.Process(newOrder("AAPL", orderbook.Buy, 10, 30)))

	trades := rec.trades()
	require.Len(t, trades, 2)
	assert.Equal(t, uint64(70), trades[0].Passive.Remaining)
	assert.Equal(t, uint64(40), trades[1].Passive.Remaining)
	assert.Equal(t, orderbook.PartiallyFilled, trades[0].Passive.Status)
}

func TestEngine_TimePriorityWithinLevel(t *testing.T) {
	e, rec := newTestEngine(t, "MSFT")
	require.NoError(t, e.Process(newOrder("MSFT", orderbook.Sell, 300, 10)))
	require.NoError(t, e.Process(newOrder("MSFT", orderbook.Sell, 300, 10)))
	require.NoError(t, e.Process(newOrder("MSFT", orderbook.Sell, 299, 10)))
	rec.reset()

	require.NoError(t, e.Process(newOrder("MSFT", orderbook.Buy, 300, 25)))

	trades := rec.trades()
	require.Len(t, trades, 3)
	assert.Equal(t, uint64(3), trades[0].Trade.PassiveOrderID, "better price first")
	assert.Equal(t, uint64(1), trades[1].Trade.PassiveOrderID, "then earliest arrival")
	assert.Equal(t, uint64(2), trades[2].Trade.PassiveOrderID)
	assert.Equal(t, uint64(5), trades[2].Trade.Quantity)
}

func TestEngine_NoCrossLeavesBothSides(t *testing.T) {
	e, rec := newTestEngine(t, "GOOG")
	require.NoError(t, e.Process(newOrder("GOOG", orderbook.Buy, 99.99, 5)))
	require.NoError(t, e.Process(newOrder("GOOG", orderbook.Sell, 100.00, 5)))

	assert.Empty(t, rec.trades())
	book, _ := e.Book("GOOG")
	bid, _ := book.TopBid()
	ask, _ := book.TopAsk()
	assert.Less(t, bid.Price, ask.Price)
}

func TestEngine_Rejections(t *testing.T) {
	e, rec := newTestEngine(t, "AAPL")

	err := e.Process(newOrder("ZZZZ", orderbook.Buy, 10, 1))
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	err = e.Process(event.Command{Kind: event.CommandNewOrder})
	assert.ErrorIs(t, err, ErrNilOrder)

	err = e.Process(event.Command{Kind: event.CommandKind(99)})
	assert.ErrorIs(t, err, ErrUnknownCommand)

	assert.Empty(t, rec.kinds())
	book, _ := e.Book("AAPL")
	assert.Zero(t, book.Len())

	// rejected commands do not consume order ids
	require.NoError(t, e.Process(newOrder("AAPL", orderbook.Buy, 10, 1)))
	assert.Equal(t, uint64(1), rec.events[0].Accepted.Order.ID)
}

func TestEngine_RejectsNonFinitePrices(t *testing.T) {
	e, rec := newTestEngine(t, "AAPL")
	require.NoError(t, e.Process(newOrder("AAPL", orderbook.Sell, 10, 5)))
	rec.reset()

	for _, px := range []float64{math.Inf(1), math.Inf(-1), math.NaN(), 0, -1} {
		err := e.Process(newOrder("AAPL", orderbook.Buy, px, 3))
		assert.ErrorIs(t, err, ErrInvalidPrice, "price %v", px)
		err = e.Process(newOrder("AAPL", orderbook.Sell, px, 3))
		assert.ErrorIs(t, err, ErrInvalidPrice, "price %v", px)
	}
	assert.Empty(t, rec.kinds())

	err := e.Process(newOrder("AAPL", orderbook.Buy, 10, orderbook.MaxQuantity+1))
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	// the book still matches normally and no ids were spent
	require.NoError(t, e.Process(newOrder("AAPL", orderbook.Buy, 12, 5)))
	trades := rec.trades()
	require.Len(t, trades, 1)
	assert.Equal(t, 10.0, trades[0].Trade.Price)
	assert.Equal(t, uint64(2), trades[0].Trade.AggressiveOrderID)

	book, _ := e.Book("AAPL")
	assert.Zero(t, book.Len())
}

func TestEngine_RunSurvivesNonFinitePrice(t *testing.T) {
	e, rec := newTestEngine(t, "AAPL")
	for _, cmd := range []event.Command{
		newOrder("AAPL", orderbook.Sell, math.Inf(-1), 5),
		newOrder("AAPL", orderbook.Buy, math.NaN(), 5),
		newOrder("AAPL", orderbook.Sell, 10, 5),
		newOrder("AAPL", orderbook.Buy, 10, 5),
	} {
		require.NoError(t, e.commands.Push(cmd))
	}
	e.commands.Shutdown()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not drain")
	}

	require.Len(t, rec.trades(), 1)
	book, _ := e.Book("AAPL")
	assert.Zero(t, book.Len())
}

func TestEngine_DuplicateSymbol(t *testing.T) {
	e, _ := newTestEngine(t, "AAPL")
	assert.ErrorIs(t, e.AddSymbol("AAPL"), ErrSymbolExists)
	assert.Equal(t, []string{"AAPL"}, e.Symbols())
}

func TestEngine_ZeroQuantityIsNotRested(t *testing.T) {
	e, rec := newTestEngine(t, "AAPL")
	require.NoError(t, e.Process(newOrder("AAPL", orderbook.Sell, 10, 5)))
	rec.reset()

	require.NoError(t, e.Process(newOrder("AAPL", orderbook.Buy, 11, 0)))

	assert.Equal(t, []event.Kind{event.KindBookSnapshot}, rec.kinds())
	book, _ := e.Book("AAPL")
	assert.Equal(t, 1, book.Len())
}

func TestEngine_InjectedSequencers(t *testing.T) {
	rec := &recorder{}
	e := New(Config{SnapshotDepth: 1}, queue.New[event.Command](), rec, nil,
		WithOrderIDs(sequence.New(1000)),
		WithTradeIDs(sequence.New(500)),
		WithEventIDs(sequence.New(70)),
	)
	require.NoError(t, e.AddSymbol("AMZN"))
	require.NoError(t, e.Process(newOrder("AMZN", orderbook.Sell, 180, 1)))
	require.NoError(t, e.Process(newOrder("AMZN", orderbook.Sell, 181, 1)))
	require.NoError(t, e.Process(newOrder("AMZN", orderbook.Buy, 180, 1)))

	tr := rec.trades()[0]
	assert.Equal(t, uint64(501), tr.Trade.ID)
	assert.Equal(t, uint64(1003), tr.Trade.AggressiveOrderID)
	assert.Equal(t, uint64(1001), tr.Trade.PassiveOrderID)

	for i, ev := range rec.events {
		assert.Equal(t, uint64(71+i), ev.Seq)
		require.NoError(t, ev.Validate())
	}
	last := rec.events[len(rec.events)-1].Snapshot
	assert.Len(t, last.Asks, 1, "snapshot depth honoured")
}

func TestEngine_RunDrainsQueueThenStops(t *testing.T) {
	e, rec := newTestEngine(t, "AAPL", "MSFT")
	q := e.commands

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	require.NoError(t, q.Push(newOrder("AAPL", orderbook.Sell, 10, 10)))
	require.NoError(t, q.Push(newOrder("NOPE", orderbook.Sell, 10, 10)))
	require.NoError(t, q.Push(newOrder("MSFT", orderbook.Buy, 300, 1)))
	require.NoError(t, q.Push(newOrder("AAPL", orderbook.Buy, 10, 4)))
	q.Shutdown()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after shutdown")
	}

	assert.Len(t, rec.trades(), 1)
	aapl, _ := e.Book("AAPL")
	assert.Equal(t, map[float64]uint64{10: 6}, aapl.AggregatedAsks())
	msft, _ := e.Book("MSFT")
	assert.Equal(t, 1, msft.Len())
}
