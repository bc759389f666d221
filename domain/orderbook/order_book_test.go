package orderbook

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderBook_AddBuildsLevels(t *testing.T) {
	book := NewOrderBook("AAPL")
	require.NoError(t, book.AddOrder(limit(1, Buy, 10.00, 100)))

	assert.Equal(t, 1, book.Len())
	assert.Equal(t, 1, book.BidLevels())
	assert.Equal(t, 0, book.AskLevels())
	assert.Equal(t, map[float64]uint64{10.00: 100}, book.AggregatedBids())

	top, ok := book.TopBid()
	require.True(t, ok)
	assert.Equal(t, uint64(1), top.ID)

	_, ok = book.TopAsk()
	assert.False(t, ok)
}

func TestOrderBook_DuplicateAndForeignOrders(t *testing.T) {
	book := NewOrderBook("AAPL")
	require.NoError(t, book.AddOrder(limit(1, Buy, 10, 100)))

	assert.ErrorIs(t, book.AddOrder(limit(1, Sell, 11, 5)), ErrDuplicateOrder)
	assert.ErrorIs(t, book.AddOrder(nil), ErrNilOrder)

	foreign := limit(2, Buy, 10, 1)
	foreign.Symbol = "MSFT"
	assert.ErrorIs(t, book.AddOrder(foreign), ErrSymbolMismatch)

	assert.Equal(t, 1, book.Len())
	assert.Equal(t, map[float64]uint64{10: 100}, book.AggregatedBids())
}

func TestOrderBook_PriceOrdering(t *testing.T) {
	book := NewOrderBook("AAPL")
	require.NoError(t, book.AddOrder(limit(1, Buy, 9.80, 10)))
	require.NoError(t, book.AddOrder(limit(2, Buy, 10.00, 20)))
	require.NoError(t, book.AddOrder(limit(3, Buy, 9.90, 30)))
	require.NoError(t, book.AddOrder(limit(4, Sell, 10.20, 1)))
	require.NoError(t, book.AddOrder(limit(5, Sell, 10.10, 2)))
	require.NoError(t, book.AddOrder(limit(6, Sell, 10.30, 3)))

	d := book.Depth(0)
	assert.Equal(t, []Level{{10.00, 20}, {9.90, 30}, {9.80, 10}}, d.Bids)
	assert.Equal(t, []Level{{10.10, 2}, {10.20, 1}, {10.30, 3}}, d.Asks)

	d = book.Depth(2)
	assert.Len(t, d.Bids, 2)
	assert.Len(t, d.Asks, 2)

	bid, _ := book.TopBid()
	ask, _ := book.TopAsk()
	assert.Equal(t, uint64(2), bid.ID)
	assert.Equal(t, uint64(5), ask.ID)
}

func TestOrderBook_TimePriorityWithinLevel(t *testing.T) {
	book := NewOrderBook("AAPL")
	for id := uint64(1); id <= 3; id++ {
		require.NoError(t, book.AddOrder(limit(id, Sell, 10, 5)))
	}

	var ids []uint64
	book.WalkAsks(func(lvl *PriceLevel) bool {
		lvl.Orders(func(o *Order) bool {
			ids = append(ids, o.ID)
			return true
		})
		return true
	})
	assert.Equal(t, []uint64{1, 2, 3}, ids)

	_, err := book.RemoveOrder(1)
	require.NoError(t, err)
	top, _ := book.TopAsk()
	assert.Equal(t, uint64(2), top.ID)
}

func TestOrderBook_RemoveMiddleKeepsOrder(t *testing.T) {
	book := NewOrderBook("AAPL")
	for id := uint64(1); id <= 3; id++ {
		require.NoError(t, book.AddOrder(limit(id, Buy, 10, id*10)))
	}

	o, err := book.RemoveOrder(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), o.ID)
	assert.False(t, book.Contains(2))
	assert.Equal(t, map[float64]uint64{10: 40}, book.AggregatedBids())

	_, err = book.RemoveOrder(3)
	require.NoError(t, err)
	top, _ := book.TopBid()
	assert.Equal(t, uint64(1), top.ID)
}

func TestOrderBook_RemoveLastOrderDropsLevel(t *testing.T) {
	book := NewOrderBook("AAPL")
	require.NoError(t, book.AddOrder(limit(1, Sell, 10, 5)))
	require.NoError(t, book.AddOrder(limit(2, Sell, 11, 5)))

	_, err := book.RemoveOrder(1)
	require.NoError(t, err)

	assert.False(t, book.Contains(1))
	assert.Equal(t, 1, book.AskLevels())
	_, present := book.AggregatedAsks()[10]
	assert.False(t, present)

	top, ok := book.TopAsk()
	require.True(t, ok)
	assert.Equal(t, 11.0, top.Price)
}

func TestOrderBook_RemoveUnknownLeavesBookUntouched(t *testing.T) {
	book := NewOrderBook("AAPL")
	require.NoError(t, book.AddOrder(limit(1, Buy, 10, 100)))
	require.NoError(t, book.AddOrder(limit(2, Sell, 11, 50)))
	before := book.Depth(0)

	o, err := book.RemoveOrder(99)
	assert.Nil(t, o)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	assert.Equal(t, before, book.Depth(0))
	assert.Equal(t, 2, book.Len())
}

func TestOrderBook_ApplyFillUpdatesAggregate(t *testing.T) {
	book := NewOrderBook("AAPL")
	require.NoError(t, book.AddOrder(limit(1, Buy, 9.80, 40)))
	require.NoError(t, book.AddOrder(limit(2, Buy, 9.80, 10)))

	o, err := book.ApplyFill(1, 10, 9.80)
	require.NoError(t, err)
	assert.Equal(t, PartiallyFilled, o.Status())
	assert.Equal(t, map[float64]uint64{9.80: 40}, book.AggregatedBids())

	_, err = book.ApplyFill(1, 31, 9.80)
	assert.ErrorIs(t, err, ErrInvalidFill)
	assert.Equal(t, map[float64]uint64{9.80: 40}, book.AggregatedBids())

	_, err = book.ApplyFill(42, 1, 9.80)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	o, err = book.ApplyFill(1, 30, 9.80)
	require.NoError(t, err)
	require.True(t, o.IsFilled())
	_, err = book.RemoveOrder(1)
	require.NoError(t, err)
	assert.Equal(t, map[float64]uint64{9.80: 10}, book.AggregatedBids())
}

func TestOrderBook_RejectsNonFinitePrice(t *testing.T) {
	book := NewOrderBook("AAPL")
	require.NoError(t, book.AddOrder(limit(1, Buy, 10, 5)))

	for i, px := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 0} {
		err := book.AddOrder(limit(uint64(i+2), Buy, px, 7))
		assert.ErrorIs(t, err, ErrInvalidPrice, "price %v", px)
	}

	assert.Equal(t, 1, book.Len())
	assert.Equal(t, map[float64]uint64{10: 5}, book.AggregatedBids())
	top, ok := book.TopBid()
	require.True(t, ok)
	assert.Equal(t, uint64(1), top.ID)
}
