package orderbook

import (
	"github.com/cockroachdb/errors"
	"github.com/tidwall/btree"
)

// Level is one aggregated price level as seen by market data.
type Level struct {
	Price    float64
	Quantity uint64
}

// Depth holds the best levels of both sides, best first.
type Depth struct {
	Bids []Level
	Asks []Level
}

// OrderBook is the resting liquidity of one symbol.
//
// It is single-writer: the engine goroutine is the only caller. Levels are
// kept in two ordered trees keyed by price; the id index maps an order id to
// its stable handle inside a level so cancels never scan.
type OrderBook struct {
	symbol string

	bids btree.Map[float64, *PriceLevel] // best = Max
	asks btree.Map[float64, *PriceLevel] // best = Min

	index map[uint64]*restingOrder
}

func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		index:  make(map[uint64]*restingOrder),
	}
}

func (b *OrderBook) Symbol() string { return b.symbol }

// Len is the number of resting orders.
func (b *OrderBook) Len() int { return len(b.index) }

func (b *OrderBook) side(s Side) *btree.Map[float64, *PriceLevel] {
	if s == Buy {
		return &b.bids
	}
	return &b.asks
}

// ---- mutation ----

// AddOrder rests o at the back of its price level.
func (b *OrderBook) AddOrder(o *Order) error {
	if o == nil {
		return ErrNilOrder
	}
	if o.Symbol != b.symbol {
		return errors.Wrapf(ErrSymbolMismatch, "order %d symbol %q, book %q", o.ID, o.Symbol, b.symbol)
	}
	if _, dup := b.index[o.ID]; dup {
		return errors.Wrapf(ErrDuplicateOrder, "order %d", o.ID)
	}
	if !ValidPrice(o.Price) {
		return errors.Wrapf(ErrInvalidPrice, "order %d price %v", o.ID, o.Price)
	}

	tree := b.side(o.Side)
	lvl, ok := tree.Get(o.Price)
	if !ok {
		lvl = newPriceLevel(o.Side, o.Price)
		tree.Set(o.Price, lvl)
	}
	b.index[o.ID] = lvl.enqueue(o)
	return nil
}

// RemoveOrder takes the order out of the book and returns it.
func (b *OrderBook) RemoveOrder(id uint64) (*Order, error) {
	n, ok := b.index[id]
	if !ok {
		return nil, errors.Wrapf(ErrOrderNotFound, "order %d", id)
	}

	lvl := n.level
	mustHold(lvl != nil, "index entry for order %d points at no level", id)

	tree := b.side(lvl.Side)
	stored, ok := tree.Get(lvl.Price)
	mustHold(ok && stored == lvl, "order %d level %v missing from %s tree", id, lvl.Price, lvl.Side)

	o := n.order
	lvl.unlink(n)
	if lvl.Empty() {
		mustHold(lvl.TotalQty == 0, "empty level %v still aggregates %d", lvl.Price, lvl.TotalQty)
		tree.Delete(lvl.Price)
	}
	delete(b.index, id)
	return o, nil
}

// ApplyFill fills a resting order in place and keeps its level aggregate in
// step. The order stays in the book; callers remove it once it is filled.
func (b *OrderBook) ApplyFill(id uint64, qty uint64, price float64) (*Order, error) {
	n, ok := b.index[id]
	if !ok {
		return nil, errors.Wrapf(ErrOrderNotFound, "order %d", id)
	}
	if err := n.order.ApplyFill(qty, price); err != nil {
		return nil, err
	}
	n.level.reduce(qty)
	return n.order, nil
}

// ---- queries ----

func (b *OrderBook) Contains(id uint64) bool {
	_, ok := b.index[id]
	return ok
}

func (b *OrderBook) Order(id uint64) (*Order, bool) {
	n, ok := b.index[id]
	if !ok {
		return nil, false
	}
	return n.order, true
}

// TopBid is the earliest order at the highest bid price.
func (b *OrderBook) TopBid() (*Order, bool) {
	_, lvl, ok := b.bids.Max()
	return top(lvl, ok)
}

// TopAsk is the earliest order at the lowest ask price.
func (b *OrderBook) TopAsk() (*Order, bool) {
	_, lvl, ok := b.asks.Min()
	return top(lvl, ok)
}

// Top returns the head of the best level on side s.
func (b *OrderBook) Top(s Side) (*Order, bool) {
	if s == Buy {
		return b.TopBid()
	}
	return b.TopAsk()
}

func top(lvl *PriceLevel, ok bool) (*Order, bool) {
	if !ok {
		return nil, false
	}
	mustHold(!lvl.Empty(), "empty level %v left in tree", lvl.Price)
	return lvl.Head(), true
}

// ---- traversal helpers ----

// WalkBids visits bid levels from the highest price down.
func (b *OrderBook) WalkBids(fn func(*PriceLevel) bool) {
	b.bids.Reverse(func(_ float64, lvl *PriceLevel) bool { return fn(lvl) })
}

// WalkAsks visits ask levels from the lowest price up.
func (b *OrderBook) WalkAsks(fn func(*PriceLevel) bool) {
	b.asks.Scan(func(_ float64, lvl *PriceLevel) bool { return fn(lvl) })
}

func (b *OrderBook) BidLevels() int { return b.bids.Len() }
func (b *OrderBook) AskLevels() int { return b.asks.Len() }

// Depth returns up to n aggregated levels per side. n <= 0 means all.
func (b *OrderBook) Depth(n int) Depth {
	var d Depth
	collect := func(dst *[]Level) func(*PriceLevel) bool {
		return func(lvl *PriceLevel) bool {
			*dst = append(*dst, Level{Price: lvl.Price, Quantity: lvl.TotalQty})
			return n <= 0 || len(*dst) < n
		}
	}
	b.WalkBids(collect(&d.Bids))
	b.WalkAsks(collect(&d.Asks))
	return d
}

// AggregatedBids returns a copy of price → total remaining for the bid side.
func (b *OrderBook) AggregatedBids() map[float64]uint64 { return aggregate(&b.bids) }

// AggregatedAsks returns a copy of price → total remaining for the ask side.
func (b *OrderBook) AggregatedAsks() map[float64]uint64 { return aggregate(&b.asks) }

func aggregate(tree *btree.Map[float64, *PriceLevel]) map[float64]uint64 {
	out := make(map[float64]uint64, tree.Len())
	tree.Scan(func(price float64, lvl *PriceLevel) bool {
		out[price] = lvl.TotalQty
		return true
	})
	return out
}
