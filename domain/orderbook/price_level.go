package orderbook

// restingOrder is the stable handle the id index points at. The level owns
// the links; the order itself carries no list pointers.
type restingOrder struct {
	order *Order
	level *PriceLevel

	next *restingOrder
	prev *restingOrder
}

// PriceLevel is a FIFO queue of resting orders at a single price.
type PriceLevel struct {
	Price float64
	Side  Side

	head *restingOrder
	tail *restingOrder

	// TotalQty is the sum of remaining quantity of every order at this level.
	TotalQty   uint64
	OrderCount int
}

func newPriceLevel(side Side, price float64) *PriceLevel {
	return &PriceLevel{Side: side, Price: price}
}

func (p *PriceLevel) enqueue(o *Order) *restingOrder {
	n := &restingOrder{order: o, level: p}
	if p.head == nil {
		p.head = n
		p.tail = n
	} else {
		p.tail.next = n
		n.prev = p.tail
		p.tail = n
	}
	p.TotalQty += o.Remaining()
	p.OrderCount++
	return n
}

// unlink removes n in O(1) and takes its remaining quantity off the level.
func (p *PriceLevel) unlink(n *restingOrder) {
	mustHold(n.level == p, "order %d unlinked from level %v it does not belong to", n.order.ID, p.Price)

	if n.prev != nil {
		n.prev.next = n.next
	} else {
		p.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		p.tail = n.prev
	}
	n.next, n.prev, n.level = nil, nil, nil

	mustHold(p.TotalQty >= n.order.Remaining(), "level %v aggregate %d below order %d remaining %d",
		p.Price, p.TotalQty, n.order.ID, n.order.Remaining())
	p.TotalQty -= n.order.Remaining()
	p.OrderCount--
}

// reduce lowers the aggregate after a resting order was partially filled.
func (p *PriceLevel) reduce(qty uint64) {
	mustHold(p.TotalQty >= qty, "level %v aggregate %d below fill %d", p.Price, p.TotalQty, qty)
	p.TotalQty -= qty
}

func (p *PriceLevel) Empty() bool {
	return p.head == nil
}

// Head is the earliest order still resting at this price.
func (p *PriceLevel) Head() *Order {
	if p.head == nil {
		return nil
	}
	return p.head.order
}

// Orders walks the level in time priority. fn returning false stops the walk.
func (p *PriceLevel) Orders(fn func(*Order) bool) {
	for n := p.head; n != nil; n = n.next {
		if !fn(n.order) {
			return
		}
	}
}
