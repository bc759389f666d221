package orderbook

import "time"

// Trade is one fill between an aggressive and a passive order.
// Price is always the passive order's price.
type Trade struct {
	ID                uint64
	AggressiveOrderID uint64
	PassiveOrderID    uint64
	Symbol            string
	Price             float64
	Quantity          uint64
	ExecutedAt        time.Time
}
