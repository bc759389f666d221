package event

import (
	"time"

	"matchbook/domain/orderbook"
)

type CommandKind uint8

const (
	CommandNewOrder CommandKind = iota + 1
)

func (k CommandKind) String() string {
	switch k {
	case CommandNewOrder:
		return "NewOrder"
	default:
		return "UnknownCommand"
	}
}

// NewOrder is a normalized, already typed new-order instruction.
type NewOrder struct {
	ClientOrderID uint64
	ClientID      uint64
	Symbol        string
	Side          orderbook.Side
	Type          orderbook.OrderType
	Quantity      uint64
	Price         float64
	TimeInForce   orderbook.TimeInForce
	Capacity      orderbook.Capacity
	ReceivedAt    time.Time

	// InboundSeq is the entry WAL sequence of the raw message, 0 if the
	// command did not come through the inbound gateway.
	InboundSeq uint64
}

// Terms converts the instruction into order terms.
func (n *NewOrder) Terms() orderbook.Terms {
	return orderbook.Terms{
		ClientID:      n.ClientID,
		ClientOrderID: n.ClientOrderID,
		Symbol:        n.Symbol,
		Side:          n.Side,
		Type:          n.Type,
		Quantity:      n.Quantity,
		Price:         n.Price,
		TimeInForce:   n.TimeInForce,
		Capacity:      n.Capacity,
		ReceivedAt:    n.ReceivedAt,
	}
}

// Command is the closed set of instructions the engine consumes.
// Exactly the payload named by Kind is set.
type Command struct {
	Kind     CommandKind
	NewOrder *NewOrder
}

func NewOrderCommand(n *NewOrder) Command {
	return Command{Kind: CommandNewOrder, NewOrder: n}
}
