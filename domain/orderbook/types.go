package orderbook

import (
	"fmt"
	"math"
)

type Side uint8
type OrderType uint8
type TimeInForce uint8
type Capacity uint8
type Status uint8

// MaxQuantity bounds order size so level aggregates cannot overflow.
const MaxQuantity = math.MaxUint32

// ValidPrice reports whether p can rest in a book and be filled at.
func ValidPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0)
}

// Wire values follow FIX tag 54.
const (
	Buy  Side = 1
	Sell Side = 2
)

// Wire values follow FIX tag 40.
const (
	Market OrderType = 1
	Limit  OrderType = 2
	Stop   OrderType = 3
)

// Wire values follow FIX tag 59.
const (
	Day               TimeInForce = 0
	GoodTillCancel    TimeInForce = 1
	AtTheOpening      TimeInForce = 2
	ImmediateOrCancel TimeInForce = 3
	FillOrKill        TimeInForce = 4
)

// Wire values follow FIX tag 47.
const (
	Agency    Capacity = '1'
	Principal Capacity = '2'
)

const (
	New Status = iota
	PartiallyFilled
	Filled
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	default:
		return fmt.Sprintf("Side(%d)", uint8(s))
	}
}

// Opposite returns the side an order of this side matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) Valid() bool { return s == Buy || s == Sell }

func (t OrderType) String() string {
	switch t {
	case Market:
		return "Market"
	case Limit:
		return "Limit"
	case Stop:
		return "Stop"
	default:
		return fmt.Sprintf("OrderType(%d)", uint8(t))
	}
}

func (t TimeInForce) String() string {
	switch t {
	case Day:
		return "Day"
	case GoodTillCancel:
		return "GTC"
	case AtTheOpening:
		return "OPG"
	case ImmediateOrCancel:
		return "IOC"
	case FillOrKill:
		return "FOK"
	default:
		return fmt.Sprintf("TimeInForce(%d)", uint8(t))
	}
}

func (c Capacity) String() string {
	switch c {
	case Agency:
		return "Agency"
	case Principal:
		return "Principal"
	default:
		return fmt.Sprintf("Capacity(%q)", rune(c))
	}
}

func (s Status) String() string {
	switch s {
	case New:
		return "New"
	case PartiallyFilled:
		return "PartiallyFilled"
	case Filled:
		return "Filled"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}
