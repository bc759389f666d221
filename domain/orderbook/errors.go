package orderbook

import "github.com/cockroachdb/errors"

var (
	ErrOrderNotFound  = errors.New("orderbook: order not found")
	ErrDuplicateOrder = errors.New("orderbook: duplicate order id")
	ErrSymbolMismatch = errors.New("orderbook: order symbol does not match book")
	ErrInvalidFill    = errors.New("orderbook: invalid fill quantity")
	ErrNilOrder       = errors.New("orderbook: nil order")
	ErrInvalidPrice   = errors.New("orderbook: price must be finite and positive")
)

// mustHold panics when a structural invariant of the book is broken. Those
// states are unreachable through the public API; seeing one means a bug.
func mustHold(cond bool, format string, args ...any) {
	if !cond {
		panic(errors.AssertionFailedf(format, args...))
	}
}
