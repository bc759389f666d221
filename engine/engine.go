package engine

import (
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"matchbook/domain/event"
	"matchbook/domain/orderbook"
	"matchbook/infra/logging"
	"matchbook/infra/memory"
	"matchbook/infra/metrics"
	"matchbook/infra/queue"
	"matchbook/infra/sequence"
)

var (
	ErrUnknownCommand = errors.New("engine: unknown command kind")
	ErrNilOrder       = errors.New("engine: command carries no order")
	ErrUnknownSymbol  = errors.New("engine: no book for symbol")
	ErrSymbolExists   = errors.New("engine: book already exists")

	ErrInvalidPrice    = errors.New("engine: price must be finite and positive")
	ErrInvalidQuantity = errors.New("engine: quantity out of range")
)

const DefaultSnapshotDepth = 5

// Publisher receives every event the engine emits, in emission order.
type Publisher interface {
	Publish(event.Event)
}

type Config struct {
	// SnapshotDepth is the number of levels per side in book snapshots.
	SnapshotDepth int
}

type Option func(*Engine)

func WithOrderIDs(s *sequence.Sequencer) Option { return func(e *Engine) { e.orderIDs = s } }
func WithTradeIDs(s *sequence.Sequencer) Option { return func(e *Engine) { e.tradeIDs = s } }
func WithEventIDs(s *sequence.Sequencer) Option { return func(e *Engine) { e.eventIDs = s } }
func WithClock(now func() time.Time) Option     { return func(e *Engine) { e.now = now } }

/*
Engine is the single writer of every order book.

One goroutine runs Run; it pops commands, matches, mutates the books and
publishes events. No lock protects the books because nothing else touches
them while Run is active.
*/
type Engine struct {
	commands *queue.Queue[event.Command]
	pub      Publisher
	log      *zap.Logger

	books  map[string]*orderbook.OrderBook
	orders *memory.Pool[orderbook.Order]
	depth  int

	orderIDs *sequence.Sequencer
	tradeIDs *sequence.Sequencer
	eventIDs *sequence.Sequencer
	now      func() time.Time
}

func New(
	cfg Config,
	commands *queue.Queue[event.Command],
	pub Publisher,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		commands: commands,
		pub:      pub,
		log:      logging.OrNop(logger).Named("engine"),
		books:    make(map[string]*orderbook.OrderBook),
		orders:   memory.NewPool(func(o *orderbook.Order) { *o = orderbook.Order{} }),
		depth:    cfg.SnapshotDepth,
		orderIDs: sequence.New(0),
		tradeIDs: sequence.New(0),
		eventIDs: sequence.New(0),
		now:      time.Now,
	}
	if e.depth <= 0 {
		e.depth = DefaultSnapshotDepth
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddSymbol creates the book for symbol. Books must exist before any
// command for them arrives; they are never created on demand.
func (e *Engine) AddSymbol(symbol string) error {
	if _, ok := e.books[symbol]; ok {
		return errors.Wrapf(ErrSymbolExists, "symbol %q", symbol)
	}
	e.books[symbol] = orderbook.NewOrderBook(symbol)
	metrics.RestingOrders.WithLabelValues(symbol).Set(0)
	e.log.Info("order book initialized", zap.String("symbol", symbol))
	return nil
}

func (e *Engine) Symbols() []string {
	out := make([]string, 0, len(e.books))
	for s := range e.books {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Book exposes a book for bootstrap and tests. Callers must not use it
// while Run is active.
func (e *Engine) Book(symbol string) (*orderbook.OrderBook, bool) {
	b, ok := e.books[symbol]
	return b, ok
}

// Run consumes commands until the queue is shut down and drained.
// A rejected command is logged and skipped; it never stops the loop.
func (e *Engine) Run() {
	e.log.Info("engine started", zap.Strings("symbols", e.Symbols()))

	for {
		cmd, ok := e.commands.WaitAndPop()
		if !ok {
			break
		}
		if err := e.Process(cmd); err != nil {
			e.reject(cmd, err)
		}
	}

	e.log.Info("engine has finished consuming")
}

// Process applies one command.
func (e *Engine) Process(cmd event.Command) error {
	switch cmd.Kind {
	case event.CommandNewOrder:
		metrics.CommandsProcessed.WithLabelValues(cmd.Kind.String()).Inc()
		return e.processNewOrder(cmd.NewOrder)
	default:
		return errors.Wrapf(ErrUnknownCommand, "kind %d", cmd.Kind)
	}
}

func (e *Engine) reject(cmd event.Command, err error) {
	fields := []zap.Field{
		zap.String("command", cmd.Kind.String()),
		zap.String("reason", reason(err)),
		zap.Error(err),
	}
	if n := cmd.NewOrder; n != nil {
		fields = append(fields,
			zap.String("symbol", n.Symbol),
			zap.Uint64("client_id", n.ClientID),
			zap.Uint64("client_order_id", n.ClientOrderID),
		)
	}
	metrics.CommandsRejected.WithLabelValues(reason(err)).Inc()

	if errors.Is(err, orderbook.ErrDuplicateOrder) {
		e.log.Error("command rejected", fields...)
		return
	}
	e.log.Warn("command rejected", fields...)
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownCommand):
		return "unknown_command"
	case errors.Is(err, ErrNilOrder):
		return "nil_order"
	case errors.Is(err, ErrUnknownSymbol):
		return "unknown_symbol"
	case errors.Is(err, ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, orderbook.ErrDuplicateOrder):
		return "duplicate_order"
	default:
		return "other"
	}
}

func (e *Engine) publish(ev event.Event) {
	e.pub.Publish(ev)
}

func (e *Engine) publishSnapshot(book *orderbook.OrderBook) {
	e.publish(event.NewBookSnapshot(e.eventIDs.Next(), e.now(), book.Symbol(), book.Depth(e.depth)))
}
