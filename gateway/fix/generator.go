package fix

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"matchbook/domain/orderbook"
)

// DefaultSymbols is the universe the random generator draws from. Some of
// these have no book on purpose so the reject path gets traffic.
var DefaultSymbols = []string{
	"AAPL", "MSFT", "GOOG", "AMZN", "TSLA", "NVDA", "META",
	"NFLX", "AMD", "INTC", "BABA", "ORCL", "IBM",
}

const sendingTimeLayout = "20060102-15:04:05"

type OrderParams struct {
	Symbol      string
	Side        orderbook.Side
	Quantity    uint64
	Price       float64
	Type        orderbook.OrderType
	TimeInForce orderbook.TimeInForce
	Capacity    orderbook.Capacity
}

// Generator writes NewOrderSingle messages. Sequence numbers are shared by
// every goroutine using the same Generator.
type Generator struct {
	Sender  string
	Target  string
	Symbols []string

	mu  sync.Mutex
	seq uint64
	rng *rand.Rand
	now func() time.Time
}

func NewGenerator(seed uint64) *Generator {
	return &Generator{
		Sender:  "CLIENT",
		Target:  "SERVER",
		Symbols: DefaultSymbols,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:     time.Now,
	}
}

// NewOrderSingle renders p with a fresh sequence number, which also serves
// as the ClOrdID.
func (g *Generator) NewOrderSingle(p OrderParams) string {
	g.mu.Lock()
	g.seq++
	seq := strconv.FormatUint(g.seq, 10)
	sent := g.now().Format(sendingTimeLayout)
	g.mu.Unlock()

	var b strings.Builder
	put := func(tag int, v string) {
		b.WriteString(strconv.Itoa(tag))
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte(Delimiter)
	}

	put(TagBeginString, "FIX.4.2")
	put(TagSenderCompID, g.Sender)
	put(TagTargetCompID, g.Target)
	put(TagMsgSeqNum, seq)
	put(TagSendingTime, sent)
	put(TagMsgType, "D")
	put(TagClOrdID, seq)
	put(TagSymbol, p.Symbol)
	put(TagSide, strconv.Itoa(int(p.Side)))
	put(TagOrderQty, strconv.FormatUint(p.Quantity, 10))
	put(TagPrice, strconv.FormatFloat(p.Price, 'f', 2, 64))
	put(TagOrdType, strconv.Itoa(int(p.Type)))
	put(TagTimeInForce, strconv.Itoa(int(p.TimeInForce)))
	put(TagOrderCapacity, string(rune(p.Capacity)))

	put(TagCheckSum, Checksum(b.String()))
	return b.String()
}

// Random draws a plausible order and renders it.
func (g *Generator) Random() string {
	g.mu.Lock()
	p := OrderParams{
		Symbol:      g.Symbols[g.rng.IntN(len(g.Symbols))],
		Side:        orderbook.Side(1 + g.rng.IntN(2)),
		Quantity:    1 + g.rng.Uint64N(500),
		Price:       10 + g.rng.Float64()*490,
		Type:        orderbook.OrderType(1 + g.rng.IntN(2)),
		TimeInForce: orderbook.TimeInForce(1 + g.rng.IntN(4)),
		Capacity:    orderbook.Capacity('1' + g.rng.IntN(2)),
	}
	g.mu.Unlock()

	return g.NewOrderSingle(p)
}
