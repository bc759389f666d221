// Package audit records every order-accepted and trade-executed event, in
// engine order, to a line log and optionally to the delivery outbox.
package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"matchbook/domain/event"
	"matchbook/infra/logging"
	"matchbook/infra/metrics"
	"matchbook/infra/queue"
)

// Store receives the JSON form of every audited event.
type Store interface {
	Put(seq uint64, payload []byte) error
}

type Auditor struct {
	events *queue.Queue[event.Event]
	store  Store
	log    *zap.Logger

	file *os.File
	out  *bufio.Writer
}

// Open creates or truncates the log at path. store may be nil.
func Open(path string, events *queue.Queue[event.Event], store Store, logger *zap.Logger) (*Auditor, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create audit dir %s", dir)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open audit log %s", path)
	}

	a := &Auditor{
		events: events,
		store:  store,
		log:    logging.OrNop(logger).Named("audit"),
		file:   f,
		out:    bufio.NewWriter(f),
	}
	a.log.Info("audit log opened", zap.String("path", path), zap.Bool("outbox", store != nil))
	return a, nil
}

// Run writes events until the queue is shut down and drained, then closes
// the log.
func (a *Auditor) Run() error {
	for {
		ev, ok := a.events.WaitAndPop()
		if !ok {
			break
		}
		a.write(ev)

		if a.events.Len() == 0 {
			if err := a.out.Flush(); err != nil {
				a.log.Error("audit flush failed", zap.Error(err))
			}
		}
	}

	a.log.Info("auditor has finished consuming")
	return a.Close()
}

func (a *Auditor) write(ev event.Event) {
	line, ok := FormatLine(ev)
	if !ok {
		a.log.Warn("event is not audited", zap.Stringer("kind", ev.Kind), zap.Uint64("seq", ev.Seq))
		return
	}
	if _, err := a.out.WriteString(line); err != nil {
		a.log.Error("audit write failed", zap.Uint64("seq", ev.Seq), zap.Error(err))
	}
	metrics.EventsAudited.WithLabelValues(ev.Kind.String()).Inc()

	if a.store == nil {
		return
	}
	payload, err := Marshal(ev)
	if err == nil {
		err = a.store.Put(ev.Seq, payload)
	}
	if err != nil {
		a.log.Error("outbox put failed", zap.Uint64("seq", ev.Seq), zap.Error(err))
	}
}

func (a *Auditor) Close() error {
	if a.file == nil {
		return nil
	}
	err := a.out.Flush()
	if cerr := a.file.Close(); err == nil {
		err = cerr
	}
	a.file = nil
	return err
}

// FormatLine renders one audit line:
//
//	2024-03-01 09:30:00.000000001 - TradeExecuted - "TradeID:1 | Symbol:AAPL | ..."
func FormatLine(ev event.Event) (string, bool) {
	var kv [][2]string

	switch {
	case ev.Kind == event.KindOrderAccepted && ev.Accepted != nil:
		o := ev.Accepted.Order
		kv = [][2]string{
			{"OrderID", u(o.ID)},
			{"ClientID", u(o.ClientID)},
			{"ClientOrderID", u(o.ClientOrderID)},
			{"Symbol", o.Symbol},
			{"Side", strconv.Itoa(int(o.Side))},
			{"Quantity", u(o.Quantity)},
			{"Price", price(o.Price)},
		}
	case ev.Kind == event.KindTradeExecuted && ev.Trade != nil:
		t := ev.Trade
		kv = [][2]string{
			{"TradeID", u(t.Trade.ID)},
			{"Symbol", t.Trade.Symbol},
			{"Quantity", u(t.Trade.Quantity)},
			{"Price", price(t.Trade.Price)},
			{"AggressiveOrderID", u(t.Trade.AggressiveOrderID)},
			{"PassiveOrderID", u(t.Trade.PassiveOrderID)},
			{"AggressiveRemainingQty", u(t.Aggressive.Remaining)},
			{"PassiveRemainingQty", u(t.Passive.Remaining)},
		}
	default:
		return "", false
	}

	var b strings.Builder
	b.WriteString(event.FormatTime(ev.Time))
	b.WriteString(" - ")
	b.WriteString(ev.Kind.String())
	b.WriteString(` - "`)
	for i, p := range kv {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(p[0])
		b.WriteByte(':')
		b.WriteString(p[1])
	}
	b.WriteString("\"\n")
	return b.String(), true
}

func u(v uint64) string { return strconv.FormatUint(v, 10) }

func price(p float64) string { return strconv.FormatFloat(p, 'f', -1, 64) }

// ---- outbox record ----

type record struct {
	Seq   uint64       `json:"seq"`
	Type  string       `json:"type"`
	Time  time.Time    `json:"time"`
	Order *orderRecord `json:"order,omitempty"`
	Trade *tradeRecord `json:"trade,omitempty"`
}

type orderRecord struct {
	OrderID       uint64  `json:"order_id"`
	ClientID      uint64  `json:"client_id"`
	ClientOrderID uint64  `json:"client_order_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Type          string  `json:"order_type"`
	TimeInForce   string  `json:"time_in_force"`
	Capacity      string  `json:"capacity"`
	Quantity      uint64  `json:"quantity"`
	Remaining     uint64  `json:"remaining"`
	Price         float64 `json:"price"`
}

type tradeRecord struct {
	TradeID                uint64  `json:"trade_id"`
	Symbol                 string  `json:"symbol"`
	Quantity               uint64  `json:"quantity"`
	Price                  float64 `json:"price"`
	AggressiveOrderID      uint64  `json:"aggressive_order_id"`
	PassiveOrderID         uint64  `json:"passive_order_id"`
	AggressiveRemainingQty uint64  `json:"aggressive_remaining_qty"`
	PassiveRemainingQty    uint64  `json:"passive_remaining_qty"`
	AggressiveAvgPrice     string  `json:"aggressive_avg_price"`
}

// Marshal is the JSON record stored in the outbox and relayed to Kafka.
func Marshal(ev event.Event) ([]byte, error) {
	rec := record{Seq: ev.Seq, Type: ev.Kind.String(), Time: ev.Time}

	switch {
	case ev.Kind == event.KindOrderAccepted && ev.Accepted != nil:
		o := ev.Accepted.Order
		rec.Order = &orderRecord{
			OrderID:       o.ID,
			ClientID:      o.ClientID,
			ClientOrderID: o.ClientOrderID,
			Symbol:        o.Symbol,
			Side:          o.Side.String(),
			Type:          o.Type.String(),
			TimeInForce:   o.TimeInForce.String(),
			Capacity:      o.Capacity.String(),
			Quantity:      o.Quantity,
			Remaining:     o.Remaining,
			Price:         o.Price,
		}
	case ev.Kind == event.KindTradeExecuted && ev.Trade != nil:
		t := ev.Trade
		rec.Trade = &tradeRecord{
			TradeID:                t.Trade.ID,
			Symbol:                 t.Trade.Symbol,
			Quantity:               t.Trade.Quantity,
			Price:                  t.Trade.Price,
			AggressiveOrderID:      t.Trade.AggressiveOrderID,
			PassiveOrderID:         t.Trade.PassiveOrderID,
			AggressiveRemainingQty: t.Aggressive.Remaining,
			PassiveRemainingQty:    t.Passive.Remaining,
			AggressiveAvgPrice:     t.Aggressive.AveragePrice.String(),
		}
	default:
		return nil, errors.Newf("audit: %s is not an audited event", ev.Kind)
	}
	return json.Marshal(rec)
}
