// Package fix reads and writes the pipe-delimited tag=value FIX subset
// used for order entry.
package fix

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"matchbook/domain/event"
	"matchbook/domain/orderbook"
)

const Delimiter = '|'

// Tags used by order entry.
const (
	TagAccount       = 1
	TagBeginString   = 8
	TagCheckSum      = 10
	TagClOrdID       = 11
	TagMsgSeqNum     = 34
	TagMsgType       = 35
	TagOrderQty      = 38
	TagOrdType       = 40
	TagPrice         = 44
	TagOrderCapacity = 47
	TagSenderCompID  = 49
	TagSendingTime   = 52
	TagSide          = 54
	TagSymbol        = 55
	TagTargetCompID  = 56
	TagTimeInForce   = 59
)

var (
	ErrNoFields   = errors.New("fix: no tag=value fields")
	ErrChecksum   = errors.New("fix: checksum mismatch")
	ErrMissingTag = errors.New("fix: required tag missing")
	ErrBadValue   = errors.New("fix: bad tag value")
)

type Field struct {
	Tag   int
	Value string
}

// Message is a parsed FIX message. Later occurrences of a tag win.
type Message struct {
	Fields []Field
	byTag  map[int]string
}

// Checksum is the FIX trailer value for body: byte sum mod 256, three digits.
func Checksum(body string) string {
	var sum int
	for i := 0; i < len(body); i++ {
		sum += int(body[i])
	}
	s := strconv.Itoa(sum % 256)
	return strings.Repeat("0", 3-len(s)) + s
}

// Parse splits line into fields. Segments without '=' or with a
// non-numeric tag are skipped. When a checksum trailer is present it must
// match the bytes that precede it.
func Parse(line string) (Message, error) {
	m := Message{byTag: make(map[int]string)}

	offset := 0
	for _, seg := range strings.Split(line, string(Delimiter)) {
		start := offset
		offset += len(seg) + 1

		k, v, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		tag, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		if tag == TagCheckSum {
			if want := Checksum(line[:start]); v != want {
				return Message{}, errors.Wrapf(ErrChecksum, "got %s want %s", v, want)
			}
		}
		m.Fields = append(m.Fields, Field{Tag: tag, Value: v})
		m.byTag[tag] = v
	}

	if len(m.Fields) == 0 {
		return Message{}, ErrNoFields
	}
	return m, nil
}

func (m Message) Get(tag int) (string, bool) {
	v, ok := m.byTag[tag]
	return v, ok
}

func (m Message) MsgType() string { return m.byTag[TagMsgType] }

func (m Message) require(tag int) (string, error) {
	v, ok := m.byTag[tag]
	if !ok || v == "" {
		return "", errors.Wrapf(ErrMissingTag, "tag %d", tag)
	}
	return v, nil
}

func (m Message) uint(tag int, bits int) (uint64, error) {
	v, err := m.require(tag)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, bits)
	if err != nil {
		return 0, errors.Wrapf(ErrBadValue, "tag %d: %q", tag, v)
	}
	return n, nil
}

// NewOrder builds a new-order instruction from a NewOrderSingle. The
// client id comes from the session, not the message.
func (m Message) NewOrder(clientID uint64, received time.Time) (*event.NewOrder, error) {
	var (
		n   = event.NewOrder{ClientID: clientID, ReceivedAt: received}
		err error
	)

	if n.ClientOrderID, err = m.uint(TagClOrdID, 64); err != nil {
		return nil, err
	}
	if n.Symbol, err = m.require(TagSymbol); err != nil {
		return nil, err
	}
	if n.Quantity, err = m.uint(TagOrderQty, 32); err != nil {
		return nil, err
	}

	px, err := m.require(TagPrice)
	if err != nil {
		return nil, err
	}
	if n.Price, err = strconv.ParseFloat(px, 64); err != nil || !orderbook.ValidPrice(n.Price) {
		return nil, errors.Wrapf(ErrBadValue, "tag %d: %q", TagPrice, px)
	}

	side, err := m.uint(TagSide, 64)
	if err != nil {
		return nil, err
	}
	if side != uint64(orderbook.Buy) && side != uint64(orderbook.Sell) {
		return nil, errors.Wrapf(ErrBadValue, "tag %d: %d", TagSide, side)
	}
	n.Side = orderbook.Side(side)

	typ, err := m.uint(TagOrdType, 64)
	if err != nil {
		return nil, err
	}
	if typ < uint64(orderbook.Market) || typ > uint64(orderbook.Stop) {
		return nil, errors.Wrapf(ErrBadValue, "tag %d: %d", TagOrdType, typ)
	}
	n.Type = orderbook.OrderType(typ)

	tif, err := m.uint(TagTimeInForce, 64)
	if err != nil {
		return nil, err
	}
	if tif > uint64(orderbook.FillOrKill) {
		return nil, errors.Wrapf(ErrBadValue, "tag %d: %d", TagTimeInForce, tif)
	}
	n.TimeInForce = orderbook.TimeInForce(tif)

	capacity, err := m.require(TagOrderCapacity)
	if err != nil {
		return nil, err
	}
	switch capacity[0] {
	case '1', 'A':
		n.Capacity = orderbook.Agency
	case '2', 'P':
		n.Capacity = orderbook.Principal
	default:
		return nil, errors.Wrapf(ErrBadValue, "tag %d: %q", TagOrderCapacity, capacity)
	}

	return &n, nil
}
