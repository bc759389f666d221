// Package outbox is a durable store of audit records awaiting delivery to
// Kafka, keyed by event sequence.
package outbox

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrNotFound = errors.New("outbox: record not found")
	ErrCorrupt  = errors.New("outbox: invalid record")
)

// -------------------- Record --------------------

type Record struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const metaSize = 1 + 4 + 8

// [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r Record) []byte {
	buf := make([]byte, metaSize+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[metaSize:], r.Payload)
	return buf
}

func decodeRecord(seq uint64, b []byte) (Record, error) {
	if len(b) < metaSize {
		return Record{}, errors.Wrapf(ErrCorrupt, "seq %d: %d bytes", seq, len(b))
	}
	return Record{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[metaSize:]...),
	}, nil
}

// -------------------- Outbox --------------------

type Outbox struct {
	db  *pebble.DB
	now func() time.Time
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open outbox %s", dir)
	}
	return &Outbox{db: db, now: time.Now}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Put stores payload as a NEW record. Re-putting a sequence resets it.
func (o *Outbox) Put(seq uint64, payload []byte) error {
	return o.db.Set(keyFor(seq), encodeRecord(Record{State: StateNew, Payload: payload}), pebble.Sync)
}

// Mark moves a record to state, stamping the attempt time. The payload is
// kept.
func (o *Outbox) Mark(seq uint64, state State, retries uint32) error {
	rec, err := o.Get(seq)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = o.now().UnixNano()
	return o.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

func (o *Outbox) Get(seq uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return Record{}, errors.Wrapf(ErrNotFound, "seq %d", seq)
	}
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()

	return decodeRecord(seq, val)
}

// -------------------- Scan --------------------

// ScanByState visits records in state in sequence order.
func (o *Outbox) ScanByState(state State, fn func(Record) error) error {
	return o.scan(func(r Record) error {
		if r.State != state {
			return nil
		}
		return fn(r)
	})
}

// DeleteAcked removes every ACKED record in one batch.
func (o *Outbox) DeleteAcked() (int, error) {
	b := o.db.NewBatch()
	defer b.Close()

	n := 0
	err := o.ScanByState(StateAcked, func(r Record) error {
		n++
		return b.Delete(keyFor(r.Seq), nil)
	})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return n, b.Commit(pebble.Sync)
}

func (o *Outbox) scan(fn func(Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

const keyPrefix = "event/"

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	seq, err := strconv.ParseUint(strings.TrimPrefix(string(b), keyPrefix), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrCorrupt, "key %q", b)
	}
	return seq, nil
}
