// Package entry is the write-ahead log for raw inbound messages. Every
// message is framed and appended before it is parsed.
package entry

import (
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"matchbook/infra/sequence"
)

const DefaultSegmentSize = 64 << 20

var ErrClosed = errors.New("wal: closed")

type Config struct {
	Dir         string
	SegmentSize int64
	// Sync fsyncs after every append.
	Sync bool
}

// WAL is safe for concurrent Append. Sequence numbers continue from the
// highest one already on disk.
type WAL struct {
	mu      sync.Mutex
	dir     string
	segSize int64
	sync    bool
	current *segment
	seq     *sequence.Sequencer
	now     func() time.Time
}

func Open(cfg Config) (*WAL, error) {
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = DefaultSegmentSize
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create wal dir %s", cfg.Dir)
	}

	paths, idx, err := segments(cfg.Dir)
	if err != nil {
		return nil, err
	}

	if len(paths) > 0 {
		if err := trimTornTail(paths[len(paths)-1]); err != nil {
			return nil, err
		}
	}

	var last uint64
	for _, p := range paths {
		m, err := maxSeqInSegment(p)
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", p)
		}
		if m > last {
			last = m
		}
	}

	index := 0
	if len(idx) > 0 {
		index = idx[len(idx)-1]
	}
	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:     cfg.Dir,
		segSize: cfg.SegmentSize,
		sync:    cfg.Sync,
		current: seg,
		seq:     sequence.New(last),
		now:     time.Now,
	}, nil
}

// trimTornTail cuts a partially written last frame so new appends start on
// a frame boundary.
func trimTornTail(path string) error {
	n, err := intactLength(path)
	if err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	if n < st.Size() {
		if err := os.Truncate(path, n); err != nil {
			return errors.Wrapf(err, "trim torn tail of %s", path)
		}
	}
	return nil
}

// Append frames data as the next record and returns its sequence.
func (w *WAL) Append(t RecordType, data []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == nil {
		return 0, ErrClosed
	}

	rec := &Record{Type: t, Seq: w.seq.Current() + 1, Time: w.now().UnixNano(), Data: data}
	if err := w.current.append(encode(rec)); err != nil {
		return 0, errors.Wrap(err, "wal append")
	}
	w.seq.Next()

	if w.sync {
		if err := w.current.file.Sync(); err != nil {
			return rec.Seq, errors.Wrap(err, "wal sync")
		}
	}
	if w.current.offset >= w.segSize {
		if err := w.rotate(); err != nil {
			return rec.Seq, err
		}
	}
	return rec.Seq, nil
}

// LastSeq is the sequence of the most recent append.
func (w *WAL) LastSeq() uint64 { return w.seq.Current() }

func (w *WAL) Dir() string { return w.dir }

func (w *WAL) rotate() error {
	_ = w.current.close()

	seg, err := openSegment(w.dir, w.current.index+1)
	if err != nil {
		w.current = nil
		return errors.Wrap(err, "wal rotate")
	}
	w.current = seg
	return nil
}

// TruncateBefore deletes closed segments whose records are all at or below
// seq. The active segment is never removed.
func (w *WAL) TruncateBefore(seq uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths, idx, err := segments(w.dir)
	if err != nil {
		return err
	}
	for i, path := range paths {
		if w.current != nil && idx[i] == w.current.index {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return errors.Wrapf(err, "remove %s", path)
			}
		}
	}
	return nil
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == nil {
		return nil
	}
	err := w.current.file.Sync()
	if cerr := w.current.close(); err == nil {
		err = cerr
	}
	w.current = nil
	return err
}
