package entry

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

type ReplayHandler func(*Record) error

// Replay feeds every record in dir to fn in sequence order and returns the
// last sequence seen. A torn frame at the very end of the newest segment is
// treated as the end of the log; anywhere else it is corruption.
func Replay(dir string, fn ReplayHandler) (lastSeq uint64, err error) {
	paths, _, err := segments(dir)
	if err != nil {
		return 0, err
	}

	for i, path := range paths {
		last := i == len(paths)-1
		lastSeq, err = replaySegment(path, last, lastSeq, fn)
		if err != nil {
			return lastSeq, err
		}
	}
	return lastSeq, nil
}

func replaySegment(path string, newest bool, lastSeq uint64, fn ReplayHandler) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return lastSeq, err
	}
	defer f.Close()

	for {
		rec, err := decode(f)
		switch {
		case err == io.EOF:
			return lastSeq, nil
		case err == io.ErrUnexpectedEOF && newest:
			return lastSeq, nil
		case err == io.ErrUnexpectedEOF:
			return lastSeq, errors.Wrapf(ErrCorrupt, "%s: truncated frame", path)
		case err != nil:
			return lastSeq, errors.Wrapf(err, "%s", path)
		}

		if rec.Seq <= lastSeq {
			return lastSeq, errors.Wrapf(ErrCorrupt, "%s: non-monotonic seq %d after %d", path, rec.Seq, lastSeq)
		}
		lastSeq = rec.Seq

		if err := fn(rec); err != nil {
			return lastSeq, err
		}
	}
}
