package entry

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/cockroachdb/errors"
)

// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4], big endian.
// The CRC covers header and payload.
const headerSize = 1 + 8 + 8 + 4

var ErrCorrupt = errors.New("wal: corrupt record")

var crcTable = crc32.MakeTable(crc32.Castagnoli)

func encode(r *Record) []byte {
	n := uint32(len(r.Data))
	buf := make([]byte, headerSize+n+4)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], n)
	copy(buf[headerSize:], r.Data)

	binary.BigEndian.PutUint32(buf[headerSize+n:], crc32.Checksum(buf[:headerSize+n], crcTable))
	return buf
}

// decode reads one frame. io.EOF means a clean end; io.ErrUnexpectedEOF
// means the last frame was torn.
func decode(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[17:21])

	body := make([]byte, n+4)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	h := crc32.New(crcTable)
	_, _ = h.Write(header)
	_, _ = h.Write(body[:n])
	if got, want := h.Sum32(), binary.BigEndian.Uint32(body[n:]); got != want {
		return nil, errors.Wrapf(ErrCorrupt, "crc %08x want %08x", got, want)
	}

	return &Record{
		Type: RecordType(header[0]),
		Seq:  binary.BigEndian.Uint64(header[1:9]),
		Time: int64(binary.BigEndian.Uint64(header[9:17])),
		Data: body[:n],
	}, nil
}
