package entry

import (
	"encoding/binary"
	"io"
	"os"
)

// maxSeqInSegment returns the highest sequence in a segment by reading
// headers only. A torn tail ends the scan without error.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var max uint64
	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return max, nil
			}
			return max, err
		}

		if seq := binary.BigEndian.Uint64(header[1:9]); seq > max {
			max = seq
		}

		n := binary.BigEndian.Uint32(header[17:21])
		if _, err := f.Seek(int64(n)+4, io.SeekCurrent); err != nil {
			return max, err
		}
	}
}

// intactLength returns the byte length of the complete frames at the start
// of a segment, ignoring a torn tail. CRCs are not checked.
func intactLength(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := st.Size()

	var off int64
	header := make([]byte, headerSize)
	for off < size {
		if _, err := f.ReadAt(header, off); err != nil {
			if err == io.EOF {
				return off, nil
			}
			return off, err
		}
		end := off + headerSize + int64(binary.BigEndian.Uint32(header[17:21])) + 4
		if end > size {
			return off, nil
		}
		off = end
	}
	return off, nil
}
