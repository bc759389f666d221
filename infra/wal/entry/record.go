package entry

type RecordType uint8

const (
	// RecordInbound is a raw client message exactly as received.
	RecordInbound RecordType = iota + 1
)

func (t RecordType) String() string {
	if t == RecordInbound {
		return "inbound"
	}
	return "unknown"
}

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}
