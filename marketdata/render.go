package marketdata

import (
	"encoding/json"

	"matchbook/domain/event"
)

type Level struct {
	Price    float64 `json:"price"`
	Quantity uint64  `json:"quantity"`
}

// Document is the public shape of a book snapshot. Both sides are best
// level first.
type Document struct {
	Symbol    string  `json:"symbol"`
	Timestamp string  `json:"timestamp"`
	Bids      []Level `json:"bids"`
	Asks      []Level `json:"asks"`
}

func NewDocument(s event.BookSnapshot) Document {
	d := Document{
		Symbol:    s.Symbol,
		Timestamp: event.FormatTime(s.Time),
		Bids:      make([]Level, 0, len(s.Bids)),
		Asks:      make([]Level, 0, len(s.Asks)),
	}
	for _, l := range s.Bids {
		d.Bids = append(d.Bids, Level{Price: l.Price, Quantity: l.Quantity})
	}
	for _, l := range s.Asks {
		d.Asks = append(d.Asks, Level{Price: l.Price, Quantity: l.Quantity})
	}
	return d
}

// Render is the indented JSON written to the market-data file and pushed
// to subscribers.
func Render(s event.BookSnapshot) ([]byte, error) {
	return json.MarshalIndent(NewDocument(s), "", "  ")
}
