package codec

import (
	"github.com/bytedance/sonic"

	"mbo/internal/schema"
)

type wireEvent struct {
	Kind        string  `json:"type"`
	Symbol      string  `json:"s"`
	Timestamp   int64   `json:"tm"`
	Quantity    int64   `json:"q"`
	Price       float64 `json:"p"`
	Side        string  `json:"x"`
	OrderID     string  `json:"id"`
	Attribution string  `json:"a"`
	MatchID     string  `json:"mid"`
	NewID       *string `json:"nid,omitempty"`
}

// EncodeEvent renders e as a single-line JSON message.
func EncodeEvent(e schema.Event) (string, error) {
	w := wireEvent{
		Kind:        e.Kind.String(),
		Symbol:      e.Symbol,
		Timestamp:   e.Timestamp,
		Quantity:    e.Quantity,
		Price:       e.Price,
		Side:        e.Side,
		OrderID:     e.OrderID,
		Attribution: e.Attribution,
		MatchID:     e.MatchID,
	}
	if e.HasNewID {
		nid := e.NewID
		w.NewID = &nid
	}
	return sonic.MarshalString(w)
}
