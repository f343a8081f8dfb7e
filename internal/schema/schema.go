package schema

// Kind is the short code carried in the "type" field of every order-book message.
type Kind string

const (
	KindOBA Kind = "oba"
	KindOBF Kind = "obf"
	KindOBC Kind = "obc"
	KindOBD Kind = "obd"
	KindOBB Kind = "obb"
	// KindOBR replaces an order id with the id carried in "nid".
	KindOBR Kind = "obr"
)

// String returns the wire code.
func (k Kind) String() string {
	return string(k)
}

// Event is a validated order-book message. Decoders only hand out an Event
// after every required field has been confirmed present.
type Event struct {
	Kind Kind
	// Symbol is the instrument code, e.g. "AAPL".
	Symbol string
	// Timestamp is opaque. Producers send either milliseconds or nanoseconds.
	Timestamp   int64
	Quantity    int64
	Price       float64
	Side        string
	OrderID     string
	Attribution string
	MatchID     string

	NewID    string
	HasNewID bool
}

// EffectiveOrderID is the order id to forward downstream. Replace events carry
// the new id, or an empty string when "nid" was not sent.
func (e Event) EffectiveOrderID() string {
	if e.Kind == KindOBR {
		if !e.HasNewID {
			return ""
		}
		return e.NewID
	}
	return e.OrderID
}
