package schema

// MeasurementOrderBook is the sink measurement for every forwarded order-book event.
const MeasurementOrderBook = "order_book"

// Action tells the processor what to do with a decoded event.
type Action uint8

const (
	// ActionUnhandled records a diagnostic and nothing else.
	ActionUnhandled Action = iota
	// ActionWrite forwards the event to the sink as-is.
	ActionWrite
	// ActionReplace forwards the event with the order id swapped for the new id.
	ActionReplace
)

func (a Action) String() string {
	switch a {
	case ActionWrite:
		return "write"
	case ActionReplace:
		return "replace"
	default:
		return "unhandled"
	}
}

// Route is one row of the routing table.
type Route struct {
	Action      Action
	Measurement string
}

var routes = map[Kind]Route{
	KindOBA: {Action: ActionWrite, Measurement: MeasurementOrderBook},
	KindOBF: {Action: ActionWrite, Measurement: MeasurementOrderBook},
	KindOBC: {Action: ActionWrite, Measurement: MeasurementOrderBook},
	KindOBD: {Action: ActionWrite, Measurement: MeasurementOrderBook},
	KindOBB: {Action: ActionWrite, Measurement: MeasurementOrderBook},
	KindOBR: {Action: ActionReplace, Measurement: MeasurementOrderBook},
}

// RouteOf returns the route for kind. Unknown kinds route to ActionUnhandled.
func RouteOf(kind Kind) Route {
	if r, ok := routes[kind]; ok {
		return r
	}
	return Route{Action: ActionUnhandled}
}

// KnownKinds returns the kinds with a routing entry, in declaration order.
func KnownKinds() []Kind {
	return []Kind{KindOBA, KindOBF, KindOBC, KindOBD, KindOBB, KindOBR}
}
