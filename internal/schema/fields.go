package schema

// Wire field names.
const (
	FieldKind        = "type"
	FieldSymbol      = "s"
	FieldTimestamp   = "tm"
	FieldQuantity    = "q"
	FieldPrice       = "p"
	FieldSide        = "x"
	FieldOrderID     = "id"
	FieldAttribution = "a"
	FieldMatchID     = "mid"
	FieldNewID       = "nid"
)

// RequiredFields lists the fields every message must carry, in the order they
// are checked.
var RequiredFields = [...]string{
	FieldKind,
	FieldSymbol,
	FieldTimestamp,
	FieldQuantity,
	FieldPrice,
	FieldSide,
	FieldOrderID,
	FieldAttribution,
	FieldMatchID,
}
