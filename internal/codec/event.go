package codec

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"mbo/internal/schema"
	"mbo/pkg/exception"
)

var decodeAPI = sonic.Config{UseNumber: true}.Froze()

// DecodeEvent validates raw against the message schema and returns the parsed
// event. On failure the returned Event is the zero value and the error wraps
// one of ErrEmptyMessage, ErrMalformedMessage, ErrNotObject, ErrMissingField
// or ErrFieldShape.
func DecodeEvent(raw string) (schema.Event, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return schema.Event{}, exception.ErrEmptyMessage
	}
	if !sonic.ValidString(trimmed) {
		return schema.Event{}, errors.Wrap(exception.ErrMalformedMessage).With("size", len(raw))
	}
	if trimmed[0] != '{' {
		return schema.Event{}, errors.Wrap(exception.ErrNotObject).With("leading", string(trimmed[0]))
	}

	fields := make(map[string]any, len(schema.RequiredFields)+1)
	if err := decodeAPI.UnmarshalFromString(trimmed, &fields); err != nil {
		return schema.Event{}, errors.Wrap(exception.ErrMalformedMessage, err.Error())
	}

	for _, name := range schema.RequiredFields {
		if v, ok := fields[name]; !ok || v == nil {
			return schema.Event{}, missing(name)
		}
	}

	var (
		e   schema.Event
		err error
	)
	var kind string
	if kind, err = stringField(fields, schema.FieldKind); err != nil {
		return schema.Event{}, err
	}
	e.Kind = schema.Kind(kind)
	if e.Symbol, err = stringField(fields, schema.FieldSymbol); err != nil {
		return schema.Event{}, err
	}
	if e.Timestamp, err = intField(fields, schema.FieldTimestamp); err != nil {
		return schema.Event{}, err
	}
	if e.Quantity, err = intField(fields, schema.FieldQuantity); err != nil {
		return schema.Event{}, err
	}
	if e.Quantity < 0 {
		return schema.Event{}, shape(schema.FieldQuantity, "negative")
	}
	if e.Price, err = floatField(fields, schema.FieldPrice); err != nil {
		return schema.Event{}, err
	}
	if e.Side, err = stringField(fields, schema.FieldSide); err != nil {
		return schema.Event{}, err
	}
	if e.OrderID, err = stringField(fields, schema.FieldOrderID); err != nil {
		return schema.Event{}, err
	}
	if e.Attribution, err = stringField(fields, schema.FieldAttribution); err != nil {
		return schema.Event{}, err
	}
	if e.MatchID, err = stringField(fields, schema.FieldMatchID); err != nil {
		return schema.Event{}, err
	}

	// nid is optional; a null counts as absent.
	if v, ok := fields[schema.FieldNewID]; ok && v != nil {
		if e.NewID, err = stringField(fields, schema.FieldNewID); err != nil {
			return schema.Event{}, err
		}
		e.HasNewID = true
	}

	return e, nil
}

func missing(name string) error {
	return errors.Wrapf(exception.ErrMissingField, "field %q", name).With("field", name)
}

func shape(name, want string) error {
	return errors.Wrapf(exception.ErrFieldShape, "field %q: %s", name, want).With("field", name)
}

func stringField(fields map[string]any, name string) (string, error) {
	s, ok := fields[name].(string)
	if !ok {
		return "", shape(name, "want string")
	}
	return s, nil
}

func intField(fields map[string]any, name string) (int64, error) {
	switch v := fields[name].(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil || !integral(f) {
			return 0, shape(name, "want integer")
		}
		return int64(f), nil
	case float64:
		if !integral(v) {
			return 0, shape(name, "want integer")
		}
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return 0, shape(name, "want integer")
	}
}

func floatField(fields map[string]any, name string) (float64, error) {
	var f float64
	switch v := fields[name].(type) {
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, shape(name, "want number")
		}
		f = parsed
	case float64:
		f = v
	case int64:
		f = float64(v)
	default:
		return 0, shape(name, "want number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, shape(name, "want finite number")
	}
	return f, nil
}

func integral(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f) &&
		f >= math.MinInt64 && f < math.MaxInt64
}
