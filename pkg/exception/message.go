package exception

import "github.com/yanun0323/errors"

// Message decode errors. Each category is a distinct sentinel so callers can
// tell malformed input apart from incomplete input.
var (
	ErrMalformedMessage = errors.New("message: malformed json")
	ErrNotObject        = errors.New("message: not a json object")
	ErrMissingField     = errors.New("message: missing required field")
	ErrFieldShape       = errors.New("message: field has wrong shape")
	ErrEmptyMessage     = errors.New("message: empty input")
)
