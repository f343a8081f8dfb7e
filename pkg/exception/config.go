package exception

import "github.com/yanun0323/errors"

// Configuration errors
var (
	ErrInvalidConfig       = errors.New("config: invalid value")
	ErrUnsupportedDataMode = errors.New("config: unsupported data mode")
	ErrNoWorkerSlots       = errors.New("pipeline: no worker slots available")
)
