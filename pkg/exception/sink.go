package exception

import "github.com/yanun0323/errors"

// Sink and connection errors
var (
	ErrSinkQueueFull   = errors.New("sink: queue full")
	ErrSinkClosed      = errors.New("sink: closed")
	ErrUnsupportedSink = errors.New("sink: unsupported kind")
	ErrConnectionClose = errors.New("connection closed")
)
