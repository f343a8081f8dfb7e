package sink

import (
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"mbo/internal/recorder"
	"mbo/pkg/exception"
)

// File appends points as line protocol to rotating segment files.
type File struct {
	w       *recorder.Writer
	onDrop  func(error)
	dropped atomic.Uint64
	dropLog logs.Logger
}

// NewFile creates the sink on a started writer. Close closes w.
func NewFile(w *recorder.Writer, onDrop func(error)) (*File, error) {
	if w == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "file sink: nil writer")
	}
	return &File{
		w:       w,
		onDrop:  onDrop,
		dropLog: logs.NewTickerLogger(logs.LevelWarn, 5*time.Second).With("sink", "file"),
	}, nil
}

// Write enqueues p without blocking.
func (f *File) Write(p Point) {
	if err := f.w.TryAppend(AppendLine(nil, p)); err != nil {
		n := f.dropped.Add(1)
		if f.onDrop != nil {
			f.onDrop(err)
		}
		f.dropLog.Warnf("point dropped, total %d, err: %+v", n, err)
	}
}

// Close flushes and closes the segment writer.
func (f *File) Close() error {
	return f.w.Close()
}

// Stats reports the delivery counters.
func (f *File) Stats() []Stats {
	return []Stats{{
		Name:    "file",
		Written: f.w.Written(),
		Dropped: f.dropped.Load(),
	}}
}
