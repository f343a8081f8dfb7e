package sink

import (
	"sync"
	"sync/atomic"

	"github.com/yanun0323/logs"
)

// Log writes every point as a line-protocol log line. It stands in for a
// time-series database in development.
type Log struct {
	mu      sync.Mutex
	logger  logs.Logger
	target  string
	buf     []byte
	written atomic.Uint64
}

// NewLog creates a log sink. target names the database the lines are meant
// for and is only used as a log field.
func NewLog(logger logs.Logger, target string) *Log {
	if logger == nil {
		logger = logs.Default()
	}
	return &Log{logger: logger.With("sink", "log", "target", target), target: target}
}

// Write logs p.
func (l *Log) Write(p Point) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf = AppendLine(l.buf[:0], p)
	l.logger.Info(string(l.buf))
	l.written.Add(1)
}

// Stats reports the number of logged points.
func (l *Log) Stats() []Stats {
	return []Stats{{Name: "log", Written: l.written.Load()}}
}
