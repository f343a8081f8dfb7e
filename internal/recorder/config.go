package recorder

import (
	"time"

	"github.com/yanun0323/errors"

	"mbo/pkg/exception"
)

const (
	defaultSegmentMaxBytes int64 = 256 << 20
	defaultQueueSize             = 4096
	defaultBufferSize            = 256 * 1024
	defaultFilePrefix            = "segment"
	defaultFileExt               = "log"
)

var defaultSegmentMaxDuration = 5 * time.Minute

// Config controls segment writer behavior.
type Config struct {
	Dir                string
	SegmentMaxBytes    int64
	SegmentMaxDuration time.Duration
	QueueSize          int
	BufferSize         int
	FilePrefix         string
	// FileExt is the segment file extension without the dot.
	FileExt       string
	FlushInterval time.Duration
	SyncInterval  time.Duration
	CopyPayload   bool
}

// DefaultConfig returns a baseline configuration for the segment writer.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:                dir,
		SegmentMaxBytes:    defaultSegmentMaxBytes,
		SegmentMaxDuration: defaultSegmentMaxDuration,
		QueueSize:          defaultQueueSize,
		BufferSize:         defaultBufferSize,
		FilePrefix:         defaultFilePrefix,
		FileExt:            defaultFileExt,
		FlushInterval:      time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.SegmentMaxBytes == 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	if c.FileExt == "" {
		c.FileExt = defaultFileExt
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	invalid := func(msg string) error {
		return errors.Wrap(exception.ErrInvalidConfig, "recorder: "+msg)
	}
	if c.Dir == "" {
		return invalid("Dir is empty")
	}
	if c.SegmentMaxBytes <= 0 {
		return invalid("SegmentMaxBytes must be > 0")
	}
	if c.QueueSize <= 0 {
		return invalid("QueueSize must be > 0")
	}
	if c.BufferSize <= 0 {
		return invalid("BufferSize must be > 0")
	}
	if c.FilePrefix == "" {
		return invalid("FilePrefix is empty")
	}
	if c.FlushInterval < 0 {
		return invalid("FlushInterval must be >= 0")
	}
	if c.SyncInterval < 0 {
		return invalid("SyncInterval must be >= 0")
	}
	return nil
}
