package recorder

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/yanun0323/errors"

	"mbo/pkg/exception"
)

// PlaybackConfig controls segment playback.
type PlaybackConfig struct {
	Dir        string
	FilePrefix string
	FileExt    string
	// Interval is the pause between records. Zero replays as fast as the
	// handler accepts.
	Interval      time.Duration
	MaxRecordSize int
}

// Clock allows deterministic playback control.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Playback replays recorded segments in file order.
type Playback struct {
	cfg   PlaybackConfig
	clock Clock
}

// NewPlayback validates the config and creates a playback engine.
func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Playback{cfg: cfg, clock: realClock{}}, nil
}

// WithClock swaps the clock implementation.
func (p *Playback) WithClock(clock Clock) *Playback {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Run replays every record and calls handler for each. It stops at the first
// handler error or when ctx is done.
func (p *Playback) Run(ctx context.Context, handler func([]byte) error) error {
	if handler == nil {
		return errors.Wrap(exception.ErrNilInstance, "playback handler")
	}
	files, err := Segments(Config{Dir: p.cfg.Dir, FilePrefix: p.cfg.FilePrefix, FileExt: p.cfg.FileExt})
	if err != nil {
		return err
	}

	for _, path := range files {
		if err := p.playFile(ctx, path, handler); err != nil {
			return err
		}
	}
	return nil
}

func (c PlaybackConfig) withDefaults() PlaybackConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	if c.FileExt == "" {
		c.FileExt = defaultFileExt
	}
	return c
}

// Validate checks if the config is usable.
func (c PlaybackConfig) Validate() error {
	if c.Dir == "" {
		return errors.Wrap(exception.ErrInvalidConfig, "playback: Dir is empty")
	}
	if c.Interval < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "playback: Interval must be >= 0")
	}
	if c.MaxRecordSize < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "playback: MaxRecordSize must be >= 0")
	}
	return nil
}

func (p *Playback) playFile(ctx context.Context, path string, handler func([]byte) error) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open segment").With("path", path)
	}
	defer file.Close()

	r := NewReader(file, p.cfg.MaxRecordSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "playback").With("path", path)
		}
		if err := handler(rec); err != nil {
			return err
		}
		if err := p.clock.Sleep(ctx, p.cfg.Interval); err != nil {
			return err
		}
	}
}
