// Package chaos damages a message stream: drops, duplicates, reorders and
// corrupts raw messages to exercise the ingestion error paths.
package chaos

import (
	"math/rand/v2"
	"time"

	"github.com/yanun0323/errors"

	"mbo/internal/mdg"
	"mbo/pkg/exception"
)

// Config controls chaos injection behavior.
type Config struct {
	Seed          uint64
	DropRate      float64
	DuplicateRate float64
	CorruptRate   float64
	ReorderWindow int
}

// Engine applies chaos rules to messages. It is not safe for concurrent use.
type Engine struct {
	cfg     Config
	rng     *rand.Rand
	pending []string

	dropped    uint64
	duplicated uint64
	corrupted  uint64
}

// NewEngine creates a chaos engine with validation.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.ReorderWindow <= 0 {
		cfg.ReorderWindow = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UTC().UnixNano())
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed>>1|1)),
	}, nil
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	for name, rate := range map[string]float64{
		"dropRate":      c.DropRate,
		"duplicateRate": c.DuplicateRate,
		"corruptRate":   c.CorruptRate,
	} {
		if rate < 0 || rate > 1 {
			return errors.Wrapf(exception.ErrInvalidConfig, "%s must be between 0 and 1", name)
		}
	}
	if c.ReorderWindow <= 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "reorderWindow must be >= 1")
	}
	return nil
}

// Process applies chaos to a single message and returns the messages to emit.
func (e *Engine) Process(raw string) []string {
	if e == nil {
		return []string{raw}
	}
	if e.hit(e.cfg.DropRate) {
		e.dropped++
		return nil
	}
	if fault := mdg.RandomFault(e.rng, e.cfg.CorruptRate); fault != mdg.FaultNone {
		e.corrupted++
		raw = mdg.Corrupt(raw, fault)
	}
	if e.cfg.ReorderWindow <= 1 {
		return e.applyDuplicate(raw)
	}
	e.pending = append(e.pending, raw)
	if len(e.pending) < e.cfg.ReorderWindow {
		return nil
	}
	return e.applyDuplicate(e.take())
}

// Flush returns any buffered messages after processing completes.
func (e *Engine) Flush() []string {
	if e == nil || len(e.pending) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.pending))
	for len(e.pending) > 0 {
		out = append(out, e.applyDuplicate(e.take())...)
	}
	return out
}

// Counts returns how many messages were dropped, duplicated and corrupted.
func (e *Engine) Counts() (dropped, duplicated, corrupted uint64) {
	return e.dropped, e.duplicated, e.corrupted
}

func (e *Engine) take() string {
	idx := e.rng.IntN(len(e.pending))
	out := e.pending[idx]
	e.pending = append(e.pending[:idx], e.pending[idx+1:]...)
	return out
}

func (e *Engine) hit(rate float64) bool {
	return rate > 0 && e.rng.Float64() < rate
}

func (e *Engine) applyDuplicate(raw string) []string {
	if e.hit(e.cfg.DuplicateRate) {
		e.duplicated++
		return []string{raw, raw}
	}
	return []string{raw}
}
