package feed

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"

	"mbo/internal/mdg"
	"mbo/internal/obs"
	"mbo/internal/recorder"
	"mbo/pkg/exception"
)

// Pool is the set of workers of one run plus the resources they share.
type Pool struct {
	Workers []Worker
	closer  func() error
}

// NewPool groups workers with the func releasing their shared resources.
// closer may be nil.
func NewPool(workers []Worker, closer func() error) Pool {
	return Pool{Workers: workers, closer: closer}
}

// Close releases the resources shared by the workers. Call it after every
// worker returned.
func (p Pool) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

// SimulatedConfig configures simulated workers.
type SimulatedConfig struct {
	Generator mdg.Config
	Interval  time.Duration
}

// RealConfig configures real-feed workers.
type RealConfig struct {
	Fetcher      Fetcher
	PollInterval time.Duration
	FailurePause time.Duration
}

// FactoryConfig holds the per-mode settings workers are built from.
type FactoryConfig struct {
	// StreamIDs overrides Mode.DefaultStreamID.
	StreamIDs map[Mode]string
	Simulated SimulatedConfig
	Real      RealConfig
	// Pipe is shared by every run and is never closed by a Pool.
	Pipe   Source
	Socket SocketConfig
	Replay recorder.PlaybackConfig
	// Source bounds the sources the factory opens itself.
	Source  SourceConfig
	Metrics *obs.Metrics
}

// Factory builds the workers of a run.
type Factory struct {
	proc Processor
	cfg  FactoryConfig
	seq  atomic.Uint64
}

// NewFactory creates a factory feeding proc.
func NewFactory(proc Processor, cfg FactoryConfig) (*Factory, error) {
	if proc == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "worker factory")
	}
	return &Factory{proc: proc, cfg: cfg}, nil
}

// StreamID returns the stream id workers of mode report under.
func (f *Factory) StreamID(mode Mode) string {
	if id, ok := f.cfg.StreamIDs[mode]; ok && id != "" {
		return id
	}
	return mode.DefaultStreamID()
}

// Build creates n workers for mode. Sources opened here are released by
// Pool.Close.
func (f *Factory) Build(ctx context.Context, mode Mode, n int) (Pool, error) {
	if n <= 0 {
		return Pool{}, errors.Wrapf(exception.ErrNoWorkerSlots, "workers %d", n)
	}
	streamID := f.StreamID(mode)

	switch mode {
	case ModeSimulated:
		return f.simulated(streamID, n)
	case ModeReal:
		return f.real(streamID, n)
	case ModePipe:
		if f.cfg.Pipe == nil {
			return Pool{}, errors.Wrap(exception.ErrInvalidConfig, "pipe mode without a source")
		}
		return f.relays(f.cfg.Pipe, streamID, n, nil)
	case ModeSocket:
		src, err := DialSocket(ctx, f.socketConfig())
		if err != nil {
			return Pool{}, err
		}
		return f.relays(src, streamID, n, src.Close)
	case ModeReplay:
		cfg := f.cfg.Replay
		if cfg.MaxRecordSize == 0 {
			cfg.MaxRecordSize = f.cfg.Source.MaxBuffered
		}
		pb, err := recorder.NewPlayback(cfg)
		if err != nil {
			return Pool{}, err
		}
		src, err := NewReplaySource(ctx, pb, f.cfg.Source)
		if err != nil {
			return Pool{}, err
		}
		return f.relays(src, streamID, n, src.Close)
	default:
		return Pool{}, errors.Wrapf(exception.ErrUnsupportedDataMode, "mode %q", mode)
	}
}

func (f *Factory) socketConfig() SocketConfig {
	cfg := f.cfg.Socket
	if cfg.SourceConfig == (SourceConfig{}) {
		cfg.SourceConfig = f.cfg.Source
	}
	return cfg
}

func (f *Factory) simulated(streamID string, n int) (Pool, error) {
	pool := Pool{Workers: make([]Worker, 0, n)}
	seed := f.cfg.Simulated.Generator.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	for i := range n {
		gcfg := f.cfg.Simulated.Generator
		gcfg.Seed = seed + uint64(i)
		gen, err := mdg.NewGenerator(gcfg, &f.seq)
		if err != nil {
			return Pool{}, err
		}
		w, err := NewSimulated(f.proc, gen, streamID, f.cfg.Simulated.Interval)
		if err != nil {
			return Pool{}, err
		}
		pool.Workers = append(pool.Workers, w)
	}
	return pool, nil
}

func (f *Factory) real(streamID string, n int) (Pool, error) {
	if f.cfg.Real.Fetcher == nil {
		return Pool{}, errors.Wrap(exception.ErrInvalidConfig, "real mode without a fetcher")
	}
	pool := Pool{Workers: make([]Worker, 0, n)}
	for range n {
		w, err := NewRealFeed(f.proc, f.cfg.Real.Fetcher, RealFeedConfig{
			StreamID:     streamID,
			PollInterval: f.cfg.Real.PollInterval,
			FailurePause: f.cfg.Real.FailurePause,
			Metrics:      f.cfg.Metrics,
		})
		if err != nil {
			return Pool{}, err
		}
		pool.Workers = append(pool.Workers, w)
	}
	return pool, nil
}

func (f *Factory) relays(src Source, streamID string, n int, closer func() error) (Pool, error) {
	pool := Pool{Workers: make([]Worker, 0, n), closer: closer}
	for range n {
		w, err := NewRelay(f.proc, src, streamID)
		if err != nil {
			if closer != nil {
				_ = closer()
			}
			return Pool{}, err
		}
		pool.Workers = append(pool.Workers, w)
	}
	return pool, nil
}
