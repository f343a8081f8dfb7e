package feed

import (
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"mbo/internal/codec"
	"mbo/internal/mdg"
	"mbo/pkg/exception"
)

// DefaultSimulatedInterval is the pause between two sweeps.
const DefaultSimulatedInterval = 500 * time.Millisecond

// Simulated synthesizes one well-formed message per symbol on every sweep.
type Simulated struct {
	proc     Processor
	gen      *mdg.Generator
	streamID string
	interval time.Duration
	log      logs.Logger
}

// NewSimulated creates a simulated worker. interval <= 0 uses
// DefaultSimulatedInterval.
func NewSimulated(proc Processor, gen *mdg.Generator, streamID string, interval time.Duration) (*Simulated, error) {
	if proc == nil || gen == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "simulated worker")
	}
	if interval <= 0 {
		interval = DefaultSimulatedInterval
	}
	return &Simulated{
		proc:     proc,
		gen:      gen,
		streamID: streamID,
		interval: interval,
		log:      logs.With("worker", "simulated", "stream", streamID),
	}, nil
}

func (w *Simulated) Run(stop *Signal, requests *atomic.Int64) {
	for !stop.Stopped() {
		for _, e := range w.gen.Sweep(time.Now()) {
			if stop.Stopped() {
				return
			}
			raw, err := codec.EncodeEvent(e)
			if err != nil {
				w.log.WithError(err).Error("encode simulated event")
				continue
			}
			w.proc.Process(raw, w.streamID)
			requests.Add(1)
		}
		if !stop.Sleep(w.interval) {
			return
		}
	}
}
