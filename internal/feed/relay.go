package feed

import (
	"sync/atomic"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"mbo/pkg/exception"
)

// Relay forwards frames from a shared Source to the Processor. Several
// relays may drain one source; each frame goes to exactly one of them.
type Relay struct {
	proc     Processor
	src      Source
	streamID string
	log      logs.Logger
}

// NewRelay creates a relay worker over src.
func NewRelay(proc Processor, src Source, streamID string) (*Relay, error) {
	if proc == nil || src == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "relay worker")
	}
	return &Relay{
		proc:     proc,
		src:      src,
		streamID: streamID,
		log:      logs.With("worker", "relay", "stream", streamID),
	}, nil
}

// Run returns when stop is set or the source is exhausted.
func (w *Relay) Run(stop *Signal, requests *atomic.Int64) {
	frames := w.src.Frames()
	for {
		select {
		case <-stop.Done():
			return
		case f, ok := <-frames:
			if !ok {
				w.log.Info("source ended")
				return
			}
			w.proc.Process(f, w.streamID)
			requests.Add(1)
		}
	}
}
