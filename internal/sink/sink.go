// Package sink forwards classified order-book points to durable storage.
//
// A Sink must be safe for concurrent use and must not block the caller for
// longer than a local enqueue: Write is fire-and-forget and reports nothing.
// Queue-backed sinks drop and count points they cannot accept.
package sink

import (
	"github.com/yanun0323/errors"

	"mbo/internal/schema"
)

// Point is one forwarded event.
type Point struct {
	Measurement string      `json:"measurement"`
	Kind        schema.Kind `json:"kind"`
	Symbol      string      `json:"symbol"`
	Price       float64     `json:"price"`
	Timestamp   int64       `json:"timestamp"`
	Quantity    int64       `json:"quantity"`
	Side        string      `json:"side"`
	OrderID     string      `json:"order_id"`
	Attribution string      `json:"attribution"`
	MatchID     string      `json:"match_id"`
	RunID       string      `json:"run_id,omitempty"`
	Seq         uint64      `json:"seq,omitempty"`
}

// Sink accepts points.
type Sink interface {
	Write(p Point)
}

// Closer is implemented by sinks holding connections or background goroutines.
type Closer interface {
	Close() error
}

// Stats describes the delivery counters of one sink.
type Stats struct {
	Name    string
	Written uint64
	Dropped uint64
	Failed  uint64
}

// Reporter is implemented by sinks that keep delivery counters.
type Reporter interface {
	Stats() []Stats
}

// Func adapts a function to Sink.
type Func func(p Point)

// Write calls f.
func (f Func) Write(p Point) {
	f(p)
}

// Fanout writes every point to each of its sinks in order.
type Fanout []Sink

// Write forwards p to every sink.
func (f Fanout) Write(p Point) {
	for _, s := range f {
		s.Write(p)
	}
}

// Close closes every sink that is a Closer and joins their errors.
func (f Fanout) Close() error {
	var errs []error
	for _, s := range f {
		if c, ok := s.(Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Stats concatenates the stats of every reporting sink.
func (f Fanout) Stats() []Stats {
	var out []Stats
	for _, s := range f {
		if r, ok := s.(Reporter); ok {
			out = append(out, r.Stats()...)
		}
	}
	return out
}

// Close closes s when it is a Closer.
func Close(s Sink) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}

// CollectStats returns the stats of s when it is a Reporter.
func CollectStats(s Sink) []Stats {
	if r, ok := s.(Reporter); ok {
		return r.Stats()
	}
	return nil
}
