// Package stats tracks per-stream delivery counters.
//
// A stream is one logical producer (e.g. "SIM", "REAL"). Entries are created
// lazily on first use and live until the process exits; Reset zeroes the
// counters at the start of a run without removing entries.
package stats

import (
	"sort"
	"sync/atomic"

	"github.com/yanun0323/pkg/syncs"
)

// Stream holds the counters of one stream.
type Stream struct {
	id       string
	received atomic.Int64
	errors   atomic.Int64
}

// ID returns the stream id.
func (s *Stream) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Received returns the number of messages accepted from the stream.
func (s *Stream) Received() int64 {
	if s == nil {
		return 0
	}
	return s.received.Load()
}

// Errors returns the number of messages from the stream that failed validation.
func (s *Stream) Errors() int64 {
	if s == nil {
		return 0
	}
	return s.errors.Load()
}

// Snapshot is a point-in-time copy of one stream's counters.
type Snapshot struct {
	ID               string
	MessagesReceived int64
	Errors           int64
}

// Registry maps stream id to counters. Safe for concurrent use.
type Registry struct {
	streams syncs.Map[string, *Stream]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// GetOrCreate returns the entry for id, creating it when absent. Concurrent
// callers racing on an unseen id all receive the same entry. The empty id is
// never registered and yields nil.
func (r *Registry) GetOrCreate(id string) *Stream {
	if r == nil || id == "" {
		return nil
	}
	if s, ok := r.streams.Load(id); ok {
		return s
	}
	s, _ := r.streams.LoadOrStore(id, &Stream{id: id})
	return s
}

// Lookup returns the entry for id without creating it.
func (r *Registry) Lookup(id string) (*Stream, bool) {
	if r == nil || id == "" {
		return nil, false
	}
	return r.streams.Load(id)
}

// IncrementReceived adds one accepted message to id, creating the entry when absent.
func (r *Registry) IncrementReceived(id string) {
	if s := r.GetOrCreate(id); s != nil {
		s.received.Add(1)
	}
}

// IncrementError adds one failed message to id. Unknown or empty ids are ignored.
func (r *Registry) IncrementError(id string) {
	if s, ok := r.Lookup(id); ok {
		s.errors.Add(1)
	}
}

// Reset zeroes every counter. Entries are kept.
func (r *Registry) Reset() {
	if r == nil {
		return
	}
	r.streams.Range(func(_ string, s *Stream) bool {
		s.received.Store(0)
		s.errors.Store(0)
		return true
	})
}

// Len returns the number of registered streams.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	r.streams.Range(func(string, *Stream) bool {
		n++
		return true
	})
	return n
}

// Snapshot copies every entry, sorted by id. Each entry's counters are read
// atomically; the set as a whole is not a single consistent cut.
func (r *Registry) Snapshot() []Snapshot {
	if r == nil {
		return nil
	}
	out := make([]Snapshot, 0, 4)
	r.streams.Range(func(id string, s *Stream) bool {
		out = append(out, Snapshot{
			ID:               id,
			MessagesReceived: s.received.Load(),
			Errors:           s.errors.Load(),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
