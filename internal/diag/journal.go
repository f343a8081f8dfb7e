// Package diag keeps the diagnostic journal written by the ingestion processor.
package diag

import (
	"sync"
	"time"
)

// DefaultCapacity bounds the journal when no capacity is given.
const DefaultCapacity = 10000

// Severity classifies an entry.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "info"
}

// Entry is one diagnostic record. Raw holds the offending input when known.
type Entry struct {
	At       time.Time
	Severity Severity
	Stream   string
	Reason   string
	Raw      string
}

// Journal is an append-only diagnostic log readable while being written.
// Once full, the oldest entries are dropped.
type Journal struct {
	mu      sync.Mutex
	cap     int
	entries []Entry
	start   int
	total   uint64
}

// NewJournal creates a journal holding at most capacity entries.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Journal{cap: capacity, entries: make([]Entry, 0, min(capacity, 256))}
}

// Append records e, stamping it with the current time when At is zero.
func (j *Journal) Append(e Entry) {
	if j == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.total++
	if len(j.entries) < j.cap {
		j.entries = append(j.entries, e)
		return
	}
	j.entries[j.start] = e
	j.start = (j.start + 1) % j.cap
}

// Entries returns a copy of the retained entries, oldest first.
func (j *Journal) Entries() []Entry {
	return j.Tail(-1)
}

// Tail returns the newest n entries, oldest first. A negative n returns all.
func (j *Journal) Tail(n int) []Entry {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	size := len(j.entries)
	if n < 0 || n > size {
		n = size
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = j.entries[(j.start+size-n+i)%size]
	}
	return out
}

// Len returns the number of retained entries.
func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// Total returns the number of entries ever appended, including dropped ones.
func (j *Journal) Total() uint64 {
	if j == nil {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.total
}
