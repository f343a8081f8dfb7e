// Package frame cuts candidate JSON objects out of an unframed text stream.
//
// A candidate runs from the first '{' in the buffer to the first '}' after it.
// Nested objects are not supported: the producers this serves emit flat
// objects only. A candidate that is not valid JSON is dropped and the buffer
// advances to the next '{' after the offending '}'.
package frame

import (
	"bytes"

	"github.com/bytedance/sonic"
)

// DefaultMaxBuffered bounds the bytes held while waiting for a closing brace.
const DefaultMaxBuffered = 1 << 20

// State is the framing state after the last Feed or Next.
type State uint8

const (
	// Accumulating means no complete candidate is buffered.
	Accumulating State = iota
	// FrameReady means a complete candidate is buffered.
	FrameReady
	// Resynchronizing means the last candidate was invalid and was skipped.
	Resynchronizing
)

func (s State) String() string {
	switch s {
	case FrameReady:
		return "frame_ready"
	case Resynchronizing:
		return "resynchronizing"
	default:
		return "accumulating"
	}
}

// Framer is not safe for concurrent use. Each source owns one.
type Framer struct {
	buf         []byte
	maxBuffered int
	state       State

	resyncs   uint64
	overflows uint64
}

// NewFramer creates a framer. A non-positive maxBuffered uses DefaultMaxBuffered.
func NewFramer(maxBuffered int) *Framer {
	if maxBuffered <= 0 {
		maxBuffered = DefaultMaxBuffered
	}
	return &Framer{maxBuffered: maxBuffered}
}

// Feed appends chunk to the buffer. Chunks are concatenated as-is.
func (f *Framer) Feed(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	f.buf = append(f.buf, chunk...)
	f.dropLeadingGarbage()
	f.state = f.peekState()
	if len(f.buf) > f.maxBuffered && f.state == Accumulating {
		f.overflows++
		f.buf = f.buf[:0]
	}
}

// FeedString is Feed for string input.
func (f *Framer) FeedString(chunk string) {
	f.Feed([]byte(chunk))
}

// Next returns the next valid candidate and removes it from the buffer.
// Invalid candidates met on the way are skipped. It reports false when no
// complete candidate remains.
func (f *Framer) Next() (string, bool) {
	for {
		start := bytes.IndexByte(f.buf, '{')
		if start < 0 {
			f.buf = f.buf[:0]
			f.state = Accumulating
			return "", false
		}
		rel := bytes.IndexByte(f.buf[start:], '}')
		if rel < 0 {
			f.consume(start)
			f.state = Accumulating
			return "", false
		}
		end := start + rel

		candidate := string(f.buf[start : end+1])
		if sonic.ValidString(candidate) {
			f.consume(end + 1)
			f.state = f.peekState()
			return candidate, true
		}

		f.resyncs++
		f.state = Resynchronizing
		if next := bytes.IndexByte(f.buf[end+1:], '{'); next >= 0 {
			f.consume(end + 1 + next)
			continue
		}
		f.buf = f.buf[:0]
		return "", false
	}
}

// State returns the current framing state.
func (f *Framer) State() State {
	return f.state
}

// Buffered returns the number of bytes waiting for a frame to complete.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Resyncs returns how many invalid candidates were skipped.
func (f *Framer) Resyncs() uint64 {
	return f.resyncs
}

// Overflows returns how many times the buffer was cleared for exceeding its bound.
func (f *Framer) Overflows() uint64 {
	return f.overflows
}

// Reset drops any buffered bytes.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.state = Accumulating
}

func (f *Framer) consume(n int) {
	if n <= 0 {
		return
	}
	m := copy(f.buf, f.buf[n:])
	f.buf = f.buf[:m]
}

// dropLeadingGarbage discards bytes before the first '{'. With no '{' at all
// the whole buffer is garbage.
func (f *Framer) dropLeadingGarbage() {
	start := bytes.IndexByte(f.buf, '{')
	if start < 0 {
		f.buf = f.buf[:0]
		return
	}
	f.consume(start)
}

func (f *Framer) peekState() State {
	start := bytes.IndexByte(f.buf, '{')
	if start < 0 {
		return Accumulating
	}
	if bytes.IndexByte(f.buf[start:], '}') < 0 {
		return Accumulating
	}
	return FrameReady
}
