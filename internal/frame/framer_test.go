package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(f *Framer) []string {
	var out []string
	for {
		s, ok := f.Next()
		if !ok {
			return out
		}
		out = append(out, s)
	}
}

func TestFramerSplitAcrossChunks(t *testing.T) {
	f := NewFramer(0)

	f.FeedString(`{"a":`)
	assert.Equal(t, Accumulating, f.State())
	_, ok := f.Next()
	assert.False(t, ok)

	f.FeedString(`1}`)
	assert.Equal(t, FrameReady, f.State())
	s, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, s)
	assert.Equal(t, 0, f.Buffered())
}

func TestFramerMultipleFramesInOneChunk(t *testing.T) {
	f := NewFramer(0)
	f.FeedString(`{"a":1}{"b":2}  {"c":3}`)
	assert.Equal(t, []string{`{"a":1}`, `{"b":2}`, `{"c":3}`}, drain(f))
	assert.Equal(t, Accumulating, f.State())
}

func TestFramerDiscardsLeadingGarbage(t *testing.T) {
	f := NewFramer(0)
	f.FeedString(`noise noise`)
	assert.Equal(t, 0, f.Buffered())

	f.FeedString(`xx{"a":1}`)
	assert.Equal(t, []string{`{"a":1}`}, drain(f))
}

func TestFramerResyncToNextBrace(t *testing.T) {
	f := NewFramer(0)
	f.FeedString(`{bad json}{"ok":true}`)

	s, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, `{"ok":true}`, s)
	assert.Equal(t, uint64(1), f.Resyncs())
}

func TestFramerResyncClearsWhenNoNextBrace(t *testing.T) {
	f := NewFramer(0)
	f.FeedString(`{bad}trailing`)

	_, ok := f.Next()
	assert.False(t, ok)
	assert.Equal(t, Resynchronizing, f.State())
	assert.Equal(t, 0, f.Buffered())

	f.FeedString(`{"x":1}`)
	assert.Equal(t, []string{`{"x":1}`}, drain(f))
}

func TestFramerNestedObjectIsNotSupported(t *testing.T) {
	f := NewFramer(0)
	f.FeedString(`{"a":{"b":1}}`)
	assert.Empty(t, drain(f))
	assert.Equal(t, uint64(1), f.Resyncs())
}

func TestFramerOverflow(t *testing.T) {
	f := NewFramer(16)
	f.FeedString(`{"a":"0123456789`)
	f.FeedString(`0123456789`)
	assert.Equal(t, 0, f.Buffered())
	assert.Equal(t, uint64(1), f.Overflows())

	f.FeedString(`{"b":2}`)
	assert.Equal(t, []string{`{"b":2}`}, drain(f))
}

func TestFramerReset(t *testing.T) {
	f := NewFramer(0)
	f.FeedString(`{"a":`)
	f.Reset()
	assert.Equal(t, 0, f.Buffered())
	assert.Equal(t, Accumulating, f.State())
}
