package recorder

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

func TestWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir, QueueSize: 16})
	require.NoError(t, err)

	assert.True(t, errors.Is(w.TryAppend([]byte("early")), ErrNotStarted))

	require.NoError(t, w.Start(t.Context()))
	assert.True(t, errors.Is(w.Start(t.Context()), ErrAlreadyStarted))

	for _, rec := range []string{"one", "two", "three"} {
		require.NoError(t, w.TryAppend([]byte(rec)))
	}
	assert.True(t, errors.Is(w.TryAppend([]byte("a\nb")), ErrMultiline))
	require.NoError(t, w.Close())
	assert.True(t, errors.Is(w.TryAppend([]byte("late")), ErrClosed))
	assert.Equal(t, uint64(3), w.Written())

	var got []string
	p, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, p.Run(t.Context(), func(rec []byte) error {
		got = append(got, string(rec))
		return nil
	}))
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestWriterRotatesBySize(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir, SegmentMaxBytes: 8, FileExt: "lp"})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	for _, rec := range []string{"aaaa", "bbbb", "cccc"} {
		require.NoError(t, w.TryAppend([]byte(rec)))
	}
	require.NoError(t, w.Close())

	files, err := Segments(w.Config())
	require.NoError(t, err)
	assert.Len(t, files, 3)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "aaaa\n", string(data))
}

func TestValidate(t *testing.T) {
	_, err := NewWriter(Config{})
	require.Error(t, err)

	_, err = NewPlayback(PlaybackConfig{Dir: "x", Interval: -time.Second})
	require.Error(t, err)
}

type countingClock struct{ n int }

func (c *countingClock) Sleep(context.Context, time.Duration) error {
	c.n++
	return nil
}

func TestPlaybackUsesClock(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Start(t.Context()))
	require.NoError(t, w.TryAppend([]byte("x")))
	require.NoError(t, w.TryAppend([]byte("y")))
	require.NoError(t, w.Close())

	clock := &countingClock{}
	p, err := NewPlayback(PlaybackConfig{Dir: dir, Interval: time.Hour})
	require.NoError(t, err)
	p.WithClock(clock)

	n := 0
	require.NoError(t, p.Run(t.Context(), func([]byte) error { n++; return nil }))
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, clock.n)
}
