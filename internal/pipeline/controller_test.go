package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"mbo/internal/feed"
	"mbo/internal/mdg"
	"mbo/internal/sink"
	"mbo/pkg/exception"
)

const validMessage = `{"type":"oba","s":"AAPL","tm":1,"q":10,"p":101.5,"x":"buy","id":"ID1","a":"BrokerA","mid":"MID1"}`

type fakeFactory struct {
	mu      sync.Mutex
	builds  []feed.Mode
	closes  int
	err     error
	produce bool
	linger  time.Duration
	proc    feed.Processor
}

func (f *fakeFactory) StreamID(mode feed.Mode) string {
	return mode.DefaultStreamID()
}

func (f *fakeFactory) Build(_ context.Context, mode feed.Mode, n int) (feed.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return feed.Pool{}, f.err
	}
	f.builds = append(f.builds, mode)

	workers := make([]feed.Worker, 0, n)
	for range n {
		workers = append(workers, feed.WorkerFunc(func(stop *feed.Signal, requests *atomic.Int64) {
			for !stop.Stopped() {
				if f.produce {
					requests.Add(1)
					f.proc.Process(validMessage, mode.DefaultStreamID())
				}
				stop.Sleep(time.Millisecond)
			}
			time.Sleep(f.linger)
		}))
	}
	return feed.NewPool(workers, func() error {
		f.mu.Lock()
		f.closes++
		f.mu.Unlock()
		return nil
	}), nil
}

func (f *fakeFactory) Builds() []feed.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]feed.Mode(nil), f.builds...)
}

func (f *fakeFactory) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func newApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(AppConfig{Sink: sink.Func(func(sink.Point) {})})
	require.NoError(t, err)
	return app
}

func newController(t *testing.T, f *fakeFactory, opt Options) *Controller {
	t.Helper()
	app := newApp(t)
	f.proc = app.Processor
	c, err := NewController(app, f, opt)
	require.NoError(t, err)
	return c
}

func TestControllerLifecycle(t *testing.T) {
	f := &fakeFactory{produce: true}
	c := newController(t, f, Options{TotalCores: 8, ReserveCores: 1})

	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.Running())
	c.Stop()

	require.NoError(t, c.Start(t.Context()))
	require.NoError(t, c.Start(t.Context()))
	assert.Len(t, f.Builds(), 1)
	assert.True(t, c.Running())

	st := c.Status()
	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, 7, st.Workers)
	assert.Equal(t, feed.ModeSimulated, st.Mode)
	assert.Equal(t, "SIM", st.StreamID)
	assert.NotEmpty(t, st.RunID)
	assert.Equal(t, st.RunID, c.App().Processor.RunID())

	require.Eventually(t, func() bool { return c.Status().Requests >= 10 }, 2*time.Second, time.Millisecond)

	c.Stop()
	c.Stop()
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.Running())
	assert.Equal(t, 1, f.Closes())
	assert.Zero(t, c.Status().Workers)

	st = c.Status()
	require.Len(t, st.Streams, 1)
	assert.Equal(t, st.Requests, st.Streams[0].MessagesReceived)
	assert.Zero(t, st.Errors)
	assert.Equal(t, []string{"AAPL"}, st.Symbols)
}

func TestControllerStartResetsRunState(t *testing.T) {
	f := &fakeFactory{}
	c := newController(t, f, Options{TotalCores: 2, ReserveCores: 1})
	app := c.App()

	app.Processor.Process(validMessage, "OLD")
	app.Processor.Process("garbage", "OLD")
	app.Series.SetLogScale("AAPL", true)
	require.Equal(t, 1, app.Series.Len("AAPL"))
	require.Equal(t, int64(1), app.Counters.Errors.Load())

	require.NoError(t, c.Start(t.Context()))
	defer c.Stop()

	old, ok := app.Stats.Lookup("OLD")
	require.True(t, ok)
	assert.Zero(t, old.Received())
	assert.Zero(t, old.Errors())
	_, ok = app.Stats.Lookup("SIM")
	assert.True(t, ok)
	assert.Zero(t, app.Series.Len("AAPL"))
	assert.True(t, app.Series.LogScale("AAPL"))
	assert.Zero(t, app.Counters.Errors.Load())
	assert.Zero(t, app.Counters.Requests.Load())
}

func TestControllerNoWorkerSlots(t *testing.T) {
	for _, opt := range []Options{
		{TotalCores: 1, ReserveCores: 1},
		{TotalCores: 1, ReserveCores: 4},
		{},
	} {
		f := &fakeFactory{}
		c := newController(t, f, opt)
		c.App().Processor.Process(validMessage, "KEEP")

		err := c.Start(t.Context())
		assert.True(t, errors.Is(err, exception.ErrNoWorkerSlots))
		assert.Equal(t, StateIdle, c.State())
		assert.Empty(t, f.Builds())

		keep, ok := c.App().Stats.Lookup("KEEP")
		require.True(t, ok)
		assert.Equal(t, int64(1), keep.Received())
	}
}

func TestControllerBuildFailure(t *testing.T) {
	f := &fakeFactory{err: exception.ErrConnectionClose}
	c := newController(t, f, Options{TotalCores: 2})

	err := c.Start(t.Context())
	assert.True(t, errors.Is(err, exception.ErrConnectionClose))
	assert.Equal(t, StateIdle, c.State())
	c.Stop()
}

func TestControllerDataMode(t *testing.T) {
	f := &fakeFactory{}
	c := newController(t, f, Options{TotalCores: 2, Mode: feed.ModePipe})
	assert.Equal(t, feed.ModePipe, c.DataMode())

	assert.Equal(t, feed.ModeSimulated, c.ToggleDataMode())
	assert.Equal(t, feed.ModeReal, c.ToggleDataMode())
	assert.Equal(t, feed.ModeSimulated, c.ToggleDataMode())

	assert.True(t, errors.Is(c.SetDataMode("fax"), exception.ErrUnsupportedDataMode))
	require.NoError(t, c.SetDataMode(feed.ModeSocket))

	require.NoError(t, c.Start(t.Context()))
	require.NoError(t, c.SetDataMode(feed.ModeReal))
	assert.Equal(t, feed.ModeSocket, c.Status().Mode)
	c.Stop()

	require.NoError(t, c.Start(t.Context()))
	c.Stop()
	assert.Equal(t, []feed.Mode{feed.ModeSocket, feed.ModeReal}, f.Builds())
}

func TestControllerStopWaitsPastTimeout(t *testing.T) {
	f := &fakeFactory{linger: 40 * time.Millisecond}
	c := newController(t, f, Options{TotalCores: 2, StopTimeout: 5 * time.Millisecond})

	require.NoError(t, c.Start(t.Context()))
	start := time.Now()
	c.Stop()
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Equal(t, StateIdle, c.State())
}

func TestControllerSimulatedCounterConservation(t *testing.T) {
	app := newApp(t)
	factory, err := feed.NewFactory(app.Processor, feed.FactoryConfig{
		Simulated: feed.SimulatedConfig{
			Generator: mdg.DefaultConfig("AAPL", "GOOG", "MSFT"),
			Interval:  time.Millisecond,
		},
	})
	require.NoError(t, err)
	c, err := NewController(app, factory, Options{TotalCores: 4, ReserveCores: 1})
	require.NoError(t, err)

	require.NoError(t, c.Start(t.Context()))
	require.Eventually(t, func() bool { return c.Status().Requests >= 30 }, 2*time.Second, time.Millisecond)
	c.Stop()

	st := c.Status()
	var received int64
	for _, s := range st.Streams {
		received += s.MessagesReceived + s.Errors
	}
	assert.Equal(t, st.Requests, received)
	assert.Zero(t, st.Errors)
	assert.ElementsMatch(t, []string{"AAPL", "GOOG", "MSFT"}, st.Symbols)
	for _, sym := range st.Symbols {
		assert.LessOrEqual(t, app.Series.Len(sym), app.Series.Retention())
	}
}

func TestNewControllerValidates(t *testing.T) {
	_, err := NewApp(AppConfig{})
	assert.True(t, errors.Is(err, exception.ErrNilInstance))

	_, err = NewController(nil, &fakeFactory{}, Options{})
	assert.True(t, errors.Is(err, exception.ErrNilInstance))

	_, err = NewController(newApp(t), nil, Options{})
	assert.True(t, errors.Is(err, exception.ErrNilInstance))

	_, err = NewController(newApp(t), &fakeFactory{}, Options{Mode: "fax"})
	assert.True(t, errors.Is(err, exception.ErrUnsupportedDataMode))
}
