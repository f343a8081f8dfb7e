// Package pipeline runs the source workers of the configured data mode
// against a shared App.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/atomics"

	"mbo/internal/feed"
	"mbo/internal/obs"
	"mbo/internal/sink"
	"mbo/internal/stats"
	"mbo/pkg/exception"
)

// State is the controller lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// WorkerFactory builds the workers of one run.
type WorkerFactory interface {
	StreamID(mode feed.Mode) string
	Build(ctx context.Context, mode feed.Mode, n int) (feed.Pool, error)
}

// Options configures a Controller.
type Options struct {
	TotalCores   int
	ReserveCores int
	Mode         feed.Mode
	// StopTimeout makes Stop warn each time it elapses while workers are
	// still running. Zero waits silently.
	StopTimeout time.Duration
}

// Status is a point-in-time view of the controller and the App.
type Status struct {
	State        State
	RunID        string
	Mode         feed.Mode
	StreamID     string
	Workers      int
	StartedAt    time.Time
	Requests     int64
	Errors       int64
	Streams      []stats.Snapshot
	Symbols      []string
	JournalLen   int
	JournalTotal uint64
	Sinks        []sink.Stats
	Metrics      obs.Snapshot
}

// Controller starts and stops runs. Start and Stop are serialized; Status
// and the data mode accessors never block on them.
type Controller struct {
	mu      sync.Mutex
	app     *App
	factory WorkerFactory
	opt     Options

	modeMu sync.Mutex
	mode   atomics.Value[feed.Mode]

	state     atomic.Int32
	runID     atomics.Value[string]
	runMode   atomics.Value[feed.Mode]
	streamID  atomics.Value[string]
	startedAt atomics.Value[time.Time]
	workers   atomic.Int64

	stop   *feed.Signal
	cancel context.CancelFunc
	pool   feed.Pool
	wg     sync.WaitGroup

	log logs.Logger
}

// NewController creates an idle controller.
func NewController(app *App, factory WorkerFactory, opt Options) (*Controller, error) {
	if app == nil || app.Processor == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "controller: nil app")
	}
	if factory == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "controller: nil worker factory")
	}
	if opt.Mode == "" {
		opt.Mode = feed.ModeSimulated
	}
	if _, err := feed.ParseMode(string(opt.Mode)); err != nil {
		return nil, err
	}
	c := &Controller{
		app:     app,
		factory: factory,
		opt:     opt,
		log:     logs.With("component", "controller"),
	}
	c.mode.Store(opt.Mode)
	return c, nil
}

// Start begins a run with the current data mode. It is a no-op while a run
// is active. With no worker slots it logs and returns ErrNoWorkerSlots
// without touching any state.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Running() {
		return nil
	}

	n := c.opt.TotalCores - c.opt.ReserveCores
	if n <= 0 {
		c.log.Warnf("no worker slots, total cores: %d, reserve cores: %d", c.opt.TotalCores, c.opt.ReserveCores)
		return errors.Wrapf(exception.ErrNoWorkerSlots, "total %d, reserve %d", c.opt.TotalCores, c.opt.ReserveCores)
	}

	mode := c.DataMode()
	streamID := c.factory.StreamID(mode)

	runCtx, cancel := context.WithCancel(ctx)
	pool, err := c.factory.Build(runCtx, mode, n)
	if err != nil {
		cancel()
		return errors.Wrap(err, "build workers").With("mode", mode)
	}

	c.app.Counters.Reset()
	c.app.Stats.Reset()
	c.app.Stats.GetOrCreate(streamID)
	c.app.Series.Clear()

	runID := uuid.NewString()
	c.app.Processor.SetRunID(runID)

	stop := feed.NewSignal()
	for i, w := range pool.Workers {
		c.wg.Add(1)
		go c.runWorker(i, w, stop)
	}

	c.stop = stop
	c.cancel = cancel
	c.pool = pool
	c.runID.Store(runID)
	c.runMode.Store(mode)
	c.streamID.Store(streamID)
	c.startedAt.Store(time.Now())
	c.workers.Store(int64(len(pool.Workers)))
	c.state.Store(int32(StateRunning))

	c.log.Infof("run started, id: %s, mode: %s, stream: %s, workers: %d", runID, mode, streamID, len(pool.Workers))
	return nil
}

func (c *Controller) runWorker(i int, w feed.Worker, stop *feed.Signal) {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			err := errors.Wrapf(exception.ErrPanicRecovered, "%v", r).With("worker", i)
			c.log.WithError(err).Error("worker exited")
		}
	}()
	w.Run(stop, &c.app.Counters.Requests)
}

// Stop ends the active run and returns once every worker has exited. It is
// a no-op while idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.Running() {
		return
	}

	c.stop.Stop()
	c.wait()

	c.cancel()
	if err := c.pool.Close(); err != nil {
		c.log.WithError(err).Warn("close worker pool")
	}

	c.log.Infof("run stopped, id: %s, requests: %d, errors: %d",
		c.runID.Load(), c.app.Counters.Requests.Load(), c.app.Counters.Errors.Load())

	c.stop = nil
	c.cancel = nil
	c.pool = feed.Pool{}
	c.workers.Store(0)
	c.state.Store(int32(StateIdle))
}

func (c *Controller) wait() {
	if c.opt.StopTimeout <= 0 {
		c.wg.Wait()
		return
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	start := time.Now()
	ticker := time.NewTicker(c.opt.StopTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.log.Warnf("workers still running %s after stop", time.Since(start).Round(time.Millisecond))
		}
	}
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Running reports whether a run is active.
func (c *Controller) Running() bool {
	return c.State() == StateRunning
}

// SetDataMode selects the mode of the next run.
func (c *Controller) SetDataMode(mode feed.Mode) error {
	if _, err := feed.ParseMode(string(mode)); err != nil {
		return err
	}
	c.modeMu.Lock()
	c.mode.Store(mode)
	c.modeMu.Unlock()
	return nil
}

// ToggleDataMode switches between simulated and real for the next run and
// returns the new mode. Any other mode switches to simulated.
func (c *Controller) ToggleDataMode() feed.Mode {
	c.modeMu.Lock()
	defer c.modeMu.Unlock()

	next := feed.ModeSimulated
	if c.DataMode() == feed.ModeSimulated {
		next = feed.ModeReal
	}
	c.mode.Store(next)
	return next
}

// DataMode returns the mode the next run will use.
func (c *Controller) DataMode() feed.Mode {
	return c.mode.Load()
}

// App returns the shared state.
func (c *Controller) App() *App {
	return c.app
}

// Status captures the current state.
func (c *Controller) Status() Status {
	st := Status{
		State:        c.State(),
		RunID:        c.runID.Load(),
		Mode:         c.runMode.Load(),
		StreamID:     c.streamID.Load(),
		Workers:      int(c.workers.Load()),
		StartedAt:    c.startedAt.Load(),
		Requests:     c.app.Counters.Requests.Load(),
		Errors:       c.app.Counters.Errors.Load(),
		Streams:      c.app.Stats.Snapshot(),
		Symbols:      c.app.Series.Symbols(),
		JournalLen:   c.app.Journal.Len(),
		JournalTotal: c.app.Journal.Total(),
		Sinks:        sink.CollectStats(c.app.Sink),
		Metrics:      c.app.Metrics.Snapshot(),
	}
	if st.Mode == "" {
		st.Mode = c.DataMode()
	}
	return st
}
