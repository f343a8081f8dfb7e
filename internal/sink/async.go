package sink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"mbo/internal/bus"
)

const (
	defaultQueueSize     = 8192
	defaultBatchSize     = 256
	defaultFlushInterval = 500 * time.Millisecond
	defaultWriteTimeout  = 5 * time.Second
)

// AsyncConfig controls the queue in front of a remote sink.
type AsyncConfig struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
	// OnDrop is called for every point the queue rejects.
	OnDrop func(err error)
}

func (c AsyncConfig) withDefaults() AsyncConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	return c
}

type batchWriter func(ctx context.Context, batch []Point) error

// async queues points and hands them to write in batches from one goroutine.
// write must not retain the batch slice.
type async struct {
	name  string
	cfg   AsyncConfig
	queue *bus.Queue[Point]
	write batchWriter

	wg      sync.WaitGroup
	once    sync.Once
	errMu   sync.Mutex
	err     error
	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	log     logs.Logger
	dropLog logs.Logger
}

func newAsync(name string, cfg AsyncConfig, write batchWriter) *async {
	cfg = cfg.withDefaults()
	a := &async{
		name:    name,
		cfg:     cfg,
		queue:   bus.NewQueue[Point](cfg.QueueSize),
		write:   write,
		log:     logs.With("sink", name),
		dropLog: logs.NewTickerLogger(logs.LevelWarn, 5*time.Second).With("sink", name),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// Write enqueues p without blocking.
func (a *async) Write(p Point) {
	if err := a.queue.TryPublish(p); err != nil {
		n := a.dropped.Add(1)
		if a.cfg.OnDrop != nil {
			a.cfg.OnDrop(err)
		}
		a.dropLog.Warnf("point dropped, total %d, err: %+v", n, err)
	}
}

// Close stops accepting points, flushes what is queued and waits.
func (a *async) Close() error {
	a.once.Do(func() {
		a.queue.Close()
		a.wg.Wait()
	})
	return a.Err()
}

// Err returns the first write failure.
func (a *async) Err() error {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	return a.err
}

// Stats reports the delivery counters.
func (a *async) Stats() []Stats {
	return []Stats{{
		Name:    a.name,
		Written: a.written.Load(),
		Dropped: a.dropped.Load(),
		Failed:  a.failed.Load(),
	}}
}

func (a *async) setErr(err error) {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	if a.err == nil {
		a.err = err
	}
}

func (a *async) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Point, 0, a.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.WriteTimeout)
		err := a.write(ctx, batch)
		cancel()
		if err != nil {
			a.failed.Add(uint64(len(batch)))
			a.setErr(err)
			a.log.WithError(err).Errorf("write batch of %d failed", len(batch))
		} else {
			a.written.Add(uint64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case p, ok := <-a.queue.C():
			if !ok {
				flush()
				return
			}
			batch = append(batch, p)
			if len(batch) >= a.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
