package feed

import (
	"context"
	"sync"
	"time"
)

// Signal is the shared stop flag of a run. It is set once and observed by
// every worker of that run.
type Signal struct {
	once sync.Once
	done chan struct{}
}

// NewSignal creates an unset signal.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Stop sets the signal. Calling it more than once is safe.
func (s *Signal) Stop() {
	s.once.Do(func() { close(s.done) })
}

// Stopped reports whether Stop was called.
func (s *Signal) Stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done is closed when the signal is set.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Sleep pauses for d or until the signal is set. It returns false when the
// signal interrupted the pause.
func (s *Signal) Sleep(d time.Duration) bool {
	if d <= 0 {
		return !s.Stopped()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.done:
		return false
	case <-t.C:
		return true
	}
}

// Context returns a context cancelled when the signal is set.
func (s *Signal) Context() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
