package feed

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/channel"
	"github.com/yanun0323/pkg/ws"

	"mbo/internal/frame"
	"mbo/internal/recorder"
	"mbo/pkg/exception"
)

const (
	DefaultSourceQueue = 1024
	defaultReadBuffer  = 64 * 1024
)

// Source hands out complete frames to any number of relay workers. Frames
// is closed when the upstream ends or the source is closed.
type Source interface {
	Frames() <-chan string
	Close() error
}

// SourceConfig bounds a framed source.
type SourceConfig struct {
	// MaxBuffered caps the bytes held while waiting for a frame to close.
	MaxBuffered int
	// QueueSize is the number of complete frames buffered for workers.
	QueueSize int
}

func (c SourceConfig) withDefaults() SourceConfig {
	if c.MaxBuffered <= 0 {
		c.MaxBuffered = frame.DefaultMaxBuffered
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultSourceQueue
	}
	return c
}

// pump owns a framer and forwards its frames. Only the reading goroutine
// touches the framer.
type pump struct {
	frames   chan string
	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
	framer   *frame.Framer

	resyncs   atomic.Uint64
	overflows atomic.Uint64
	produced  atomic.Uint64

	mu  sync.Mutex
	err error
}

func newPump(cfg SourceConfig) *pump {
	cfg = cfg.withDefaults()
	return &pump{
		frames:   make(chan string, cfg.QueueSize),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		framer:   frame.NewFramer(cfg.MaxBuffered),
	}
}

// feed buffers chunk and forwards every complete frame. It reports false
// once the source is closed.
func (p *pump) feed(chunk []byte) bool {
	p.framer.Feed(chunk)
	defer func() {
		p.resyncs.Store(p.framer.Resyncs())
		p.overflows.Store(p.framer.Overflows())
	}()
	for {
		f, ok := p.framer.Next()
		if !ok {
			return !p.closed()
		}
		if !p.push(f) {
			return false
		}
	}
}

func (p *pump) push(f string) bool {
	select {
	case p.frames <- f:
		p.produced.Add(1)
		return true
	case <-p.done:
		return false
	}
}

func (p *pump) closed() bool {
	return channel.IsClose(p.done)
}

func (p *pump) finish(err error) {
	if err != nil {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
	}
	close(p.frames)
	close(p.finished)
}

func (p *pump) stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

// Frames returns the frame channel.
func (p *pump) Frames() <-chan string {
	return p.frames
}

// Err returns the error that ended the upstream, if any.
func (p *pump) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Resyncs returns how many invalid candidates the framer skipped.
func (p *pump) Resyncs() uint64 {
	return p.resyncs.Load()
}

// Overflows returns how many times the framer dropped a runaway buffer.
func (p *pump) Overflows() uint64 {
	return p.overflows.Load()
}

// Produced returns how many frames were handed out.
func (p *pump) Produced() uint64 {
	return p.produced.Load()
}

// Finished is closed after Frames is closed.
func (p *pump) Finished() <-chan struct{} {
	return p.finished
}

// LineSource reads newline-delimited text and frames it. Line breaks are
// not significant: lines are concatenated without them, so a frame may span
// several lines.
type LineSource struct {
	*pump
}

// NewLineSource starts reading r. Reading stops at end of input or at the
// first read error. A goroutine blocked in r.Read outlives Close until the
// read returns.
func NewLineSource(r io.Reader, cfg SourceConfig) *LineSource {
	s := &LineSource{pump: newPump(cfg)}
	go s.run(r)
	return s
}

func (s *LineSource) run(r io.Reader) {
	br := bufio.NewReaderSize(r, defaultReadBuffer)
	for {
		line, err := br.ReadSlice('\n')
		if len(line) != 0 && !s.feed(bytes.TrimRight(line, "\r\n")) {
			s.finish(nil)
			return
		}
		switch {
		case err == nil, err == bufio.ErrBufferFull:
			continue
		case err == io.EOF:
			s.finish(nil)
		default:
			s.finish(errors.Wrap(err, "read line source"))
		}
		return
	}
}

// Close stops forwarding frames.
func (s *LineSource) Close() error {
	s.stop()
	return nil
}

// SocketConfig configures SocketSource.
type SocketConfig struct {
	SourceConfig
	URL string
	// Subscribe is sent as a text message once connected.
	Subscribe []byte
	Ping      bool
	Backoff   ws.BackoffOption
}

// SocketSource frames the text and binary messages of a websocket.
type SocketSource struct {
	*pump
	conn *ws.WebSocket
}

// DialSocket connects to cfg.URL and starts framing its messages. The
// connection reconnects with backoff until Close.
func DialSocket(ctx context.Context, cfg SocketConfig) (*SocketSource, error) {
	if cfg.URL == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "socket url is empty")
	}
	ctx = logs.With("source", "socket").Attach(ctx)
	conn := ws.New(ctx, cfg.URL, ws.Option{Ping: cfg.Ping, Backoff: cfg.Backoff})
	msgs, _ := conn.Subscribe()

	if err := conn.Start(ctx); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "start socket").With("url", cfg.URL)
	}
	if len(cfg.Subscribe) != 0 {
		if err := conn.WriteRaw(ws.MessageTypeText, cfg.Subscribe); err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "send subscribe").With("url", cfg.URL)
		}
	}

	s := &SocketSource{pump: newPump(cfg.SourceConfig), conn: conn}
	go s.run(msgs)
	return s, nil
}

func (s *SocketSource) run(msgs <-chan ws.Message) {
	for {
		select {
		case <-s.done:
			s.finish(nil)
			return
		case msg, ok := <-msgs:
			if !ok {
				s.finish(nil)
				return
			}
			if msg.Type != ws.MessageTypeText && msg.Type != ws.MessageTypeBinary {
				continue
			}
			if !s.feed(msg.Data) {
				s.finish(nil)
				return
			}
		}
	}
}

// Close stops the source and the websocket.
func (s *SocketSource) Close() error {
	s.stop()
	s.conn.Close()
	return nil
}

// ReplaySource replays recorded raw messages as frames. Each record is one
// frame.
type ReplaySource struct {
	*pump
	cancel context.CancelFunc
}

// NewReplaySource starts replaying pb.
func NewReplaySource(ctx context.Context, pb *recorder.Playback, cfg SourceConfig) (*ReplaySource, error) {
	if pb == nil {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "nil playback")
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &ReplaySource{pump: newPump(cfg), cancel: cancel}
	go s.run(ctx, pb)
	return s, nil
}

func (s *ReplaySource) run(ctx context.Context, pb *recorder.Playback) {
	start := time.Now()
	err := pb.Run(ctx, func(rec []byte) error {
		if !s.push(string(rec)) {
			return context.Canceled
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logs.Infof("replay finished, frames: %d, elapsed: %s", s.Produced(), time.Since(start))
	s.finish(err)
}

// Close stops the replay.
func (s *ReplaySource) Close() error {
	s.stop()
	s.cancel()
	return nil
}
