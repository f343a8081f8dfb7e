package recorder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
)

var (
	ErrQueueFull      = errors.New("recorder queue full")
	ErrClosed         = errors.New("recorder closed")
	ErrNotStarted     = errors.New("recorder not started")
	ErrAlreadyStarted = errors.New("recorder already started")
	ErrMultiline      = errors.New("recorder record contains a newline")
)

// Writer appends newline-terminated records to rotating segment files from a
// buffered queue. One goroutine owns the files; producers never block.
type Writer struct {
	cfg Config
	ch  chan []byte
	wg  sync.WaitGroup
	err atomic.Value

	mu      sync.RWMutex
	started bool
	closed  bool

	written atomic.Uint64
}

// NewWriter creates a segment writer and ensures the target directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create recorder dir").With("dir", cfg.Dir)
	}
	w := &Writer{
		cfg: cfg,
		ch:  make(chan []byte, cfg.QueueSize),
	}
	return w, nil
}

// Config returns the effective configuration.
func (w *Writer) Config() Config {
	return w.cfg
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}
	if w.closed {
		return ErrClosed
	}
	w.started = true
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	return nil
}

// Close stops the writer and flushes any buffered data.
func (w *Writer) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
	w.mu.Unlock()
	w.wg.Wait()
	return w.Err()
}

// Err returns the first error observed by the writer, if any.
func (w *Writer) Err() error {
	if v := w.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Written returns the number of records handed to a segment.
func (w *Writer) Written() uint64 {
	return w.written.Load()
}

// TryAppend enqueues one record without blocking. The record must not
// contain a newline; the writer terminates it.
func (w *Writer) TryAppend(record []byte) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	if !w.started {
		return ErrNotStarted
	}
	if err := w.Err(); err != nil {
		return err
	}
	if bytes.IndexByte(record, '\n') >= 0 {
		return ErrMultiline
	}
	if w.cfg.CopyPayload && len(record) > 0 {
		cp := make([]byte, len(record))
		copy(cp, record)
		record = cp
	}

	select {
	case w.ch <- record:
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *Writer) run(ctx context.Context) {
	r := rotator{cfg: w.cfg}
	defer func() {
		if err := r.close(); err != nil {
			w.setErr(err)
		}
	}()

	flushC, stopFlush := tick(w.cfg.FlushInterval)
	defer stopFlush()
	syncC, stopSync := tick(w.cfg.SyncInterval)
	defer stopSync()

	for {
		var err error
		select {
		case <-ctx.Done():
			w.drain(&r)
			return
		case rec, ok := <-w.ch:
			if !ok {
				return
			}
			err = w.write(&r, rec)
		case <-flushC:
			err = r.cur.flush()
		case <-syncC:
			err = r.cur.sync()
		}
		if err != nil {
			w.setErr(err)
			return
		}
	}
}

// drain writes what is already queued without waiting for more.
func (w *Writer) drain(r *rotator) {
	for {
		select {
		case rec, ok := <-w.ch:
			if !ok {
				return
			}
			if err := w.write(r, rec); err != nil {
				w.setErr(err)
				return
			}
		default:
			return
		}
	}
}

func (w *Writer) write(r *rotator, rec []byte) error {
	seg, err := r.segmentFor(time.Now().UTC(), int64(len(rec)+1))
	if err != nil {
		return err
	}
	if err := seg.writeLine(rec); err != nil {
		return err
	}
	w.written.Add(1)
	return nil
}

func (w *Writer) setErr(err error) {
	if err == nil || w.err.Load() != nil {
		return
	}
	w.err.Store(err)
}

// tick returns a nil channel when d disables the ticker.
func tick(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// rotator owns the open segment and decides when to start the next one.
type rotator struct {
	cfg  Config
	cur  *segment
	next uint64
}

func (r *rotator) segmentFor(now time.Time, size int64) (*segment, error) {
	if !r.full(now, size) {
		return r.cur, nil
	}
	if err := r.close(); err != nil {
		return nil, err
	}
	seg, err := r.open(now)
	if err != nil {
		return nil, err
	}
	r.cur = seg
	return seg, nil
}

// full reports whether a record of size cannot go into the current segment.
// An empty segment takes any record, however large.
func (r *rotator) full(now time.Time, size int64) bool {
	switch {
	case r.cur == nil:
		return true
	case r.cur.size > 0 && r.cfg.SegmentMaxBytes > 0 && r.cur.size+size > r.cfg.SegmentMaxBytes:
		return true
	case r.cfg.SegmentMaxDuration > 0 && now.Sub(r.cur.openedAt) >= r.cfg.SegmentMaxDuration:
		return true
	}
	return false
}

func (r *rotator) open(now time.Time) (*segment, error) {
	stamp := now.Format("20060102-150405")
	for {
		r.next++
		path := filepath.Join(r.cfg.Dir, fmt.Sprintf("%s-%s-%06d.%s", r.cfg.FilePrefix, stamp, r.next, r.cfg.FileExt))
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "open segment").With("path", path)
		}
		return &segment{
			file:     file,
			buf:      bufio.NewWriterSize(file, r.cfg.BufferSize),
			openedAt: now,
		}, nil
	}
}

func (r *rotator) close() error {
	seg := r.cur
	r.cur = nil
	return seg.close()
}

type segment struct {
	file     *os.File
	buf      *bufio.Writer
	size     int64
	openedAt time.Time
}

func (s *segment) writeLine(rec []byte) error {
	if _, err := s.buf.Write(rec); err != nil {
		return errors.Wrap(err, "write record").With("path", s.file.Name())
	}
	if err := s.buf.WriteByte('\n'); err != nil {
		return errors.Wrap(err, "write record").With("path", s.file.Name())
	}
	s.size += int64(len(rec) + 1)
	return nil
}

func (s *segment) flush() error {
	if s == nil {
		return nil
	}
	return s.buf.Flush()
}

func (s *segment) sync() error {
	if s == nil {
		return nil
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

// close flushes, syncs and closes the file. The file is closed even when
// flushing fails.
func (s *segment) close() error {
	if s == nil {
		return nil
	}
	err := s.sync()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}
