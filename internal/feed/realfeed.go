package feed

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/pkg/request"

	"mbo/internal/obs"
	"mbo/pkg/exception"
)

const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxBodySize  = 4 << 20
	defaultSessionParam = "session"
	defaultSymbolsParam = "symbols"
)

// Fetcher retrieves one message from an upstream feed.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context) (string, error) {
	return f(ctx)
}

// HTTPConfig configures HTTPFetcher.
type HTTPConfig struct {
	URL       string
	SessionID string
	Symbols   []string
	Timeout   time.Duration
	// MaxBodySize caps the bytes read from one response.
	MaxBodySize int64
	Client      *http.Client
}

// HTTPFetcher polls a JSON endpoint with a session id and symbol list.
type HTTPFetcher struct {
	cfg HTTPConfig
}

// NewHTTPFetcher validates cfg and creates a fetcher.
func NewHTTPFetcher(cfg HTTPConfig) (*HTTPFetcher, error) {
	if cfg.URL == "" {
		return nil, errors.Wrap(exception.ErrInvalidConfig, "fetch url is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	return &HTTPFetcher{cfg: cfg}, nil
}

// Fetch issues one GET and returns the body. Non-2xx statuses and empty
// bodies are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req := request.New(http.MethodGet, f.cfg.URL).
		WithContext(ctx).
		WithHeader("Accept", "application/json")
	if f.cfg.SessionID != "" {
		req = req.WithQueryParam(defaultSessionParam, "%s", f.cfg.SessionID)
	}
	if len(f.cfg.Symbols) != 0 {
		req = req.WithQueryParam(defaultSymbolsParam, "%s", strings.Join(f.cfg.Symbols, ","))
	}

	resp, err := req.Send(f.cfg.Client.Do)
	if err != nil {
		return "", errors.Wrap(err, "fetch").With("url", f.cfg.URL)
	}
	body := resp.HttpResponse.Body
	defer body.Close()

	if code := resp.HttpResponse.StatusCode; code < 200 || code >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, f.cfg.MaxBodySize))
		return "", errors.Wrapf(exception.ErrFetchStatus, "status %d", code).With("url", f.cfg.URL)
	}

	data, err := io.ReadAll(io.LimitReader(body, f.cfg.MaxBodySize))
	if err != nil {
		return "", errors.Wrap(err, "read body").With("url", f.cfg.URL)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return "", errors.Wrap(exception.ErrFetchEmptyBody, "fetch").With("url", f.cfg.URL)
	}
	return string(data), nil
}

// RealFeedConfig configures RealFeed.
type RealFeedConfig struct {
	StreamID string
	// PollInterval is the pause after a successful fetch.
	PollInterval time.Duration
	// FailurePause is the pause after a failed fetch. Zero or negative
	// retries on the next iteration.
	FailurePause time.Duration
	Metrics      *obs.Metrics
}

// RealFeed pulls messages from a Fetcher in a loop.
type RealFeed struct {
	proc    Processor
	fetcher Fetcher
	cfg     RealFeedConfig
}

// NewRealFeed creates a real-feed worker.
func NewRealFeed(proc Processor, fetcher Fetcher, cfg RealFeedConfig) (*RealFeed, error) {
	if proc == nil || fetcher == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "real-feed worker")
	}
	return &RealFeed{proc: proc, fetcher: fetcher, cfg: cfg}, nil
}

func (w *RealFeed) Run(stop *Signal, requests *atomic.Int64) {
	ctx, cancel := stop.Context()
	defer cancel()

	for !stop.Stopped() {
		start := time.Now()
		body, err := w.fetcher.Fetch(ctx)
		if w.cfg.Metrics != nil {
			w.cfg.Metrics.ObserveFetch(time.Since(start))
		}
		if err != nil {
			if stop.Stopped() {
				return
			}
			w.proc.ReportTransportError(w.cfg.StreamID, err)
			if !stop.Sleep(w.cfg.FailurePause) {
				return
			}
			continue
		}

		w.proc.Process(body, w.cfg.StreamID)
		requests.Add(1)
		if !stop.Sleep(w.cfg.PollInterval) {
			return
		}
	}
}
