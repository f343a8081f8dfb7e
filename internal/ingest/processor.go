package ingest

import (
	"strings"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/atomics"

	"mbo/internal/codec"
	"mbo/internal/diag"
	"mbo/internal/obs"
	"mbo/internal/recorder"
	"mbo/internal/schema"
	"mbo/internal/series"
	"mbo/internal/sink"
	"mbo/internal/stats"
	"mbo/pkg/exception"
)

// maxJournalRaw bounds the raw input copied into a diagnostic entry.
const maxJournalRaw = 4096

// Deps are the shared structures a Processor writes to. The processor does
// not own any of them.
type Deps struct {
	Stats    *stats.Registry
	Series   *series.Store
	Journal  *diag.Journal
	Counters *obs.Counters
	Sink     sink.Sink

	// Optional.
	Metrics *obs.Metrics
	Capture *recorder.Writer
	Logger  logs.Logger
}

// Processor validates raw messages, updates statistics and the price
// history, and forwards order-book events to the sink. It is safe for
// concurrent use by any number of workers.
type Processor struct {
	stats    *stats.Registry
	series   *series.Store
	journal  *diag.Journal
	counters *obs.Counters
	metrics  *obs.Metrics
	sink     sink.Sink
	capture  *recorder.Writer

	runID atomics.Value[string]
	seq   *obs.SeqGenerator

	log       logs.Logger
	rejectLog logs.Logger
}

// NewProcessor checks deps and builds a processor.
func NewProcessor(deps Deps) (*Processor, error) {
	switch {
	case deps.Stats == nil:
		return nil, errors.Wrap(exception.ErrNilInstance, "processor: nil stats registry")
	case deps.Series == nil:
		return nil, errors.Wrap(exception.ErrNilInstance, "processor: nil series store")
	case deps.Journal == nil:
		return nil, errors.Wrap(exception.ErrNilInstance, "processor: nil journal")
	case deps.Counters == nil:
		return nil, errors.Wrap(exception.ErrNilInstance, "processor: nil counters")
	case deps.Sink == nil:
		return nil, errors.Wrap(exception.ErrNilInstance, "processor: nil sink")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logs.Default()
	}

	return &Processor{
		stats:     deps.Stats,
		series:    deps.Series,
		journal:   deps.Journal,
		counters:  deps.Counters,
		metrics:   deps.Metrics,
		sink:      deps.Sink,
		capture:   deps.Capture,
		seq:       obs.NewSeqGenerator(0),
		log:       logger.With("component", "processor"),
		rejectLog: logs.NewTickerLogger(logs.LevelWarn, time.Second).With("component", "processor"),
	}, nil
}

// SetRunID tags every point forwarded from now on with id.
func (p *Processor) SetRunID(id string) {
	p.runID.Store(id)
}

// RunID returns the current run id.
func (p *Processor) RunID() string {
	return p.runID.Load()
}

// Journal returns the diagnostic journal.
func (p *Processor) Journal() *diag.Journal {
	return p.journal
}

// Process handles one raw message from streamID. It never panics and never
// reports failure to the caller: rejected input is counted and journaled.
func (p *Processor) Process(raw, streamID string) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.metrics.IncRecovered()
			p.reject(raw, streamID, errors.Wrapf(exception.ErrPanicRecovered, "%v", r))
		}
		p.metrics.ObserveProcess(time.Since(start))
	}()

	p.record(raw)

	e, err := codec.DecodeEvent(raw)
	if err != nil {
		p.reject(raw, streamID, err)
		return
	}

	p.stats.IncrementReceived(streamID)
	p.series.Append(e.Symbol, e.Price)
	p.metrics.ObserveKind(e.Kind)

	route := schema.RouteOf(e.Kind)
	switch route.Action {
	case schema.ActionWrite, schema.ActionReplace:
		p.sink.Write(p.point(route, e))
	default:
		p.journal.Append(diag.Entry{
			Severity: diag.SeverityInfo,
			Stream:   streamID,
			Reason:   "unhandled message type: " + e.Kind.String(),
			Raw:      clip(raw),
		})
		p.log.Debugf("unhandled message type %q from %s", e.Kind, streamID)
	}
}

// ReportTransportError records a failed fetch from streamID. Only the
// process-wide error counter moves: no message reached the stream.
func (p *Processor) ReportTransportError(streamID string, err error) {
	if err == nil {
		return
	}
	p.counters.Errors.Add(1)
	p.metrics.IncTransportFailure()
	p.journal.Append(diag.Entry{
		Severity: diag.SeverityError,
		Stream:   streamID,
		Reason:   "transport: " + err.Error(),
	})
	p.rejectLog.With("stream", streamID).WithError(err).Warn("fetch failed")
}

func (p *Processor) reject(raw, streamID string, err error) {
	p.counters.Errors.Add(1)
	p.stats.GetOrCreate(streamID)
	p.stats.IncrementError(streamID)
	p.metrics.IncRejected()
	p.journal.Append(diag.Entry{
		Severity: diag.SeverityError,
		Stream:   streamID,
		Reason:   err.Error(),
		Raw:      clip(raw),
	})
	p.rejectLog.With("stream", streamID).Warnf("reject message: %s", err)
}

func (p *Processor) point(route schema.Route, e schema.Event) sink.Point {
	return sink.Point{
		Measurement: route.Measurement,
		Kind:        e.Kind,
		Symbol:      e.Symbol,
		Price:       e.Price,
		Timestamp:   e.Timestamp,
		Quantity:    e.Quantity,
		Side:        e.Side,
		OrderID:     e.EffectiveOrderID(),
		Attribution: e.Attribution,
		MatchID:     e.MatchID,
		RunID:       p.runID.Load(),
		Seq:         p.seq.Next(),
	}
}

// record copies raw input, valid or not, to the capture log for later replay.
func (p *Processor) record(raw string) {
	if p.capture == nil {
		return
	}
	rec := strings.TrimSpace(raw)
	if rec == "" {
		return
	}
	if err := p.capture.TryAppend([]byte(rec)); err != nil {
		p.rejectLog.WithError(err).Warn("capture append failed")
	}
}

func clip(raw string) string {
	if len(raw) <= maxJournalRaw {
		return raw
	}
	return raw[:maxJournalRaw]
}
