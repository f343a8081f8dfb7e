package pipeline

import (
	"github.com/yanun0323/errors"

	"mbo/internal/diag"
	"mbo/internal/ingest"
	"mbo/internal/obs"
	"mbo/internal/recorder"
	"mbo/internal/series"
	"mbo/internal/sink"
	"mbo/internal/stats"
	"mbo/pkg/exception"
)

// AppConfig sizes the shared state of an App.
type AppConfig struct {
	Retention       int
	JournalCapacity int
	Sink            sink.Sink
	// Capture, when set, records every raw message.
	Capture *recorder.Writer
	// Metrics is allocated when nil.
	Metrics *obs.Metrics
}

// App is the state shared by every run: statistics, price history,
// diagnostics, counters and the processor writing to them.
type App struct {
	Stats     *stats.Registry
	Series    *series.Store
	Journal   *diag.Journal
	Counters  *obs.Counters
	Metrics   *obs.Metrics
	Sink      sink.Sink
	Processor *ingest.Processor
}

// NewApp allocates the shared state and the processor.
func NewApp(cfg AppConfig) (*App, error) {
	if cfg.Sink == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "app: nil sink")
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = obs.NewMetrics()
	}
	app := &App{
		Stats:    stats.NewRegistry(),
		Series:   series.NewStore(cfg.Retention),
		Journal:  diag.NewJournal(cfg.JournalCapacity),
		Counters: &obs.Counters{},
		Metrics:  metrics,
		Sink:     cfg.Sink,
	}
	proc, err := ingest.NewProcessor(ingest.Deps{
		Stats:    app.Stats,
		Series:   app.Series,
		Journal:  app.Journal,
		Counters: app.Counters,
		Sink:     app.Sink,
		Metrics:  app.Metrics,
		Capture:  cfg.Capture,
	})
	if err != nil {
		return nil, err
	}
	app.Processor = proc
	return app, nil
}
