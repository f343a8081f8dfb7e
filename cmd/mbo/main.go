package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"mbo/internal/config"
	"mbo/internal/feed"
	"mbo/internal/mdg"
	"mbo/internal/pipeline"
	"mbo/internal/recorder"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	envFile := flag.String("env", ".env", "Env file loaded before the environment is read")
	mode := flag.String("mode", "", "Override data mode: simulated|real|pipe|socket|replay")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		logs.Fatalf("load config, err: %+v", err)
	}
	if *mode != "" {
		cfg.DataMode = *mode
		if err := cfg.Validate(); err != nil {
			logs.Fatalf("invalid mode, err: %+v", err)
		}
	}
	logs.SetDefault(newLogger(cfg.Log))

	if err := run(cfg); err != nil {
		logs.Fatalf("mbo: %+v", err)
	}
}

func run(cfg config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Profiling.Enabled {
		profiler, err := startProfiler(cfg.Profiling)
		if err != nil {
			return err
		}
		defer func() { _ = profiler.Stop() }()
	}

	app, closeSinks, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSinks()

	factory, err := feed.NewFactory(app.Processor, factoryConfig(cfg, app))
	if err != nil {
		return err
	}

	ctrl, err := pipeline.NewController(app, factory, pipeline.Options{
		TotalCores:   cfg.TotalCores,
		ReserveCores: cfg.ReserveCores,
		Mode:         cfg.Mode(),
		StopTimeout:  cfg.StopTimeout,
	})
	if err != nil {
		return err
	}

	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	defer ctrl.Stop()

	interval := cfg.StatusInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sys.Shutdown():
			logs.Info("shutting down")
			return nil
		case <-ticker.C:
			logStatus(ctrl.Status())
		}
	}
}

func newLogger(cfg config.LogConfig) logs.Logger {
	format := logs.FormatConsole
	switch strings.ToLower(cfg.Format) {
	case "json":
		format = logs.FormatJSON
	case "text":
		format = logs.FormatText
	}
	return logs.New(logs.NewLevel(cfg.Level), &logs.Option{Format: format, Output: os.Stdout})
}

func startProfiler(cfg config.ProfilingConfig) (*pyroscope.Profiler, error) {
	return pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.AppName,
		ServerAddress:   cfg.ServerAddress,
		Logger:          logs.With("component", "pyroscope"),
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
}

func factoryConfig(cfg config.Config, app *pipeline.App) feed.FactoryConfig {
	gen := mdg.DefaultConfig(cfg.Symbols...)
	if kinds := cfg.Feed.Kinds(); len(kinds) != 0 {
		gen.Kinds = kinds
	}

	fc := feed.FactoryConfig{
		StreamIDs: cfg.StreamIDOverrides(),
		Simulated: feed.SimulatedConfig{
			Generator: gen,
			Interval:  cfg.Feed.SimulatedInterval,
		},
		Real: feed.RealConfig{
			PollInterval: cfg.Feed.PollInterval,
			FailurePause: cfg.Feed.FailurePause,
		},
		Socket: feed.SocketConfig{
			URL:       cfg.Feed.SocketURL,
			Subscribe: []byte(cfg.Feed.SocketSubscribe),
			Ping:      cfg.Feed.SocketPing,
		},
		Replay: recorder.PlaybackConfig{
			Dir:      cfg.Feed.ReplayDir,
			Interval: cfg.Feed.ReplayInterval,
		},
		Source: feed.SourceConfig{
			MaxBuffered: cfg.Feed.MaxBuffered,
			QueueSize:   cfg.Feed.QueueSize,
		},
		Metrics: app.Metrics,
	}

	if cfg.Feed.RealURL != "" {
		fetcher, err := feed.NewHTTPFetcher(feed.HTTPConfig{
			URL:       cfg.Feed.RealURL,
			SessionID: cfg.SessionID,
			Symbols:   cfg.Symbols,
			Timeout:   cfg.Feed.FetchTimeout,
		})
		if err != nil {
			logs.Warnf("real feed disabled, err: %+v", err)
		} else {
			fc.Real.Fetcher = fetcher
		}
	}

	// stdin cannot be reopened, so one source serves every pipe run.
	if cfg.Mode() == feed.ModePipe {
		fc.Pipe = feed.NewLineSource(os.Stdin, fc.Source)
	}
	return fc
}

func logStatus(st pipeline.Status) {
	logs.Infof("status: %s, mode: %s, run: %s, workers: %d, requests: %d, errors: %d, journal: %d",
		st.State, st.Mode, st.RunID, st.Workers, st.Requests, st.Errors, st.JournalLen)
	for _, s := range st.Streams {
		logs.Infof("  stream %s: received %d, errors %d", s.ID, s.MessagesReceived, s.Errors)
	}
	for _, s := range st.Sinks {
		logs.Infof("  sink %s: written %d, dropped %d, failed %d", s.Name, s.Written, s.Dropped, s.Failed)
	}
}
