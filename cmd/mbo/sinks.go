package main

import (
	"context"
	"strings"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"mbo/internal/config"
	"mbo/internal/obs"
	"mbo/internal/pipeline"
	"mbo/internal/recorder"
	"mbo/internal/sink"
	"mbo/pkg/conn"
	"mbo/pkg/exception"
)

// buildApp opens every configured sink and the optional capture writer. The
// returned func closes them in dependency order.
func buildApp(ctx context.Context, cfg config.Config) (*pipeline.App, func(), error) {
	metrics := obs.NewMetrics()
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logs.WithError(err).Warn("close")
			}
		}
	}

	async := sink.AsyncConfig{
		QueueSize:     cfg.Sink.QueueSize,
		BatchSize:     cfg.Sink.BatchSize,
		FlushInterval: cfg.Sink.FlushInterval,
		WriteTimeout:  cfg.Sink.WriteTimeout,
		OnDrop:        func(error) { metrics.IncSinkDrop() },
	}

	var fanout sink.Fanout
	for _, kind := range cfg.Sink.Kinds {
		s, closer, err := openSink(ctx, strings.ToLower(kind), cfg, async)
		if err != nil {
			_ = fanout.Close()
			closeAll()
			return nil, nil, errors.Wrap(err, "open sink").With("kind", kind)
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		fanout = append(fanout, s)
		logs.Infof("sink %s enabled", kind)
	}
	if len(fanout) == 0 {
		fanout = append(fanout, sink.NewLog(logs.Default(), cfg.Sink.InfluxURL))
	}
	closers = append(closers, fanout.Close)

	var capture *recorder.Writer
	if cfg.Capture.Enabled {
		w, err := startWriter(ctx, recorder.DefaultConfig(cfg.Capture.Dir))
		if err != nil {
			closeAll()
			return nil, nil, errors.Wrap(err, "start capture")
		}
		capture = w
		closers = append(closers, w.Close)
	}

	app, err := pipeline.NewApp(pipeline.AppConfig{
		Retention:       cfg.Retention,
		JournalCapacity: cfg.JournalCapacity,
		Sink:            fanout,
		Capture:         capture,
		Metrics:         metrics,
	})
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return app, closeAll, nil
}

// openSink returns the sink and a func releasing the connection behind it.
// The connection must outlive the sink's Close.
func openSink(ctx context.Context, kind string, cfg config.Config, async sink.AsyncConfig) (sink.Sink, func() error, error) {
	switch kind {
	case config.SinkLog:
		target := cfg.Sink.InfluxURL
		if cfg.Sink.InfluxDB != "" {
			target += "/" + cfg.Sink.InfluxDB
		}
		return sink.NewLog(logs.Default(), target), nil, nil

	case config.SinkPostgres:
		pg := cfg.Sink.Postgres
		client, err := conn.NewPostgres(ctx, conn.PostgresOption{
			ConnString: pg.DSN,
			Host:       pg.Host,
			Port:       pg.Port,
			User:       pg.User,
			Password:   pg.Password,
			Database:   pg.Database,
			SSLMode:    pg.SSLMode,
			MaxConns:   pg.MaxConns,
		})
		if err != nil {
			return nil, nil, err
		}
		s, err := sink.NewPostgres(client.DB(), sink.PostgresConfig{AsyncConfig: async, AutoMigrate: pg.AutoMigrate})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return s, client.Close, nil

	case config.SinkRedis:
		rc := cfg.Sink.Redis
		client, err := conn.NewRedis(ctx, conn.RedisOption{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		if err != nil {
			return nil, nil, err
		}
		s, err := sink.NewRedis(client, sink.RedisConfig{AsyncConfig: async, StreamPrefix: rc.StreamPrefix, MaxLen: rc.MaxLen})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return s, client.Close, nil

	case config.SinkKafka:
		kc := cfg.Sink.Kafka
		w, err := conn.NewKafkaWriter(conn.KafkaOption{
			Brokers:      kc.Brokers,
			Topic:        kc.Topic,
			BatchTimeout: kc.BatchTimeout,
			AutoCreate:   kc.AutoCreate,
		})
		if err != nil {
			return nil, nil, err
		}
		s, err := sink.NewKafka(w, async)
		if err != nil {
			_ = w.Close()
			return nil, nil, err
		}
		return s, nil, nil

	case config.SinkFile:
		fc := recorder.DefaultConfig(cfg.Sink.File.Dir)
		if cfg.Sink.File.SegmentMaxBytes > 0 {
			fc.SegmentMaxBytes = cfg.Sink.File.SegmentMaxBytes
		}
		if cfg.Sink.File.SegmentMaxAge > 0 {
			fc.SegmentMaxDuration = cfg.Sink.File.SegmentMaxAge
		}
		w, err := startWriter(ctx, fc)
		if err != nil {
			return nil, nil, err
		}
		s, err := sink.NewFile(w, async.OnDrop)
		if err != nil {
			_ = w.Close()
			return nil, nil, err
		}
		return s, nil, nil

	default:
		return nil, nil, errors.Wrapf(exception.ErrUnsupportedSink, "sink %q", kind)
	}
}

func startWriter(ctx context.Context, cfg recorder.Config) (*recorder.Writer, error) {
	w, err := recorder.NewWriter(cfg)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}
