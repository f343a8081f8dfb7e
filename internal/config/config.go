// Package config loads the runtime configuration from an optional file, a
// .env file and MBO_ prefixed environment variables, in increasing priority.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/yanun0323/errors"

	"mbo/internal/feed"
	"mbo/internal/schema"
	"mbo/pkg/exception"
)

// EnvPrefix prefixes every environment override, e.g. MBO_DATA_MODE.
const EnvPrefix = "MBO"

// Sink kinds accepted in sink.kinds.
const (
	SinkLog      = "log"
	SinkPostgres = "postgres"
	SinkRedis    = "redis"
	SinkKafka    = "kafka"
	SinkFile     = "file"
)

// Config is the resolved configuration.
type Config struct {
	SessionID       string            `mapstructure:"session_id"`
	TotalCores      int               `mapstructure:"total_cores"`
	ReserveCores    int               `mapstructure:"reserve_cores"`
	DataMode        string            `mapstructure:"data_mode"`
	Symbols         []string          `mapstructure:"symbols"`
	Retention       int               `mapstructure:"retention"`
	JournalCapacity int               `mapstructure:"journal_capacity"`
	StopTimeout     time.Duration     `mapstructure:"stop_timeout"`
	StatusInterval  time.Duration     `mapstructure:"status_interval"`
	StreamIDs       map[string]string `mapstructure:"stream_ids"`

	Log       LogConfig       `mapstructure:"log"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Sink      SinkConfig      `mapstructure:"sink"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// FeedConfig holds the settings of every data mode.
type FeedConfig struct {
	SimulatedInterval time.Duration `mapstructure:"simulated_interval"`
	SimulatedKinds    []string      `mapstructure:"simulated_kinds"`

	RealURL      string        `mapstructure:"real_url"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	FailurePause time.Duration `mapstructure:"failure_pause"`

	SocketURL       string `mapstructure:"socket_url"`
	SocketSubscribe string `mapstructure:"socket_subscribe"`
	SocketPing      bool   `mapstructure:"socket_ping"`

	ReplayDir      string        `mapstructure:"replay_dir"`
	ReplayInterval time.Duration `mapstructure:"replay_interval"`

	MaxBuffered int `mapstructure:"max_buffered"`
	QueueSize   int `mapstructure:"queue_size"`
}

// SinkConfig selects and configures the storage sinks.
type SinkConfig struct {
	Kinds []string `mapstructure:"kinds"`
	// InfluxURL and InfluxDB label the log sink target.
	InfluxURL string `mapstructure:"influx_url"`
	InfluxDB  string `mapstructure:"influx_db"`

	QueueSize     int           `mapstructure:"queue_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`

	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	File     FileConfig     `mapstructure:"file"`
}

type PostgresConfig struct {
	DSN         string `mapstructure:"dsn"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Database    string `mapstructure:"database"`
	SSLMode     string `mapstructure:"ssl_mode"`
	MaxConns    int    `mapstructure:"max_conns"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	StreamPrefix string `mapstructure:"stream_prefix"`
	MaxLen       int64  `mapstructure:"max_len"`
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	AutoCreate   bool          `mapstructure:"auto_create"`
}

type FileConfig struct {
	Dir             string        `mapstructure:"dir"`
	SegmentMaxBytes int64         `mapstructure:"segment_max_bytes"`
	SegmentMaxAge   time.Duration `mapstructure:"segment_max_age"`
}

// CaptureConfig records every raw message for later replay.
type CaptureConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

type ProfilingConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServerAddress string `mapstructure:"server_address"`
	AppName       string `mapstructure:"app_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("session_id", "MY_SESSIONID")
	v.SetDefault("total_cores", 8)
	v.SetDefault("reserve_cores", 1)
	v.SetDefault("data_mode", string(feed.ModeSimulated))
	v.SetDefault("symbols", []string{"AAPL", "GOOG", "MSFT"})
	v.SetDefault("retention", 1000)
	v.SetDefault("journal_capacity", 10000)
	v.SetDefault("stop_timeout", time.Duration(0))
	v.SetDefault("status_interval", 10*time.Second)
	v.SetDefault("stream_ids", map[string]string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("feed.simulated_interval", feed.DefaultSimulatedInterval)
	v.SetDefault("feed.simulated_kinds", []string{string(schema.KindOBA)})
	v.SetDefault("feed.real_url", "")
	v.SetDefault("feed.fetch_timeout", feed.DefaultFetchTimeout)
	v.SetDefault("feed.poll_interval", time.Duration(0))
	v.SetDefault("feed.failure_pause", time.Duration(0))
	v.SetDefault("feed.socket_url", "")
	v.SetDefault("feed.socket_subscribe", "")
	v.SetDefault("feed.socket_ping", true)
	v.SetDefault("feed.replay_dir", "")
	v.SetDefault("feed.replay_interval", time.Duration(0))
	v.SetDefault("feed.max_buffered", 1<<20)
	v.SetDefault("feed.queue_size", feed.DefaultSourceQueue)

	v.SetDefault("sink.kinds", []string{SinkLog})
	v.SetDefault("sink.influx_url", "http://localhost:8086")
	v.SetDefault("sink.influx_db", "mydb")
	v.SetDefault("sink.queue_size", 8192)
	v.SetDefault("sink.batch_size", 256)
	v.SetDefault("sink.flush_interval", 500*time.Millisecond)
	v.SetDefault("sink.write_timeout", 5*time.Second)

	v.SetDefault("sink.postgres.dsn", "")
	v.SetDefault("sink.postgres.host", "localhost")
	v.SetDefault("sink.postgres.port", 5432)
	v.SetDefault("sink.postgres.user", "")
	v.SetDefault("sink.postgres.password", "")
	v.SetDefault("sink.postgres.database", "mbo")
	v.SetDefault("sink.postgres.ssl_mode", "disable")
	v.SetDefault("sink.postgres.max_conns", 4)
	v.SetDefault("sink.postgres.auto_migrate", true)

	v.SetDefault("sink.redis.addr", "localhost:6379")
	v.SetDefault("sink.redis.password", "")
	v.SetDefault("sink.redis.db", 0)
	v.SetDefault("sink.redis.stream_prefix", "mbo:")
	v.SetDefault("sink.redis.max_len", 100000)

	v.SetDefault("sink.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("sink.kafka.topic", "order_book")
	v.SetDefault("sink.kafka.batch_timeout", 10*time.Millisecond)
	v.SetDefault("sink.kafka.auto_create", false)

	v.SetDefault("sink.file.dir", "data/points")
	v.SetDefault("sink.file.segment_max_bytes", int64(256<<20))
	v.SetDefault("sink.file.segment_max_age", 5*time.Minute)

	v.SetDefault("capture.enabled", false)
	v.SetDefault("capture.dir", "data/capture")

	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.server_address", "http://localhost:4040")
	v.SetDefault("profiling.app_name", "mbo")
}

// Default returns the built-in configuration, ignoring files and the
// environment.
func Default() (Config, error) {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode default config")
	}
	return cfg, nil
}

// Load resolves the configuration. path may be empty; envFile is loaded
// into the process environment when it exists.
func Load(path, envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, errors.Wrap(err, "load env file").With("path", envFile)
			}
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrap(err, "read config").With("path", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot run.
func (c Config) Validate() error {
	mode, err := feed.ParseMode(c.DataMode)
	if err != nil {
		return err
	}
	if c.TotalCores < 0 || c.ReserveCores < 0 {
		return errors.Wrapf(exception.ErrInvalidConfig, "cores must be >= 0, total %d, reserve %d", c.TotalCores, c.ReserveCores)
	}
	if c.Retention < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "retention must be >= 0")
	}
	if mode == feed.ModeSimulated && len(c.Symbols) == 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "simulated mode needs symbols")
	}
	for _, k := range c.Feed.SimulatedKinds {
		if schema.RouteOf(schema.Kind(k)).Action == schema.ActionUnhandled {
			return errors.Wrapf(exception.ErrInvalidConfig, "simulated kind %q", k)
		}
	}
	for m := range c.StreamIDs {
		if _, err := feed.ParseMode(m); err != nil {
			return errors.Wrapf(exception.ErrInvalidConfig, "stream id for unknown mode %q", m)
		}
	}
	for _, kind := range c.Sink.Kinds {
		switch strings.ToLower(kind) {
		case SinkLog, SinkPostgres, SinkRedis, SinkKafka, SinkFile:
		default:
			return errors.Wrapf(exception.ErrUnsupportedSink, "sink %q", kind)
		}
	}
	return nil
}

// Mode returns the parsed data mode. Call after Validate.
func (c Config) Mode() feed.Mode {
	m, _ := feed.ParseMode(c.DataMode)
	return m
}

// Workers returns the number of worker slots, which may be <= 0.
func (c Config) Workers() int {
	return c.TotalCores - c.ReserveCores
}

// StreamIDOverrides maps stream_ids onto data modes.
func (c Config) StreamIDOverrides() map[feed.Mode]string {
	out := make(map[feed.Mode]string, len(c.StreamIDs))
	for k, v := range c.StreamIDs {
		if m, err := feed.ParseMode(k); err == nil && v != "" {
			out[m] = v
		}
	}
	return out
}

// Kinds returns the configured simulated kinds.
func (c FeedConfig) Kinds() []schema.Kind {
	out := make([]schema.Kind, 0, len(c.SimulatedKinds))
	for _, k := range c.SimulatedKinds {
		out = append(out, schema.Kind(k))
	}
	return out
}
