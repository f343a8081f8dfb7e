package conn

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
)

// PostgresOption defines connection options for PostgreSQL. ConnString,
// when set, is used as is and the address fields are ignored.
type PostgresOption struct {
	ConnString string
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	Params     map[string]string

	MaxConns        int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
	// Gorm overrides the gorm config. Nil logs slow queries and errors only.
	Gorm *gorm.Config
}

// Postgres wraps a gorm connection pool.
type Postgres struct {
	db *gorm.DB
}

// NewPostgres opens the pool and verifies it with a ping.
func NewPostgres(ctx context.Context, option PostgresOption) (*Postgres, error) {
	cfg := option.Gorm
	if cfg == nil {
		cfg = &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	}

	db, err := gorm.Open(postgres.Open(option.DSN()), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres").With("host", option.Host, "database", option.Database)
	}
	pool, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "postgres pool")
	}
	if option.MaxConns > 0 {
		pool.SetMaxOpenConns(option.MaxConns)
		pool.SetMaxIdleConns(option.MaxConns)
	}
	if option.ConnMaxLifetime > 0 {
		pool.SetConnMaxLifetime(option.ConnMaxLifetime)
	}

	dialTimeout := option.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		return nil, errors.Wrap(err, "ping postgres").With("host", option.Host, "database", option.Database)
	}

	return &Postgres{db: db}, nil
}

// DB returns the gorm handle.
func (p *Postgres) DB() *gorm.DB {
	if p == nil {
		return nil
	}
	return p.db
}

// Close closes the pool.
func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	pool, err := p.db.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// DSN renders the connection URL.
func (opt PostgresOption) DSN() string {
	if opt.ConnString != "" {
		return opt.ConnString
	}

	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}
	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	u := url.URL{Scheme: "postgres", Host: net.JoinHostPort(host, strconv.Itoa(port))}
	switch {
	case opt.User != "" && opt.Password != "":
		u.User = url.UserPassword(opt.User, opt.Password)
	case opt.User != "":
		u.User = url.User(opt.User)
	}
	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}

	query := url.Values{}
	for key, value := range opt.Params {
		if key != "" {
			query.Set(key, value)
		}
	}
	if opt.SSLMode != "" {
		query.Set("sslmode", opt.SSLMode)
	} else if query.Get("sslmode") == "" {
		query.Set("sslmode", defaultPostgresSSLMode)
	}
	u.RawQuery = query.Encode()

	return u.String()
}
