package sink

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"

	"mbo/pkg/exception"
)

const defaultStreamPrefix = "mbo:"

// RedisConfig controls the redis stream sink.
type RedisConfig struct {
	AsyncConfig
	// StreamPrefix is prepended to the measurement to form the stream key.
	StreamPrefix string
	// MaxLen caps each stream approximately. Zero leaves it unbounded.
	MaxLen int64
}

// Redis appends points to one redis stream per measurement.
type Redis struct {
	*async
	client redis.Cmdable
	cfg    RedisConfig
}

// NewRedis creates the sink on client. The caller keeps ownership of client.
func NewRedis(client redis.Cmdable, cfg RedisConfig) (*Redis, error) {
	if client == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "redis sink: nil client")
	}
	if cfg.StreamPrefix == "" {
		cfg.StreamPrefix = defaultStreamPrefix
	}
	s := &Redis{client: client, cfg: cfg}
	s.async = newAsync("redis", cfg.AsyncConfig, s.xadd)
	return s, nil
}

// StreamKey returns the stream a point of measurement goes to.
func (s *Redis) StreamKey(measurement string) string {
	return s.cfg.StreamPrefix + measurement
}

func (s *Redis) xadd(ctx context.Context, batch []Point) error {
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range batch {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: s.StreamKey(p.Measurement),
				MaxLen: s.cfg.MaxLen,
				Approx: s.cfg.MaxLen > 0,
				Values: streamValues(p),
			})
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "xadd order book points").With("points", len(batch))
	}
	return nil
}

func streamValues(p Point) []any {
	return []any{
		"kind", string(p.Kind),
		"symbol", p.Symbol,
		"price", strconv.FormatFloat(p.Price, 'f', -1, 64),
		"quantity", strconv.FormatInt(p.Quantity, 10),
		"side", p.Side,
		"order_id", p.OrderID,
		"attribution", p.Attribution,
		"match_id", p.MatchID,
		"ts", strconv.FormatInt(p.Timestamp, 10),
		"run_id", p.RunID,
	}
}
