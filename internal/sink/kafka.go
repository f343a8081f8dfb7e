package sink

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"github.com/yanun0323/errors"

	"mbo/pkg/exception"
)

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes points as JSON messages keyed by symbol.
type Kafka struct {
	*async
	w MessageWriter
}

// NewKafka creates the sink on w. Close closes w.
func NewKafka(w MessageWriter, cfg AsyncConfig) (*Kafka, error) {
	if w == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "kafka sink: nil writer")
	}
	s := &Kafka{w: w}
	s.async = newAsync("kafka", cfg, s.publish)
	return s, nil
}

// Close flushes queued points and closes the writer.
func (s *Kafka) Close() error {
	err := s.async.Close()
	return errors.Join(err, s.w.Close())
}

func (s *Kafka) publish(ctx context.Context, batch []Point) error {
	msgs := make([]kafka.Message, 0, len(batch))
	for _, p := range batch {
		value, err := sonic.Marshal(p)
		if err != nil {
			return errors.Wrap(err, "encode point").With("symbol", p.Symbol)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(p.Symbol), Value: value})
	}
	if err := s.w.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrap(err, "publish order book points").With("points", len(msgs))
	}
	return nil
}
