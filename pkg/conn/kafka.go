package conn

import (
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/yanun0323/errors"

	"mbo/pkg/exception"
)

// KafkaOption defines producer options for kafka.
type KafkaOption struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	AutoCreate   bool
}

// NewKafkaWriter builds a producer keyed-partitioned by message key.
// kafka-go connects lazily, so no network round trip happens here.
func NewKafkaWriter(option KafkaOption) (*kafka.Writer, error) {
	if len(option.Brokers) == 0 {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "kafka: no brokers")
	}
	if option.Topic == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "kafka: empty topic")
	}
	batchTimeout := option.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(option.Brokers...),
		Topic:                  option.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: option.AutoCreate,
	}, nil
}
