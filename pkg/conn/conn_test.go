package conn

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"mbo/pkg/exception"
)

func TestPostgresDSN(t *testing.T) {
	testCases := []struct {
		desc string
		opt  PostgresOption
		want string
	}{
		{desc: "defaults", opt: PostgresOption{}, want: "postgres://localhost:5432?sslmode=disable"},
		{
			desc: "full",
			opt:  PostgresOption{Host: "db", Port: 6543, User: "u", Password: "p", Database: "mbo", SSLMode: "require"},
			want: "postgres://u:p@db:6543/mbo?sslmode=require",
		},
		{
			desc: "params keep their sslmode",
			opt:  PostgresOption{User: "u", Params: map[string]string{"sslmode": "verify-full", "application_name": "mbo"}},
			want: "postgres://u@localhost:5432?application_name=mbo&sslmode=verify-full",
		},
		{desc: "conn string wins", opt: PostgresOption{Host: "db", ConnString: "host=x"}, want: "host=x"},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.opt.DSN())
		})
	}
}

func TestNewRedis(t *testing.T) {
	m := miniredis.RunT(t)
	client, err := NewRedis(t.Context(), RedisOption{Addr: m.Addr()})
	require.NoError(t, err)
	require.NoError(t, client.Close())
}

func TestNewKafkaWriterValidation(t *testing.T) {
	_, err := NewKafkaWriter(KafkaOption{Topic: "t"})
	assert.True(t, errors.Is(err, exception.ErrInvalidArgument))

	w, err := NewKafkaWriter(KafkaOption{Brokers: []string{"localhost:9092"}, Topic: "order_book"})
	require.NoError(t, err)
	assert.Equal(t, "order_book", w.Topic)
	require.NoError(t, w.Close())
}
