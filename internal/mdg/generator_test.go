package mdg

import (
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"mbo/internal/codec"
	"mbo/internal/schema"
	"mbo/pkg/exception"
)

func TestGeneratorDefaults(t *testing.T) {
	g, err := NewGenerator(DefaultConfig("AAPL", "GOOG"), nil)
	require.NoError(t, err)

	now := time.UnixMilli(1700000000000)
	events := g.Sweep(now)
	require.Len(t, events, 2)
	assert.Equal(t, "AAPL", events[0].Symbol)
	assert.Equal(t, "GOOG", events[1].Symbol)

	for i, e := range events {
		assert.Equal(t, schema.KindOBA, e.Kind)
		assert.Equal(t, "buy", e.Side)
		assert.Equal(t, "BrokerA", e.Attribution)
		assert.Equal(t, int64(1700000000000), e.Timestamp)
		assert.GreaterOrEqual(t, e.Price, 100.0)
		assert.LessOrEqual(t, e.Price, 500.0)
		assert.Equal(t, e.Price, math.Round(e.Price*100)/100)
		assert.GreaterOrEqual(t, e.Quantity, int64(1))
		assert.LessOrEqual(t, e.Quantity, int64(1000))
		assert.Equal(t, "ID"+string(rune('1'+i)), e.OrderID)
	}
}

func TestGeneratorSharedSequenceAndReplace(t *testing.T) {
	var seq atomic.Uint64
	cfg := DefaultConfig("MSFT")
	cfg.Kinds = []schema.Kind{schema.KindOBA, schema.KindOBR}
	a, err := NewGenerator(cfg, &seq)
	require.NoError(t, err)
	b, err := NewGenerator(cfg, &seq)
	require.NoError(t, err)

	e1 := a.Next(time.Now())
	e2 := b.Next(time.Now())
	e3 := a.Next(time.Now())
	assert.NotEqual(t, e1.OrderID, e2.OrderID)
	assert.Equal(t, schema.KindOBA, e1.Kind)
	assert.Equal(t, schema.KindOBR, e3.Kind)
	assert.True(t, e3.HasNewID)
	assert.Equal(t, "NID3", e3.NewID)
}

func TestGeneratorRequiresSymbols(t *testing.T) {
	_, err := NewGenerator(Config{}, nil)
	assert.True(t, errors.Is(err, exception.ErrInvalidArgument))
}

func TestGeneratedEventsDecode(t *testing.T) {
	cfg := DefaultConfig("AAPL")
	cfg.Kinds = schema.KnownKinds()
	cfg.RandomKinds = true
	cfg.Seed = 7
	g, err := NewGenerator(cfg, nil)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		e := g.Next(time.Now())
		raw, err := codec.EncodeEvent(e)
		require.NoError(t, err)
		got, err := codec.DecodeEvent(raw)
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
}

func TestCorruptedMessagesAreRejected(t *testing.T) {
	g, err := NewGenerator(DefaultConfig("AAPL"), nil)
	require.NoError(t, err)
	raw, err := codec.EncodeEvent(g.Next(time.Now()))
	require.NoError(t, err)

	for _, f := range []Fault{FaultTruncate, FaultDropField, FaultGarbage, FaultNotObject} {
		_, err := codec.DecodeEvent(Corrupt(raw, f))
		assert.Error(t, err, f.String())
	}
	assert.Equal(t, raw, Corrupt(raw, FaultNone))
}

func TestRandomFault(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	assert.Equal(t, FaultNone, RandomFault(rng, 0))
	for i := 0; i < 20; i++ {
		assert.NotEqual(t, FaultNone, RandomFault(rng, 1))
	}
}
