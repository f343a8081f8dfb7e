package chaos

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"mbo/internal/codec"
	"mbo/pkg/exception"
)

func messages(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf(`{"type":"oba","s":"AAPL","tm":%d,"q":1,"p":100.5,"x":"buy","id":"ID%d","a":"BrokerA","mid":"MID%d"}`, i, i, i)
	}
	return out
}

func run(e *Engine, in []string) []string {
	var out []string
	for _, raw := range in {
		out = append(out, e.Process(raw)...)
	}
	return append(out, e.Flush()...)
}

func TestPassThrough(t *testing.T) {
	e, err := NewEngine(Config{Seed: 1})
	require.NoError(t, err)
	in := messages(20)
	assert.Equal(t, in, run(e, in))

	var nilEngine *Engine
	assert.Equal(t, []string{"x"}, nilEngine.Process("x"))
}

func TestReorderKeepsEveryMessage(t *testing.T) {
	e, err := NewEngine(Config{Seed: 3, ReorderWindow: 5})
	require.NoError(t, err)
	in := messages(50)
	out := run(e, in)

	assert.NotEqual(t, in, out)
	sort.Strings(out)
	sorted := append([]string(nil), in...)
	sort.Strings(sorted)
	assert.Equal(t, sorted, out)
}

func TestDropDuplicateCorrupt(t *testing.T) {
	e, err := NewEngine(Config{Seed: 9, DropRate: 1})
	require.NoError(t, err)
	assert.Empty(t, run(e, messages(10)))
	dropped, _, _ := e.Counts()
	assert.Equal(t, uint64(10), dropped)

	e, err = NewEngine(Config{Seed: 9, DuplicateRate: 1})
	require.NoError(t, err)
	assert.Len(t, run(e, messages(10)), 20)

	e, err = NewEngine(Config{Seed: 9, CorruptRate: 1})
	require.NoError(t, err)
	for _, raw := range run(e, messages(10)) {
		_, err := codec.DecodeEvent(raw)
		assert.Error(t, err)
	}
	_, _, corrupted := e.Counts()
	assert.Equal(t, uint64(10), corrupted)
}

func TestValidate(t *testing.T) {
	for _, cfg := range []Config{
		{DropRate: -0.1},
		{DuplicateRate: 1.5},
		{CorruptRate: 2},
	} {
		_, err := NewEngine(cfg)
		assert.True(t, errors.Is(err, exception.ErrInvalidConfig))
	}
}
