package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"mbo/internal/schema"
	"mbo/pkg/exception"
)

const validAdd = `{"type":"oba","s":"AAPL","tm":1700000000000,"q":100,"p":150.25,"x":"buy","id":"ID1","a":"BrokerA","mid":"MID1"}`

func TestDecodeEvent(t *testing.T) {
	e, err := DecodeEvent(validAdd)
	require.NoError(t, err)
	assert.Equal(t, schema.Event{
		Kind:        schema.KindOBA,
		Symbol:      "AAPL",
		Timestamp:   1700000000000,
		Quantity:    100,
		Price:       150.25,
		Side:        "buy",
		OrderID:     "ID1",
		Attribution: "BrokerA",
		MatchID:     "MID1",
	}, e)
}

func TestDecodeEventNewID(t *testing.T) {
	e, err := DecodeEvent(`{"type":"obr","s":"MSFT","tm":1,"q":1,"p":2,"x":"sell","id":"old","a":"B","mid":"M","nid":"new"}`)
	require.NoError(t, err)
	assert.True(t, e.HasNewID)
	assert.Equal(t, "new", e.NewID)
	assert.Equal(t, "new", e.EffectiveOrderID())

	e, err = DecodeEvent(`{"type":"obr","s":"MSFT","tm":1,"q":1,"p":2,"x":"sell","id":"old","a":"B","mid":"M","nid":null}`)
	require.NoError(t, err)
	assert.False(t, e.HasNewID)
	assert.Equal(t, "", e.EffectiveOrderID())
}

func TestDecodeEventUnknownKindIsWellFormed(t *testing.T) {
	e, err := DecodeEvent(`{"type":"xyz","s":"AAPL","tm":1,"q":1,"p":1,"x":"buy","id":"1","a":"A","mid":"M"}`)
	require.NoError(t, err)
	assert.Equal(t, schema.Kind("xyz"), e.Kind)
}

func TestDecodeEventIntegralFloat(t *testing.T) {
	e, err := DecodeEvent(`{"type":"oba","s":"AAPL","tm":1.0,"q":5.0,"p":1,"x":"buy","id":"1","a":"A","mid":"M"}`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.Timestamp)
	assert.Equal(t, int64(5), e.Quantity)
	assert.Equal(t, 1.0, e.Price)
}

func TestDecodeEventFailures(t *testing.T) {
	testCases := []struct {
		desc   string
		raw    string
		target error
	}{
		{desc: "empty", raw: "", target: exception.ErrEmptyMessage},
		{desc: "whitespace", raw: "  \n", target: exception.ErrEmptyMessage},
		{desc: "truncated", raw: `{"type":"oba"`, target: exception.ErrMalformedMessage},
		{desc: "garbage", raw: `not json`, target: exception.ErrMalformedMessage},
		{desc: "array", raw: `[1,2,3]`, target: exception.ErrNotObject},
		{desc: "string", raw: `"oba"`, target: exception.ErrNotObject},
		{desc: "number", raw: `42`, target: exception.ErrNotObject},
		{desc: "missing symbol", raw: `{"type":"oba","tm":1,"q":1,"p":1,"x":"buy","id":"1","a":"A","mid":"M"}`, target: exception.ErrMissingField},
		{desc: "missing mid", raw: `{"type":"oba","s":"AAPL","tm":1,"q":1,"p":1,"x":"buy","id":"1","a":"A"}`, target: exception.ErrMissingField},
		{desc: "null price", raw: `{"type":"oba","s":"AAPL","tm":1,"q":1,"p":null,"x":"buy","id":"1","a":"A","mid":"M"}`, target: exception.ErrMissingField},
		{desc: "price as string", raw: `{"type":"oba","s":"AAPL","tm":1,"q":1,"p":"1.5","x":"buy","id":"1","a":"A","mid":"M"}`, target: exception.ErrFieldShape},
		{desc: "symbol as number", raw: `{"type":"oba","s":7,"tm":1,"q":1,"p":1,"x":"buy","id":"1","a":"A","mid":"M"}`, target: exception.ErrFieldShape},
		{desc: "fractional quantity", raw: `{"type":"oba","s":"AAPL","tm":1,"q":1.5,"p":1,"x":"buy","id":"1","a":"A","mid":"M"}`, target: exception.ErrFieldShape},
		{desc: "negative quantity", raw: `{"type":"oba","s":"AAPL","tm":1,"q":-1,"p":1,"x":"buy","id":"1","a":"A","mid":"M"}`, target: exception.ErrFieldShape},
		{desc: "nid as number", raw: `{"type":"obr","s":"AAPL","tm":1,"q":1,"p":1,"x":"buy","id":"1","a":"A","mid":"M","nid":9}`, target: exception.ErrFieldShape},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			e, err := DecodeEvent(tc.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.target), "got %v", err)
			assert.Equal(t, schema.Event{}, e)
		})
	}
}

func TestDecodeEventMissingFieldNamesField(t *testing.T) {
	_, err := DecodeEvent(`{"type":"oba","s":"AAPL","tm":1,"q":1,"x":"buy","id":"1","a":"A","mid":"M"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"p"`)
}

func TestEncodeEvent(t *testing.T) {
	in := schema.Event{
		Kind:        schema.KindOBR,
		Symbol:      "GOOG",
		Timestamp:   42,
		Quantity:    3,
		Price:       99.5,
		Side:        "sell",
		OrderID:     "ID9",
		Attribution: "BrokerC",
		MatchID:     "MID9",
		NewID:       "NID9",
		HasNewID:    true,
	}
	raw, err := EncodeEvent(in)
	require.NoError(t, err)
	assert.Contains(t, raw, `"nid":"NID9"`)

	out, err := DecodeEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	in.HasNewID = false
	in.NewID = ""
	raw, err = EncodeEvent(in)
	require.NoError(t, err)
	assert.NotContains(t, raw, "nid")
}
