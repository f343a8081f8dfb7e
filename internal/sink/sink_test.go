package sink

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"mbo/internal/recorder"
	"mbo/internal/schema"
)

func samplePoint(symbol string, price float64) Point {
	return Point{
		Measurement: schema.MeasurementOrderBook,
		Kind:        schema.KindOBA,
		Symbol:      symbol,
		Price:       price,
		Timestamp:   1700000000000,
		Quantity:    10,
		Side:        "buy",
		OrderID:     "ID1",
		Attribution: "BrokerA",
		MatchID:     "MID1",
		RunID:       "run-1",
	}
}

func TestFanoutAndFunc(t *testing.T) {
	var a, b []Point
	f := Fanout{
		Func(func(p Point) { a = append(a, p) }),
		Func(func(p Point) { b = append(b, p) }),
	}
	f.Write(samplePoint("AAPL", 1))
	assert.Len(t, a, 1)
	assert.Len(t, b, 1)
	assert.NoError(t, f.Close())
	assert.Empty(t, f.Stats())
	assert.NoError(t, Close(Func(func(Point) {})))
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(logs.New(logs.LevelInfo, &logs.Option{Format: logs.FormatText, Output: &buf}), "market_data_dev")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Write(samplePoint("MSFT", 2))
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(4), l.Stats()[0].Written)
	assert.Contains(t, buf.String(), "symbol=MSFT")
	assert.Contains(t, buf.String(), "market_data_dev")
}

func TestPostgresSinkWithSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "sink.db")), &gorm.Config{})
	require.NoError(t, err)

	s, err := NewPostgres(db, PostgresConfig{
		AsyncConfig: AsyncConfig{BatchSize: 2, FlushInterval: 10 * time.Millisecond},
		AutoMigrate: true,
	})
	require.NoError(t, err)

	s.Write(samplePoint("AAPL", 150.25))
	s.Write(samplePoint("GOOG", 99.5))
	s.Write(samplePoint("MSFT", 300))
	require.NoError(t, s.Close())

	var rows []OrderBookRow
	require.NoError(t, db.Order("id").Find(&rows).Error)
	require.Len(t, rows, 3)
	assert.Equal(t, "AAPL", rows[0].Symbol)
	assert.True(t, rows[0].Price.Equal(decimal.RequireFromString("150.25")), rows[0].Price.String())
	assert.Equal(t, "run-1", rows[0].RunID)
	assert.Equal(t, int64(1700000000000), rows[0].EventTs)

	st := s.Stats()[0]
	assert.Equal(t, uint64(3), st.Written)
	assert.Zero(t, st.Failed)
}

func TestPostgresSinkNilDB(t *testing.T) {
	_, err := NewPostgres(nil, PostgresConfig{})
	require.Error(t, err)
}

func TestRedisSinkWithMiniredis(t *testing.T) {
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s, err := NewRedis(client, RedisConfig{MaxLen: 100})
	require.NoError(t, err)

	s.Write(samplePoint("AAPL", 1.5))
	s.Write(samplePoint("GOOG", 2.5))
	require.NoError(t, s.Close())

	entries, err := m.Stream("mbo:order_book")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0].Values, "AAPL")
	assert.Contains(t, entries[0].Values, "1.5")
	assert.Contains(t, entries[1].Values, "GOOG")
	assert.Equal(t, uint64(2), s.Stats()[0].Written)
}

type fakeKafka struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   error
	closed bool
}

func (f *fakeKafka) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafka) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink(t *testing.T) {
	w := &fakeKafka{}
	s, err := NewKafka(w, AsyncConfig{})
	require.NoError(t, err)

	s.Write(samplePoint("AAPL", 3))
	require.NoError(t, s.Close())
	assert.True(t, w.closed)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "AAPL", string(w.msgs[0].Key))
	var p Point
	require.NoError(t, sonic.Unmarshal(w.msgs[0].Value, &p))
	assert.Equal(t, samplePoint("AAPL", 3), p)
}

func TestKafkaSinkFailureIsCounted(t *testing.T) {
	boom := errors.New("broker down")
	s, err := NewKafka(&fakeKafka{fail: boom}, AsyncConfig{})
	require.NoError(t, err)

	s.Write(samplePoint("AAPL", 3))
	s.Write(samplePoint("AAPL", 4))
	err = s.Close()
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, uint64(2), s.Stats()[0].Failed)
}

func TestAsyncDropsWhenClosed(t *testing.T) {
	var drops int
	s, err := NewKafka(&fakeKafka{}, AsyncConfig{OnDrop: func(error) { drops++ }})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s.Write(samplePoint("AAPL", 1))
	assert.Equal(t, 1, drops)
	assert.Equal(t, uint64(1), s.Stats()[0].Dropped)
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	w, err := recorder.NewWriter(recorder.Config{Dir: dir, FileExt: "lp"})
	require.NoError(t, err)
	require.NoError(t, w.Start(t.Context()))

	f, err := NewFile(w, nil)
	require.NoError(t, err)
	f.Write(samplePoint("AAPL", 1))
	f.Write(samplePoint("GOOG", 2))
	require.NoError(t, f.Close())

	var lines []string
	p, err := recorder.NewPlayback(recorder.PlaybackConfig{Dir: dir, FileExt: "lp"})
	require.NoError(t, err)
	require.NoError(t, p.Run(t.Context(), func(rec []byte) error {
		lines = append(lines, string(rec))
		return nil
	}))
	require.Len(t, lines, 2)
	assert.Equal(t, string(AppendLine(nil, samplePoint("AAPL", 1))), lines[0])

	f.Write(samplePoint("MSFT", 3))
	assert.Equal(t, uint64(1), f.Stats()[0].Dropped)
	assert.Equal(t, uint64(2), f.Stats()[0].Written)
}
