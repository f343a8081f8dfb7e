package sink

import (
	"context"
	"time"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"mbo/pkg/exception"
)

// OrderBookRow is the relational form of a Point.
type OrderBookRow struct {
	ID          uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	RunID       string          `gorm:"column:run_id;size:36;index"`
	Seq         uint64          `gorm:"column:seq"`
	Measurement string          `gorm:"column:measurement;size:32"`
	Kind        string          `gorm:"column:kind;size:8"`
	Symbol      string          `gorm:"column:symbol;size:32;index"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(20,8)"`
	Quantity    int64           `gorm:"column:quantity"`
	Side        string          `gorm:"column:side;size:8"`
	OrderID     string          `gorm:"column:order_id;size:64"`
	Attribution string          `gorm:"column:attribution;size:64"`
	MatchID     string          `gorm:"column:match_id;size:64"`
	EventTs     int64           `gorm:"column:event_ts"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
}

// TableName implements gorm's tabler.
func (OrderBookRow) TableName() string {
	return "order_book_events"
}

func newOrderBookRow(p Point) OrderBookRow {
	return OrderBookRow{
		RunID:       p.RunID,
		Seq:         p.Seq,
		Measurement: p.Measurement,
		Kind:        string(p.Kind),
		Symbol:      p.Symbol,
		Price:       decimal.NewFromFloat(p.Price),
		Quantity:    p.Quantity,
		Side:        p.Side,
		OrderID:     p.OrderID,
		Attribution: p.Attribution,
		MatchID:     p.MatchID,
		EventTs:     p.Timestamp,
	}
}

// PostgresConfig controls the relational sink.
type PostgresConfig struct {
	AsyncConfig
	AutoMigrate bool
}

// Postgres inserts points through gorm in batches.
type Postgres struct {
	*async
	db *gorm.DB
}

// NewPostgres creates the sink on db. The caller keeps ownership of db.
func NewPostgres(db *gorm.DB, cfg PostgresConfig) (*Postgres, error) {
	if db == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "postgres sink: nil db")
	}
	if cfg.AutoMigrate {
		if err := db.AutoMigrate(&OrderBookRow{}); err != nil {
			return nil, errors.Wrap(err, "migrate order book table")
		}
	}

	s := &Postgres{db: db}
	s.async = newAsync("postgres", cfg.AsyncConfig, s.insert)
	return s, nil
}

func (s *Postgres) insert(ctx context.Context, batch []Point) error {
	rows := make([]OrderBookRow, len(batch))
	for i, p := range batch {
		rows[i] = newOrderBookRow(p)
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, len(rows)).Error; err != nil {
		return errors.Wrap(err, "insert order book rows").With("rows", len(rows))
	}
	return nil
}
