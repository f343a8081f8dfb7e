package mdg

import (
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"

	"mbo/internal/schema"
	"mbo/pkg/exception"
)

// Config controls the synthetic order-book stream.
type Config struct {
	Symbols      []string
	Kinds        []schema.Kind
	Sides        []string
	Attributions []string
	// RandomKinds picks kinds at random instead of rotating through Kinds.
	RandomKinds bool
	MinPrice    float64
	MaxPrice    float64
	MaxQuantity int64
	Seed        uint64
}

// DefaultConfig mirrors the simulated exchange feed: adds only, buy side,
// a single broker, prices in [100, 500).
func DefaultConfig(symbols ...string) Config {
	return Config{
		Symbols:      symbols,
		Kinds:        []schema.Kind{schema.KindOBA},
		Sides:        []string{"buy"},
		Attributions: []string{"BrokerA"},
		MinPrice:     100,
		MaxPrice:     500,
		MaxQuantity:  1000,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if len(c.Kinds) == 0 {
		c.Kinds = def.Kinds
	}
	if len(c.Sides) == 0 {
		c.Sides = def.Sides
	}
	if len(c.Attributions) == 0 {
		c.Attributions = def.Attributions
	}
	if c.MaxPrice <= c.MinPrice {
		c.MinPrice, c.MaxPrice = def.MinPrice, def.MaxPrice
	}
	if c.MaxQuantity <= 0 {
		c.MaxQuantity = def.MaxQuantity
	}
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
	return c
}

// Generator creates synthetic order-book events. A Generator is not safe for
// concurrent use; generators sharing a sequence counter produce unique ids.
type Generator struct {
	cfg     Config
	rng     *rand.Rand
	seq     *atomic.Uint64
	index   int
	kindIdx int
}

// NewGenerator creates a generator. seq may be shared between generators;
// nil allocates a private counter.
func NewGenerator(cfg Config, seq *atomic.Uint64) (*Generator, error) {
	if len(cfg.Symbols) == 0 {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "generator has no symbols")
	}
	cfg = cfg.withDefaults()
	if seq == nil {
		seq = &atomic.Uint64{}
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		seq: seq,
	}, nil
}

// Symbols returns the configured symbols.
func (g *Generator) Symbols() []string {
	return g.cfg.Symbols
}

// Next creates the next event, cycling through the symbols.
func (g *Generator) Next(now time.Time) schema.Event {
	symbol := g.cfg.Symbols[g.index]
	g.index = (g.index + 1) % len(g.cfg.Symbols)
	return g.For(symbol, now)
}

// Sweep creates one event per symbol, in configured order.
func (g *Generator) Sweep(now time.Time) []schema.Event {
	out := make([]schema.Event, 0, len(g.cfg.Symbols))
	for _, symbol := range g.cfg.Symbols {
		out = append(out, g.For(symbol, now))
	}
	return out
}

// For creates an event for symbol.
func (g *Generator) For(symbol string, now time.Time) schema.Event {
	n := strconv.FormatUint(g.seq.Add(1), 10)

	e := schema.Event{
		Kind:        g.nextKind(),
		Symbol:      symbol,
		Timestamp:   now.UnixMilli(),
		Quantity:    1 + g.rng.Int64N(g.cfg.MaxQuantity),
		Price:       g.price(),
		Side:        g.cfg.Sides[g.rng.IntN(len(g.cfg.Sides))],
		OrderID:     "ID" + n,
		Attribution: g.cfg.Attributions[g.rng.IntN(len(g.cfg.Attributions))],
		MatchID:     "MID" + n,
	}
	if e.Kind == schema.KindOBR {
		e.NewID = "NID" + n
		e.HasNewID = true
	}
	return e
}

func (g *Generator) nextKind() schema.Kind {
	if g.cfg.RandomKinds {
		return g.cfg.Kinds[g.rng.IntN(len(g.cfg.Kinds))]
	}
	k := g.cfg.Kinds[g.kindIdx]
	g.kindIdx = (g.kindIdx + 1) % len(g.cfg.Kinds)
	return k
}

// price draws from [MinPrice, MaxPrice) and rounds to cents.
func (g *Generator) price() float64 {
	raw := g.cfg.MinPrice + g.rng.Float64()*(g.cfg.MaxPrice-g.cfg.MinPrice)
	f, _ := decimal.NewFromFloat(raw).Round(2).Float64()
	return f
}
