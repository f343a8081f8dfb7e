package obs

import (
	"sync/atomic"
	"time"
)

// SeqGenerator numbers the points a process writes so a downstream reader
// can spot gaps and duplicates across sinks.
type SeqGenerator struct {
	last atomic.Uint64
}

// NewSeqGenerator starts counting after base. A zero base starts from the
// current unix microsecond, keeping numbers increasing across restarts.
func NewSeqGenerator(base uint64) *SeqGenerator {
	if base == 0 {
		base = uint64(time.Now().UnixMicro())
	}
	g := &SeqGenerator{}
	g.last.Store(base)
	return g
}

func (g *SeqGenerator) Next() uint64 {
	if g == nil {
		return 0
	}
	return g.last.Add(1)
}

// Last returns the most recently issued number, or the base if none was.
func (g *SeqGenerator) Last() uint64 {
	if g == nil {
		return 0
	}
	return g.last.Load()
}
