// Package series keeps a bounded rolling price history per symbol.
package series

import (
	"sort"
	"sync"
)

// DefaultRetention is the number of points kept per symbol.
const DefaultRetention = 1000

// Series is the rolling history of one symbol. Values are stored in a ring
// so appends stay O(1) once the bound is reached.
type Series struct {
	mu       sync.Mutex
	ring     []float64
	head     int // index of the oldest value
	size     int
	logScale bool
}

func newSeries(retention int) *Series {
	return &Series{ring: make([]float64, retention)}
}

func (s *Series) append(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.ring)
	if s.size < n {
		s.ring[(s.head+s.size)%n] = v
		s.size++
		return
	}
	s.ring[s.head] = v
	s.head = (s.head + 1) % n
}

func (s *Series) values() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]float64, s.size)
	n := len(s.ring)
	for i := 0; i < s.size; i++ {
		out[i] = s.ring[(s.head+i)%n]
	}
	return out
}

func (s *Series) clear() {
	s.mu.Lock()
	s.head, s.size = 0, 0
	s.mu.Unlock()
}

// Store maps symbol to Series. The map lock is only held to find or create a
// series; appends to different symbols do not contend.
type Store struct {
	retention int

	mu     sync.RWMutex
	series map[string]*Series
}

// NewStore creates a store keeping at most retention points per symbol.
// A non-positive retention falls back to DefaultRetention.
func NewStore(retention int) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		retention: retention,
		series:    make(map[string]*Series),
	}
}

// Retention returns the per-symbol bound.
func (s *Store) Retention() int {
	return s.retention
}

func (s *Store) getOrCreate(symbol string) *Series {
	s.mu.RLock()
	ser, ok := s.series[symbol]
	s.mu.RUnlock()
	if ok {
		return ser
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ser, ok = s.series[symbol]; ok {
		return ser
	}
	ser = newSeries(s.retention)
	s.series[symbol] = ser
	return ser
}

func (s *Store) lookup(symbol string) (*Series, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser, ok := s.series[symbol]
	return ser, ok
}

// Append adds price to the end of symbol's history, dropping the oldest
// values beyond the retention bound.
func (s *Store) Append(symbol string, price float64) {
	if s == nil {
		return
	}
	s.getOrCreate(symbol).append(price)
}

// Snapshot returns a copy of symbol's history, oldest first. Unknown symbols
// return nil.
func (s *Store) Snapshot(symbol string) []float64 {
	if s == nil {
		return nil
	}
	ser, ok := s.lookup(symbol)
	if !ok {
		return nil
	}
	return ser.values()
}

// Len returns the number of points held for symbol.
func (s *Store) Len(symbol string) int {
	if s == nil {
		return 0
	}
	ser, ok := s.lookup(symbol)
	if !ok {
		return 0
	}
	ser.mu.Lock()
	defer ser.mu.Unlock()
	return ser.size
}

// Symbols returns every known symbol in lexical order.
func (s *Store) Symbols() []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	out := make([]string, 0, len(s.series))
	for sym := range s.series {
		out = append(out, sym)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Clear empties every series. Symbols and their display flags are kept.
func (s *Store) Clear() {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ser := range s.series {
		ser.clear()
	}
}

// SetLogScale sets the display flag of symbol, creating an empty series when
// the symbol is unseen.
func (s *Store) SetLogScale(symbol string, on bool) {
	if s == nil {
		return
	}
	ser := s.getOrCreate(symbol)
	ser.mu.Lock()
	ser.logScale = on
	ser.mu.Unlock()
}

// LogScale reports the display flag of symbol.
func (s *Store) LogScale(symbol string) bool {
	if s == nil {
		return false
	}
	ser, ok := s.lookup(symbol)
	if !ok {
		return false
	}
	ser.mu.Lock()
	defer ser.mu.Unlock()
	return ser.logScale
}
