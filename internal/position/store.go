// Package position is the Position Manager (spec §4.F): it exclusively
// owns the Brain's Tracked Position map, mirrors it to disk after every
// mutation, runs the 5 s P&L/exit loop, chases unfilled orders, and
// reconciles against broker truth every 10 minutes. Grounded on the
// teacher's AutoTrader: its peakPnLCache/positionFirstSeenTime maps are
// the precedent for "track a running high-water-mark under a dedicated
// mutex", and alpaca_trader.go's WaitForFill/CancelOrder/GetPositions
// shape the broker calls this package makes.
package position

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zerotype19/gekko3/internal/logging"
	"github.com/zerotype19/gekko3/internal/metrics"
	"github.com/zerotype19/gekko3/internal/model"
)

var log = logging.For("brain.position")

// Store is the exclusive owner of the Tracked Position map, mirrored to
// disk after every mutation (spec §4.F "Persistence").
type Store struct {
	mu   sync.Mutex
	byID map[string]*model.TrackedPosition
	path string
}

func NewStore(path string) *Store {
	return &Store{byID: make(map[string]*model.TrackedPosition), path: path}
}

// Load reads the disk mirror at startup; a missing file means a fresh
// start, not an error.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("position: read mirror: %w", err)
	}
	var positions []*model.TrackedPosition
	if err := json.Unmarshal(data, &positions); err != nil {
		return fmt.Errorf("position: parse mirror: %w", err)
	}
	s.byID = make(map[string]*model.TrackedPosition, len(positions))
	for _, p := range positions {
		s.byID[p.TradeID] = p
	}
	return nil
}

// persistLocked overwrites the disk mirror with the current map,
// writing to a temp file first and renaming into place so a crash
// mid-write never leaves a truncated mirror behind. Caller holds s.mu.
func (s *Store) persistLocked() {
	if s.path == "" {
		return
	}
	positions := make([]*model.TrackedPosition, 0, len(s.byID))
	for _, p := range s.byID {
		positions = append(positions, p)
	}
	data, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("persist: marshal failed")
		return
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".positions-*.tmp")
	if err != nil {
		log.Error().Err(err).Msg("persist: create temp file failed")
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		log.Error().Err(err).Msg("persist: write temp file failed")
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		log.Error().Err(err).Msg("persist: close temp file failed")
		return
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		log.Error().Err(err).Msg("persist: rename temp file failed")
	}
}

// Put inserts or replaces a tracked position and persists immediately.
func (s *Store) Put(p *model.TrackedPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[p.TradeID] = p
	s.persistLocked()
	metrics.OpenPositions.WithLabelValues(string(p.Symbol), string(p.Strategy)).Inc()
}

// Remove deletes a tracked position (the trade has fully closed or is a
// reconciled ghost) and persists immediately.
func (s *Store) Remove(tradeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[tradeID]
	if !ok {
		return
	}
	delete(s.byID, tradeID)
	s.persistLocked()
	metrics.OpenPositions.WithLabelValues(string(p.Symbol), string(p.Strategy)).Dec()
}

// Get returns a tracked position by trade id.
func (s *Store) Get(tradeID string) (*model.TrackedPosition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[tradeID]
	return p, ok
}

// All returns a snapshot slice of every tracked position.
func (s *Store) All() []*model.TrackedPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.TrackedPosition, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p)
	}
	return out
}

// HasOpenFor reports whether any tracked position for symbol/strategy
// is not yet closed; satisfies strategy.PositionTracker.
func (s *Store) HasOpenFor(symbol model.Symbol, strategyName model.Strategy) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		if p.Symbol == symbol && p.Strategy == strategyName {
			return true
		}
	}
	return false
}

// Mutate applies fn to the tracked position under the store lock and
// persists the result; fn must not retain the pointer beyond its call.
func (s *Store) Mutate(tradeID string, fn func(p *model.TrackedPosition)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[tradeID]
	if !ok {
		return false
	}
	fn(p)
	s.persistLocked()
	return true
}
