package position

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zerotype19/gekko3/internal/model"
)

func TestStore_PutThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	s := NewStore(path)
	s.Put(&model.TrackedPosition{TradeID: "t1", Symbol: model.SymbolSPY, Strategy: model.StrategyCreditSpread, Status: model.PositionOpen})

	reloaded := NewStore(path)
	require.NoError(t, reloaded.Load())
	p, ok := reloaded.Get("t1")
	require.True(t, ok)
	require.Equal(t, model.SymbolSPY, p.Symbol)
}

func TestStore_LoadMissingFileIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	s := NewStore(path)
	require.NoError(t, s.Load())
	require.Empty(t, s.All())
}

func TestStore_RemoveDeletesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	s := NewStore(path)
	s.Put(&model.TrackedPosition{TradeID: "t1", Symbol: model.SymbolSPY})
	s.Remove("t1")

	_, ok := s.Get("t1")
	require.False(t, ok)

	reloaded := NewStore(path)
	require.NoError(t, reloaded.Load())
	require.Empty(t, reloaded.All())
}

func TestStore_HasOpenFor(t *testing.T) {
	s := NewStore("")
	s.Put(&model.TrackedPosition{TradeID: "t1", Symbol: model.SymbolSPY, Strategy: model.StrategyCreditSpread})

	require.True(t, s.HasOpenFor(model.SymbolSPY, model.StrategyCreditSpread))
	require.False(t, s.HasOpenFor(model.SymbolSPY, model.StrategyIronCondor))
	require.False(t, s.HasOpenFor(model.SymbolQQQ, model.StrategyCreditSpread))
}

func TestStore_MutateAppliesUnderLockAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	s := NewStore(path)
	s.Put(&model.TrackedPosition{TradeID: "t1", Symbol: model.SymbolSPY, HighestPnLSeen: 0})

	ok := s.Mutate("t1", func(p *model.TrackedPosition) { p.HighestPnLSeen = 42 })
	require.True(t, ok)

	reloaded := NewStore(path)
	require.NoError(t, reloaded.Load())
	p, found := reloaded.Get("t1")
	require.True(t, found)
	require.Equal(t, 42.0, p.HighestPnLSeen)
}

func TestStore_MutateUnknownTradeIDReturnsFalse(t *testing.T) {
	s := NewStore("")
	ok := s.Mutate("nope", func(p *model.TrackedPosition) {})
	require.False(t, ok)
}
