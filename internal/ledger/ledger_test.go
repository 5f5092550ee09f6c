package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zerotype19/gekko3/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertAndRecentProposals(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.InsertProposal(ProposalRecord{
		ID: "p1", TimestampS: 100, Symbol: model.SymbolSPY, Strategy: model.StrategyCreditSpread,
		Side: model.ProposalOpen, Quantity: 10, ContextJSON: "{}", Status: "APPROVED",
	}))
	require.NoError(t, db.InsertProposal(ProposalRecord{
		ID: "p2", TimestampS: 200, Symbol: model.SymbolQQQ, Strategy: model.StrategyIronCondor,
		Side: model.ProposalOpen, Quantity: 5, ContextJSON: "{}", Status: "REJECTED", RejectionReason: "locked",
	}))

	recent, err := db.RecentProposals(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "p2", recent[0].ID) // most recent first
}

func TestSystemStatusDefaultsToNormal(t *testing.T) {
	db := openTestDB(t)
	s, err := db.GetSystemStatus()
	require.NoError(t, err)
	require.Equal(t, model.StatusNormal, s.Status)
}

func TestSystemStatusRoundTrips(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SetSystemStatus(model.LockState{Status: model.StatusLocked, Reason: "daily loss"}))
	s, err := db.GetSystemStatus()
	require.NoError(t, err)
	require.Equal(t, model.StatusLocked, s.Status)
	require.Equal(t, "daily loss", s.Reason)

	// Second write exercises the upsert path.
	require.NoError(t, db.SetSystemStatus(model.LockState{Status: model.StatusNormal}))
	s2, err := db.GetSystemStatus()
	require.NoError(t, err)
	require.Equal(t, model.StatusNormal, s2.Status)
}

func TestEquitySnapshotsReturnsLatest(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.RecordEquitySnapshot(100000))
	require.NoError(t, db.RecordEquitySnapshot(97900))

	v, ok, err := db.LatestEquitySnapshot()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 97900.0, v)
}

func TestRestrictedDatesRoundTrips(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.ReplaceRestrictedDates([]string{"2026-01-19", "2026-07-04"}))
	dates, err := db.RestrictedDates()
	require.NoError(t, err)
	require.True(t, dates["2026-01-19"])
	require.True(t, dates["2026-07-04"])
	require.Len(t, dates, 2)
}

func TestPositionMetadataLifecycle(t *testing.T) {
	db := openTestDB(t)
	m := model.PositionMetadata{
		OrderID: "o1", Symbol: model.SymbolSPY, Bias: model.BiasBullish,
		Strategy: model.StrategyCreditSpread, CorrelationGroup: "US_INDICES", CreatedAt: time.Now(),
	}
	require.NoError(t, db.PutPositionMetadata(m))

	found, ok, err := db.FindMostRecentOpenMetadata(model.SymbolSPY, model.StrategyCreditSpread)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "o1", found.OrderID)

	require.NoError(t, db.DeletePositionMetadata("o1"))
	_, ok, err = db.FindMostRecentOpenMetadata(model.SymbolSPY, model.StrategyCreditSpread)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReplacePositionsTruncatesAndRewrites(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.ReplacePositions(map[model.Symbol]int{model.SymbolSPY: 10}))
	require.NoError(t, db.ReplacePositions(map[model.Symbol]int{model.SymbolQQQ: 5}))

	var count int
	require.NoError(t, db.conn.QueryRow(`SELECT COUNT(*) FROM positions`).Scan(&count))
	require.Equal(t, 1, count)
}
