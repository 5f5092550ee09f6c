package gate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/gateclient"
	"github.com/zerotype19/gekko3/internal/ledger"
	"github.com/zerotype19/gekko3/internal/model"
	"github.com/zerotype19/gekko3/internal/notifier"
)

const testSecret = "test-shared-secret"

// fakeBroker satisfies broker.Client; embedding the interface lets each
// test override only the methods it needs, mirroring
// internal/position/reconcile_test.go's fakeReconcileBroker.
type fakeBroker struct {
	broker.Client
	equity        float64
	positions     map[model.Symbol][]broker.BrokerLegPosition
	placeErr      error
	placedOrder   broker.OrderReport
	getAccountErr error
}

func (f *fakeBroker) GetAccount(ctx context.Context) (broker.AccountSnapshot, error) {
	if f.getAccountErr != nil {
		return broker.AccountSnapshot{}, f.getAccountErr
	}
	return broker.AccountSnapshot{Equity: f.equity}, nil
}

func (f *fakeBroker) GetPositions(ctx context.Context) (map[model.Symbol][]broker.BrokerLegPosition, error) {
	if f.positions == nil {
		return map[model.Symbol][]broker.BrokerLegPosition{}, nil
	}
	return f.positions, nil
}

func (f *fakeBroker) PlaceMultiLegOrder(ctx context.Context, req broker.MultiLegOrderRequest) (broker.OrderReport, error) {
	if f.placeErr != nil {
		return broker.OrderReport{}, f.placeErr
	}
	if f.placedOrder.OrderID == "" {
		return broker.OrderReport{OrderID: "order-1", Status: broker.OrderPending}, nil
	}
	return f.placedOrder, nil
}

func (f *fakeBroker) CancelOrder(ctx context.Context, orderID string) error { return nil }

func testConstitution() model.Constitution {
	return model.Constitution{
		AllowedSymbols:            []model.Symbol{model.SymbolSPY, model.SymbolQQQ, model.SymbolIWM, model.SymbolDIA},
		AllowedStrategies:         []model.Strategy{model.StrategyCreditSpread, model.StrategyIronCondor, model.StrategyIronButterfly, model.StrategyRatioSpread},
		MaxOpenPositions:          10,
		MaxConcentrationPerSymbol: 3,
		MaxDailyLossPercent:       0.02,
		MinDTE:                    0,
		MaxDTE:                    45,
		CorrelationGroups:         map[model.Symbol]string{model.SymbolSPY: "US_INDICES", model.SymbolQQQ: "US_INDICES"},
		MaxCorrelatedPositions:    2,
		MaxTotalPositions:         20,
		StaleProposalMs:           5000,
	}
}

func newTestGate(t *testing.T, b broker.Client) (*Gate, *ledger.DB) {
	t.Helper()
	db, err := ledger.Open(filepath.Join(t.TempDir(), "gate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	g, err := New(testConstitution(), testSecret, db, b, notifier.NewLogging())
	require.NoError(t, err)
	return g, db
}

// sign reuses the Brain side's own canonical signer so the two halves
// of the wire contract are exercised against each other, not against a
// second hand-rolled implementation.
func sign(t *testing.T, p model.Proposal) ([]byte, string) {
	t.Helper()
	body, sig, err := gateclient.SignProposal(p, testSecret)
	require.NoError(t, err)
	return body, sig
}

func bullPutSpreadProposal(now time.Time) model.Proposal {
	exp := now.AddDate(0, 0, 30)
	return model.Proposal{
		ID:          "s1-proposal",
		TimestampMs: now.UnixMilli(),
		Symbol:      model.SymbolSPY,
		Strategy:    model.StrategyCreditSpread,
		Side:        model.ProposalOpen,
		Quantity:    10,
		Price:       1.20,
		Legs: []model.Leg{
			{OptionSymbol: "SPY_SHORT_PUT", Underlying: model.SymbolSPY, Expiration: exp, Strike: 428, Type: model.OptionPut, Quantity: 10, Side: model.LegSell},
			{OptionSymbol: "SPY_LONG_PUT", Underlying: model.SymbolSPY, Expiration: exp, Strike: 426, Type: model.OptionPut, Quantity: 10, Side: model.LegBuy},
		},
		Context: model.Context{
			"vix":        model.NumberContext(18.0),
			"flow_state": model.StringContext(string(model.FlowRiskOn)),
			"bias":       model.StringContext(string(model.BiasBullish)),
		},
	}
}

// S1 — Bull Put Spread, happy path.
func TestEvaluate_S1_HappyPathApproves(t *testing.T) {
	now := time.Now()
	b := &fakeBroker{equity: 100000}
	g, db := newTestGate(t, b)

	p := bullPutSpreadProposal(now)
	body, sig := sign(t, p)

	decision, err := g.Evaluate(context.Background(), p, body, sig, now)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, decision.Status)
	require.Equal(t, "order-1", decision.OrderID)

	meta, err := db.AllPositionMetadata()
	require.NoError(t, err)
	require.Len(t, meta, 1)
	require.Equal(t, model.BiasBullish, meta[0].Bias)
	require.Equal(t, "US_INDICES", meta[0].CorrelationGroup)
}

// S2 — Correlation guard trips: two bullish SPY positions already open
// in the US_INDICES group with maxCorrelatedPositions=2 blocks a third
// bullish trade in that group.
func TestEvaluate_S2_CorrelationGuardTrips(t *testing.T) {
	now := time.Now()
	b := &fakeBroker{equity: 100000}
	g, db := newTestGate(t, b)

	for i := 0; i < 2; i++ {
		require.NoError(t, db.PutPositionMetadata(model.PositionMetadata{
			OrderID: "existing-" + string(rune('a'+i)), Symbol: model.SymbolSPY, Bias: model.BiasBullish,
			Strategy: model.StrategyCreditSpread, CorrelationGroup: "US_INDICES", CreatedAt: now,
		}))
	}

	p := bullPutSpreadProposal(now)
	p.Symbol = model.SymbolQQQ
	for i := range p.Legs {
		p.Legs[i].Underlying = model.SymbolQQQ
	}
	p.ID = "s2-proposal"
	body, sig := sign(t, p)

	decision, err := g.Evaluate(context.Background(), p, body, sig, now)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, decision.Status)
	require.Contains(t, decision.Reason, "US_INDICES")
	require.Contains(t, decision.Reason, "2")
}

// S3 — Daily loss auto-lock.
func TestEvaluate_S3_DailyLossAutoLocks(t *testing.T) {
	now := time.Now()
	b := &fakeBroker{equity: 97900}
	g, db := newTestGate(t, b)
	require.NoError(t, db.SetDayState(ledger.DayState{TradingDate: tradingDate(now), StartOfDayEquity: 100000}))
	g.day.StartOfDayEquity = 100000
	g.day.TradingDate = tradingDate(now)

	p := bullPutSpreadProposal(now)
	body, sig := sign(t, p)

	decision, err := g.Evaluate(context.Background(), p, body, sig, now)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, decision.Status)
	require.Contains(t, decision.Reason, "2.10%")

	status, err := db.GetSystemStatus()
	require.NoError(t, err)
	require.Equal(t, model.StatusLocked, status.Status)

	// Any subsequent proposal is rejected for being locked, even if it
	// would otherwise pass every other gate.
	p2 := bullPutSpreadProposal(now)
	p2.ID = "s3-followup"
	body2, sig2 := sign(t, p2)
	decision2, err := g.Evaluate(context.Background(), p2, body2, sig2, now)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, decision2.Status)
	require.Equal(t, "System is locked", decision2.Reason)
}

func TestEvaluate_MissingSignatureRejected(t *testing.T) {
	now := time.Now()
	g, _ := newTestGate(t, &fakeBroker{equity: 100000})
	p := bullPutSpreadProposal(now)
	body, _ := sign(t, p)

	decision, err := g.Evaluate(context.Background(), p, body, "", now)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, decision.Status)
}

func TestEvaluate_InvalidSignatureRejected(t *testing.T) {
	now := time.Now()
	g, _ := newTestGate(t, &fakeBroker{equity: 100000})
	p := bullPutSpreadProposal(now)
	body, _ := sign(t, p)

	decision, err := g.Evaluate(context.Background(), p, body, "deadbeef", now)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, decision.Status)
}

func TestVerifySignature_RoundTrips(t *testing.T) {
	now := time.Now()
	g, _ := newTestGate(t, &fakeBroker{equity: 100000})
	p := bullPutSpreadProposal(now)
	body, sig := sign(t, p)

	require.True(t, g.verifySignature(body, sig))
	require.False(t, g.verifySignature(body, sig[:len(sig)-2]+"00"))
}

// Proposal aged exactly staleProposalMs is accepted; +1ms is rejected.
func TestEvaluate_StalenessBoundary(t *testing.T) {
	g, _ := newTestGate(t, &fakeBroker{equity: 100000})

	now := time.Now()
	p := bullPutSpreadProposal(now)
	p.TimestampMs = now.UnixMilli() - g.constitution.StaleProposalMs
	body, sig := sign(t, p)
	decision, err := g.Evaluate(context.Background(), p, body, sig, now)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, decision.Status)

	p2 := bullPutSpreadProposal(now)
	p2.ID = "stale-plus-one"
	p2.TimestampMs = now.UnixMilli() - g.constitution.StaleProposalMs - 1
	body2, sig2 := sign(t, p2)
	decision2, err := g.Evaluate(context.Background(), p2, body2, sig2, now)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, decision2.Status)
}

// VIX exactly 28 is accepted; 28.01 is rejected.
func TestEvaluate_VIXBoundary(t *testing.T) {
	now := time.Now()

	g, _ := newTestGate(t, &fakeBroker{equity: 100000})
	p := bullPutSpreadProposal(now)
	p.Context["vix"] = model.NumberContext(28.0)
	body, sig := sign(t, p)
	decision, err := g.Evaluate(context.Background(), p, body, sig, now)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, decision.Status)

	g2, _ := newTestGate(t, &fakeBroker{equity: 100000})
	p2 := bullPutSpreadProposal(now)
	p2.ID = "vix-over"
	p2.Context["vix"] = model.NumberContext(28.01)
	body2, sig2 := sign(t, p2)
	decision2, err := g2.Evaluate(context.Background(), p2, body2, sig2, now)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, decision2.Status)
}

// DTE exactly at minDte/maxDte is accepted; one outside is rejected.
func TestEvaluate_DTEBoundary(t *testing.T) {
	now := time.Now()

	g, _ := newTestGate(t, &fakeBroker{equity: 100000})
	p := bullPutSpreadProposal(now)
	for i := range p.Legs {
		p.Legs[i].Expiration = now.AddDate(0, 0, g.constitution.MaxDTE)
	}
	body, sig := sign(t, p)
	decision, err := g.Evaluate(context.Background(), p, body, sig, now)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, decision.Status)

	g2, _ := newTestGate(t, &fakeBroker{equity: 100000})
	p2 := bullPutSpreadProposal(now)
	p2.ID = "dte-over"
	for i := range p2.Legs {
		p2.Legs[i].Expiration = now.AddDate(0, 0, g2.constitution.MaxDTE+1)
	}
	body2, sig2 := sign(t, p2)
	decision2, err := g2.Evaluate(context.Background(), p2, body2, sig2, now)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, decision2.Status)
}

func TestLockAndUnlock(t *testing.T) {
	g, _ := newTestGate(t, &fakeBroker{equity: 100000})
	state := g.Lock("manual review")
	require.Equal(t, model.StatusLocked, state.Status)

	now := time.Now()
	p := bullPutSpreadProposal(now)
	body, sig := sign(t, p)
	decision, err := g.Evaluate(context.Background(), p, body, sig, now)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, decision.Status)
	require.Equal(t, "System is locked", decision.Reason)

	unlocked := g.Unlock()
	require.Equal(t, model.StatusNormal, unlocked.Status)
}

func TestUpdateCalendarBlocksOpenOnRestrictedDate(t *testing.T) {
	now := time.Now()
	g, _ := newTestGate(t, &fakeBroker{equity: 100000})

	count, err := g.UpdateCalendar([]string{tradingDate(now)})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	p := bullPutSpreadProposal(now)
	body, sig := sign(t, p)
	decision, err := g.Evaluate(context.Background(), p, body, sig, now)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, decision.Status)
}

func TestLiquidateCancelsAndLocks(t *testing.T) {
	b := &fakeBroker{equity: 100000}
	g, db := newTestGate(t, b)
	require.NoError(t, db.InsertOrder(ledger.OrderRecord{ID: "pending-1", ProposalID: "p1", Symbol: model.SymbolSPY, Status: "pending", Quantity: 10}))

	results, err := g.Liquidate(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "canceled", results[0].Status)

	status, err := db.GetSystemStatus()
	require.NoError(t, err)
	require.Equal(t, model.StatusLocked, status.Status)
}

func TestReconcileAccountUpdatesCachedState(t *testing.T) {
	now := time.Now()
	b := &fakeBroker{equity: 50000, positions: map[model.Symbol][]broker.BrokerLegPosition{
		model.SymbolSPY: {{OptionSymbol: "SPY_X", Quantity: 5, Side: model.LegSell}},
	}}
	g, db := newTestGate(t, b)

	g.mu.Lock()
	g.reconcileAccount(context.Background(), now)
	g.mu.Unlock()
	require.Equal(t, 50000.0, g.cachedEquity)
	require.Len(t, g.cachedPositions[model.SymbolSPY], 1)

	equity, ok, err := db.LatestEquitySnapshot()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 50000.0, equity)

	// A second reconciliation against the same broker state is a no-op
	// on the cached view.
	g.mu.Lock()
	g.reconcileAccount(context.Background(), now)
	g.mu.Unlock()
	require.Equal(t, 50000.0, g.cachedEquity)
	require.Len(t, g.cachedPositions[model.SymbolSPY], 1)
}

func TestStatusReflectsRecentProposals(t *testing.T) {
	now := time.Now()
	g, _ := newTestGate(t, &fakeBroker{equity: 100000})

	p := bullPutSpreadProposal(now)
	body, sig := sign(t, p)
	_, err := g.Evaluate(context.Background(), p, body, sig, now)
	require.NoError(t, err)

	view, err := g.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, view.RecentProposals, 1)
	require.Equal(t, "APPROVED", view.RecentProposals[0].Status)
}

func TestHeartbeatPersists(t *testing.T) {
	now := time.Now()
	g, db := newTestGate(t, &fakeBroker{equity: 100000})

	payload := map[string]interface{}{"timestamp_ms": now.UnixMilli()}
	body, sig, err := gateclient.SignHeartbeat(payload, testSecret)
	require.NoError(t, err)

	ok := g.Heartbeat(body, sig, []byte(`{"regime":"TRENDING"}`), now)
	require.True(t, ok)

	hb, found, err := db.GetHeartbeat()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, now.Unix(), hb.LastHeartbeatAt.Unix())
}

func TestHeartbeatRejectsBadSignature(t *testing.T) {
	g, _ := newTestGate(t, &fakeBroker{equity: 100000})
	ok := g.Heartbeat([]byte(`{"timestamp_ms":1}`), "bad-sig", nil, time.Now())
	require.False(t, ok)
}
