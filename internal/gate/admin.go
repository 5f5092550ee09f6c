package gate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zerotype19/gekko3/internal/ledger"
	"github.com/zerotype19/gekko3/internal/model"
)

// Lock latches the system into LOCKED, rejecting every subsequent
// proposal until Unlock is called (spec §4.H admin endpoints).
func (g *Gate) Lock(reason string) model.LockState {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setLockLocked(reason)
	return g.lock
}

// setLockLocked is the unexported core shared by Lock and the
// daily-loss auto-lock in Evaluate; callers must already hold mu.
func (g *Gate) setLockLocked(reason string) {
	g.lock = model.LockState{Status: model.StatusLocked, Reason: reason}
	if err := g.ledger.SetSystemStatus(g.lock); err != nil {
		log.Error().Err(err).Msg("failed to persist lock state")
	}
	log.Warn().Str("reason", reason).Msg("system locked")
}

// Unlock returns the system to NORMAL. Manual only; nothing auto-unlocks.
func (g *Gate) Unlock() model.LockState {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lock = model.LockState{Status: model.StatusNormal}
	if err := g.ledger.SetSystemStatus(g.lock); err != nil {
		log.Error().Err(err).Msg("failed to persist unlock")
	}
	log.Info().Msg("system unlocked")
	return g.lock
}

// LiquidateResult reports the outcome of canceling one pending order
// during a liquidation sweep.
type LiquidateResult struct {
	OrderID string `json:"order_id"`
	Symbol  string `json:"symbol"`
	Status  string `json:"status"` // "canceled" | "cancel_failed"
	Error   string `json:"error,omitempty"`
}

// Liquidate cancels every pending order and locks the system; per spec
// §4.H admin endpoints, "liquidate implies lock".
func (g *Gate) Liquidate(ctx context.Context) ([]LiquidateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pending, err := g.ledger.PendingOrders()
	if err != nil {
		return nil, err
	}

	results := make([]LiquidateResult, 0, len(pending))
	for _, o := range pending {
		cctx, cancel := context.WithTimeout(ctx, brokerWriteTimeout)
		err := g.broker.CancelOrder(cctx, o.ID)
		cancel()

		r := LiquidateResult{OrderID: o.ID, Symbol: string(o.Symbol)}
		if err != nil {
			r.Status, r.Error = "cancel_failed", err.Error()
			log.Error().Err(err).Str("order_id", o.ID).Msg("liquidate: cancel failed")
		} else {
			r.Status = "canceled"
			if updErr := g.ledger.UpdateOrderStatus(o.ID, "canceled", nil); updErr != nil {
				log.Error().Err(updErr).Str("order_id", o.ID).Msg("liquidate: failed to mark order canceled")
			}
		}
		results = append(results, r)
	}

	g.setLockLocked("liquidation")
	return results, nil
}

// UpdateCalendar replaces the restricted-date set wholesale.
func (g *Gate) UpdateCalendar(dates []string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.ledger.ReplaceRestrictedDates(dates); err != nil {
		return 0, err
	}
	g.restrictedDates = make(map[string]bool, len(dates))
	for _, d := range dates {
		g.restrictedDates[d] = true
	}
	return len(dates), nil
}

// Heartbeat records the Brain's liveness timestamp and, if present, its
// opaque state blob (regime, per-symbol market view, portfolio
// Greeks -- spec §3 Heartbeat State). Failures persisting the record
// are logged, never surfaced as an error the caller must handle, per
// spec §7 kind 6. An invalid signature is refused outright since an
// unauthenticated heartbeat could be used to mask a dead Brain.
func (g *Gate) Heartbeat(rawBody []byte, sigHeader string, state json.RawMessage, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.verifySignature(rawBody, sigHeader) {
		return false
	}

	g.heartbeat = model.HeartbeatState{LastHeartbeatAt: now, BrainState: state}
	if err := g.ledger.SetHeartbeat(g.heartbeat); err != nil {
		log.Error().Err(err).Msg("failed to persist heartbeat")
	}
	return true
}

// StatusView is the composite view spec §4.H's status admin endpoint
// returns: lock, equity, day P&L, positions snapshot, recent
// proposals, last heartbeat, and the Brain's state blob.
type StatusView struct {
	Lock             model.LockState             `json:"lock"`
	StartOfDayEquity float64                     `json:"start_of_day_equity"`
	CurrentEquity    float64                     `json:"current_equity"`
	DayPnL           float64                     `json:"day_pnl"`
	DayPnLPercent    float64                     `json:"day_pnl_percent"`
	Positions        map[model.Symbol][]string   `json:"positions"`
	RecentProposals  []ledger.ProposalRecord     `json:"recent_proposals"`
	LastHeartbeatAt  time.Time                   `json:"last_heartbeat_at"`
	BrainState       json.RawMessage             `json:"brain_state,omitempty"`
}

// Status is a read, but per spec §5 it still goes through the actor so
// it observes only committed state.
func (g *Gate) Status(ctx context.Context) (StatusView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	recent, err := g.ledger.RecentProposals(10)
	if err != nil {
		return StatusView{}, err
	}

	positions := make(map[model.Symbol][]string, len(g.cachedPositions))
	for symbol, legs := range g.cachedPositions {
		for _, l := range legs {
			positions[symbol] = append(positions[symbol], l.OptionSymbol)
		}
	}

	var dayPnL, dayPnLPct float64
	if g.day.StartOfDayEquity > 0 {
		dayPnL = g.cachedEquity - g.day.StartOfDayEquity
		dayPnLPct = dayPnL / g.day.StartOfDayEquity * 100
	}

	return StatusView{
		Lock:             g.lock,
		StartOfDayEquity: g.day.StartOfDayEquity,
		CurrentEquity:    g.cachedEquity,
		DayPnL:           dayPnL,
		DayPnLPercent:    dayPnLPct,
		Positions:        positions,
		RecentProposals:  recent,
		LastHeartbeatAt:  g.heartbeat.LastHeartbeatAt,
		BrainState:       g.heartbeat.BrainState,
	}, nil
}
