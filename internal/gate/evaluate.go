package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zerotype19/gekko3/internal/apperr"
	"github.com/zerotype19/gekko3/internal/ledger"
	"github.com/zerotype19/gekko3/internal/model"
)

// Evaluate runs the fifteen-step proposal evaluation order from spec
// §4.H: first failure wins, every outcome (approved or rejected) is
// appended to the proposals ledger before returning, and an approved
// OPEN/CLOSE proceeds to order execution. rawBody is the exact bytes
// the HTTP handler read off the wire, needed so signature verification
// operates on the wire representation rather than a re-marshaled copy.
func (g *Gate) Evaluate(ctx context.Context, p model.Proposal, rawBody []byte, sigHeader string, now time.Time) (Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	reject := func(reason string) Decision {
		g.recordProposal(p, now, StatusRejected, reason)
		return Decision{Status: StatusRejected, Reason: reason, ProposalID: p.ID}
	}

	// 1. signature present.
	if sigHeader == "" {
		return reject("missing signature header")
	}
	// 2. HMAC verification, constant-time.
	if !g.verifySignature(rawBody, sigHeader) {
		return reject("invalid signature")
	}
	// 3. system lock.
	if g.lock.Status == model.StatusLocked {
		return reject("System is locked")
	}
	// 4. staleness.
	ageMs := now.UnixMilli() - p.TimestampMs
	if ageMs > g.constitution.StaleProposalMs {
		return reject(fmt.Sprintf("proposal age %dms exceeds staleness threshold %dms", ageMs, g.constitution.StaleProposalMs))
	}
	// 5. universe / strategy allow-list (strategy only enforced on OPEN).
	if !g.constitution.AllowsSymbol(p.Symbol) {
		return reject(fmt.Sprintf("symbol %s is not in the allowed universe", p.Symbol))
	}
	if p.Side == model.ProposalOpen && !g.constitution.AllowsStrategy(p.Strategy) {
		return reject(fmt.Sprintf("strategy %s is not allowed to open", p.Strategy))
	}
	// 6. no market orders.
	if p.Price <= 0 {
		return reject("price must be a positive limit, market orders are not permitted")
	}
	// 7. leg structure (OPEN only).
	if p.Side == model.ProposalOpen {
		if reason := validateStructure(p.Strategy, p.Legs); reason != "" {
			return reject(reason)
		}
	}
	// 8. DTE bounds (OPEN only).
	if p.Side == model.ProposalOpen {
		if len(p.Legs) == 0 {
			return reject("OPEN proposal carries no legs")
		}
		d := dte(p.Legs[0].Expiration, now)
		if d < g.constitution.MinDTE || d > g.constitution.MaxDTE {
			return reject(fmt.Sprintf("DTE %d outside allowed range [%d,%d]", d, g.constitution.MinDTE, g.constitution.MaxDTE))
		}
	}
	// 9. calendar lock (OPEN only).
	if p.Side == model.ProposalOpen && g.restrictedDates[tradingDate(now)] {
		return reject(fmt.Sprintf("today (%s) is a restricted trading date", tradingDate(now)))
	}

	// 10. account reconciliation: synchronous, broker truth replaces the
	// cached positions snapshot. A transient failure (spec §7 kind 3)
	// logs a warning and continues on the cached snapshot rather than
	// blocking evaluation.
	g.reconcileAccount(ctx, now)

	// 11. daily loss circuit breaker.
	if g.day.StartOfDayEquity > 0 {
		start := decimal.NewFromFloat(g.day.StartOfDayEquity)
		current := decimal.NewFromFloat(g.cachedEquity)
		lossFraction := start.Sub(current).Div(start)
		limit := decimal.NewFromFloat(g.constitution.MaxDailyLossPercent)
		if lossFraction.GreaterThanOrEqual(limit) {
			pct := lossFraction.Mul(decimal.NewFromInt(100))
			reason := fmt.Sprintf("daily loss %s%% >= limit %.2f%%: system locked", pct.StringFixed(2), g.constitution.MaxDailyLossPercent*100)
			g.setLockLocked(reason)
			return reject(reason)
		}
	}

	if p.Side == model.ProposalOpen {
		allMeta, err := g.ledger.AllPositionMetadata()
		if err != nil {
			return Decision{}, apperr.Wrap(apperr.Internal, "failed to read position metadata", err)
		}

		// 12. position cap: distinct open symbols, plus the maxTotalPositions
		// hard ceiling the Open Question in spec §9 resolves as an
		// additional, logged-alongside check.
		distinctSymbols := map[model.Symbol]bool{}
		for _, m := range allMeta {
			distinctSymbols[m.Symbol] = true
		}
		log.Info().Int("distinct_symbols_open", len(distinctSymbols)).Int("max_open_positions", g.constitution.MaxOpenPositions).
			Int("total_positions", len(allMeta)).Int("max_total_positions", g.constitution.MaxTotalPositions).
			Msg("position cap check")
		if len(distinctSymbols) >= g.constitution.MaxOpenPositions {
			return reject(fmt.Sprintf("distinct open symbols %d >= max open positions %d", len(distinctSymbols), g.constitution.MaxOpenPositions))
		}
		if g.constitution.MaxTotalPositions > 0 && len(allMeta) >= g.constitution.MaxTotalPositions {
			return reject(fmt.Sprintf("total open positions %d >= max total positions %d", len(allMeta), g.constitution.MaxTotalPositions))
		}

		// 13. correlation guard (non-neutral bias only).
		bias, _ := p.Context.Bias()
		group := g.constitution.CorrelationGroups[p.Symbol]
		if bias != "" && bias != model.BiasNeutral && group != "" {
			matching := 0
			for _, m := range allMeta {
				if m.CorrelationGroup == group && m.Bias == bias {
					matching++
				}
			}
			if matching >= g.constitution.MaxCorrelatedPositions {
				return reject(fmt.Sprintf("%d %s positions already open in correlation group %s >= max %d", matching, bias, group, g.constitution.MaxCorrelatedPositions))
			}
		}

		// 14. per-symbol concentration.
		symbolCount := 0
		for _, m := range allMeta {
			if m.Symbol == p.Symbol {
				symbolCount++
			}
		}
		if symbolCount >= g.constitution.MaxConcentrationPerSymbol {
			return reject(fmt.Sprintf("%d positions already open in %s >= max concentration %d", symbolCount, p.Symbol, g.constitution.MaxConcentrationPerSymbol))
		}

		// 15. context gate: VIX present and <= 28; flow state known.
		vix, haveVIX := p.Context.VIX()
		if !haveVIX {
			return reject("context.vix is required to open")
		}
		if vix > 28 {
			return reject(fmt.Sprintf("VIX %.2f exceeds the 28 ceiling for opening new risk", vix))
		}
		flow, haveFlow := p.Context.FlowState()
		if !haveFlow || flow == model.FlowUnknown {
			return reject("context.flow_state is unknown")
		}
	}

	// Approved: record the ledger row before returning, per the
	// testable property that exactly one row exists before the HTTP
	// response is sent, then execute.
	g.recordProposal(p, now, StatusApproved, "")

	orderID, execErr := g.execute(ctx, p, now)
	if execErr != nil {
		log.Error().Err(execErr).Str("proposal_id", p.ID).Msg("approved proposal failed to execute")
		return Decision{Status: StatusApprovedExecutionFailed, Error: execErr.Error(), ProposalID: p.ID}, nil
	}

	return Decision{Status: StatusApproved, OrderID: orderID, ProposalID: p.ID}, nil
}

func (g *Gate) recordProposal(p model.Proposal, now time.Time, status, reason string) {
	contextJSON, err := ledger.EncodeContext(p.Context)
	if err != nil {
		contextJSON = "{}"
	}
	rec := ledger.ProposalRecord{
		ID:              p.ID,
		TimestampS:      now.Unix(),
		Symbol:          p.Symbol,
		Strategy:        p.Strategy,
		Side:            p.Side,
		Quantity:        p.Quantity,
		ContextJSON:     contextJSON,
		Status:          status,
		RejectionReason: reason,
	}
	if err := g.ledger.InsertProposal(rec); err != nil {
		log.Error().Err(err).Str("proposal_id", p.ID).Msg("failed to write proposal to ledger")
	}
}

// validateStructure enforces spec §4.H step 7's per-shape leg counts.
func validateStructure(strategyName model.Strategy, legs []model.Leg) string {
	n := len(legs)
	switch strategyName {
	case model.StrategyCreditSpread:
		if n != 2 {
			return fmt.Sprintf("CREDIT_SPREAD requires exactly 2 legs, got %d", n)
		}
	case model.StrategyIronCondor:
		if n != 4 {
			return fmt.Sprintf("IRON_CONDOR requires exactly 4 legs, got %d", n)
		}
	case model.StrategyIronButterfly:
		if n != 4 {
			return fmt.Sprintf("IRON_BUTTERFLY requires exactly 4 legs, got %d", n)
		}
	case model.StrategyRatioSpread:
		if n != 2 {
			return fmt.Sprintf("RATIO_SPREAD requires exactly 2 legs, got %d", n)
		}
		if legs[0].Quantity == legs[1].Quantity {
			return "RATIO_SPREAD requires unequal leg quantities"
		}
	}
	return ""
}

// dte returns days-to-expiration counted in whole calendar days in
// America/New_York, so a same-day (0DTE) expiration evaluates to 0.
func dte(expiration time.Time, now time.Time) int {
	loc := nyLocation()
	today := now.In(loc)
	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	expDate := time.Date(expiration.Year(), expiration.Month(), expiration.Day(), 0, 0, 0, 0, time.UTC)
	return int(expDate.Sub(todayDate).Hours() / 24)
}
