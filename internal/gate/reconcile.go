package gate

import (
	"context"
	"time"

	"github.com/zerotype19/gekko3/internal/apperr"
	"github.com/zerotype19/gekko3/internal/ledger"
	"github.com/zerotype19/gekko3/internal/model"
)

const brokerReadTimeout = 5 * time.Second

// reconcileAccount is spec §4.H step 10: synchronously fetch balances
// and broker positions, replace the cached snapshot with broker truth,
// and set the start-of-day equity marker if it is unset for today. A
// transient broker failure (spec §7 kind 3) logs a warning and leaves
// the cached snapshot in place rather than blocking the evaluation --
// "better to allow a correct-in-expectation trade than to block all
// trading on a transient broker outage" (spec §5).
func (g *Gate) reconcileAccount(ctx context.Context, now time.Time) {
	rctx, cancel := context.WithTimeout(ctx, brokerReadTimeout)
	defer cancel()

	account, err := g.broker.GetAccount(rctx)
	if err != nil {
		log.Warn().Err(apperr.Wrap(apperr.BrokerTransient, "account fetch failed", err)).Msg("reconciliation: using cached equity")
	} else {
		g.cachedEquity = account.Equity
		if err := g.ledger.RecordEquitySnapshot(account.Equity); err != nil {
			log.Error().Err(err).Msg("reconciliation: failed to record equity snapshot")
		}
	}

	positions, err := g.broker.GetPositions(rctx)
	if err != nil {
		log.Warn().Err(apperr.Wrap(apperr.BrokerTransient, "positions fetch failed", err)).Msg("reconciliation: using cached positions")
	} else {
		g.cachedPositions = positions
		snapshot := make(map[model.Symbol]int, len(positions))
		for symbol, legs := range positions {
			total := 0
			for _, l := range legs {
				total += l.Quantity
			}
			snapshot[symbol] = total
		}
		if err := g.ledger.ReplacePositions(snapshot); err != nil {
			log.Error().Err(err).Msg("reconciliation: failed to replace positions snapshot")
		}
	}

	today := tradingDate(now)
	if g.day.TradingDate != today {
		g.day = ledger.DayState{TradingDate: today, StartOfDayEquity: g.cachedEquity}
		if err := g.ledger.SetDayState(g.day); err != nil {
			log.Error().Err(err).Msg("reconciliation: failed to persist day state")
		}
	} else if g.day.StartOfDayEquity == 0 && g.cachedEquity > 0 {
		g.day.StartOfDayEquity = g.cachedEquity
		if err := g.ledger.SetDayState(g.day); err != nil {
			log.Error().Err(err).Msg("reconciliation: failed to persist day state")
		}
	}
}
