package position

import (
	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/model"
)

// CostToClose sums, over every leg, price*qty with sign + for SELL legs
// (buy to close) and - for BUY legs (sell to close). May be negative
// (closing for a credit), which is allowed (spec §4.F step 2).
func CostToClose(legs []model.Leg, quotes map[string]broker.Quote) (float64, bool) {
	total := 0.0
	for _, l := range legs {
		q, ok := quotes[l.OptionSymbol]
		if !ok {
			return 0, false
		}
		mid := q.Mid() * float64(l.Quantity)
		switch l.Side {
		case model.LegSell:
			total += mid
		case model.LegBuy:
			total -= mid
		default:
			return 0, false
		}
	}
	return total, true
}

// PnL computes dollar P&L and pnl_pct per spec §4.F step 3, branching on
// whether the strategy settles its entry price as a credit or a debit.
func PnL(strategyName model.Strategy, entryPrice, costToClose float64) (pnl, pnlPct float64) {
	if model.DebitStrategies[strategyName] {
		if costToClose >= 0 {
			pnl = entryPrice - costToClose
		} else {
			pnl = entryPrice + (-costToClose)
		}
	} else {
		closeCost := costToClose
		if closeCost < 0 {
			closeCost = 0
		}
		pnl = entryPrice - closeCost
	}
	if entryPrice != 0 {
		pnlPct = pnl / entryPrice * 100
	}
	return pnl, pnlPct
}
