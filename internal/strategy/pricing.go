package strategy

import (
	"math"

	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/model"
)

// NetMidPrice sums each leg's mid price, sold legs positive and bought
// legs negative, then rounds to the cent per spec §4.E pricing. The
// result is a net credit (positive) for credit strategies and a net
// debit (positive, after sign flip by the caller) for debit strategies.
func NetMidPrice(legs []model.Leg, quotes map[string]broker.Quote) (float64, bool) {
	total := 0.0
	for _, leg := range legs {
		q, ok := quotes[leg.OptionSymbol]
		if !ok {
			return 0, false
		}
		mid := q.Mid() * float64(leg.Quantity)
		switch leg.Side {
		case model.LegSell:
			total += mid
		case model.LegBuy:
			total -= mid
		default:
			return 0, false
		}
	}
	return roundCent(total), true
}

// EntryPrice normalizes NetMidPrice's signed total into the
// entry_price convention spec §4.E and §4.H expect: credit strategies
// report the net credit received (positive means income), debit
// strategies report the net debit paid (positive means cost).
func EntryPrice(strategyName model.Strategy, netSigned float64) float64 {
	if model.DebitStrategies[strategyName] {
		return roundCent(-netSigned)
	}
	return roundCent(netSigned)
}

func roundCent(v float64) float64 {
	return math.Round(v*100) / 100
}
