package strategy

import "math"

const (
	riskFraction   = 0.02 // risk_amount = equity * 0.02
	minQuantity    = 1
	maxQuantity    = 20
	maxEquityStake = 0.10 // a position may never reserve more than 10% of equity
)

// SizeQuantity implements spec §4.E position sizing: risk_amount =
// equity * 0.02, qty = floor(risk_amount / max_loss_per_contract),
// clamped to [1, 20] and bounded so contractsCost never exceeds 10% of
// equity. Returns ok=false if even one contract can't be afforded
// inside the 10% equity bound.
func SizeQuantity(equity, maxLossPerContract float64) (qty int, ok bool) {
	if equity <= 0 || maxLossPerContract <= 0 {
		return 0, false
	}

	riskAmount := equity * riskFraction
	raw := int(math.Floor(riskAmount / maxLossPerContract))
	if raw < minQuantity {
		raw = minQuantity
	}
	if raw > maxQuantity {
		raw = maxQuantity
	}

	equityCap := equity * maxEquityStake
	for raw > minQuantity && float64(raw)*maxLossPerContract > equityCap {
		raw--
	}
	if float64(raw)*maxLossPerContract > equityCap {
		return 0, false
	}
	return raw, true
}

// MaxLossPerContract returns the worst-case loss of a single contract of
// the given shape, used as SizeQuantity's denominator.
func MaxLossPerContract(shape Shape, netPrice float64, spreadWidth, wingWidth float64, ratioShortQty, ratioLongQty int) float64 {
	const multiplier = 100 // one option contract controls 100 shares
	switch shape {
	case ShapeCreditSpread:
		return spreadWidth * multiplier
	case ShapeIronCondor, ShapeIronButterfly:
		return wingWidth * multiplier
	case ShapeRatioSpread:
		// Net price is a debit paid; naked short legs beyond the long leg
		// carry theoretically unbounded risk, so loss is bounded by the
		// distance to zero on the short strikes times the uncovered
		// quantity, approximated here via spreadWidth as strike spacing.
		uncovered := ratioShortQty - ratioLongQty
		if uncovered < 0 {
			uncovered = 0
		}
		return netPrice*multiplier + float64(uncovered)*spreadWidth*multiplier
	default:
		return spreadWidth * multiplier
	}
}
