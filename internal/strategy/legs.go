package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/model"
	"github.com/zerotype19/gekko3/internal/optionsymbol"
)

// SelectExpiration picks the listed expiration whose DTE is closest to
// dteTarget, never picking one that has already passed. Returns
// ok=false if the chain has no future expirations at all.
func SelectExpiration(expirations []time.Time, now time.Time, dteTarget int) (time.Time, bool) {
	var best time.Time
	bestDiff := math.MaxInt32
	found := false
	for _, exp := range expirations {
		if exp.Before(now) {
			continue
		}
		dte := int(exp.Sub(now).Hours() / 24)
		diff := dte - dteTarget
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			bestDiff = diff
			best = exp
			found = true
		}
	}
	return best, found
}

// BuildLegs resolves delta-targeted strikes for an Intent's shape and
// constructs the OCC-encoded, quantity-sized leg set (spec §4.E "Leg
// construction"). qty is the per-spread contract count from SizeQuantity.
func BuildLegs(ctx context.Context, client broker.Client, symbol model.Symbol, expiration time.Time, intent Intent, qty int) ([]model.Leg, error) {
	switch intent.Shape {
	case ShapeCreditSpread:
		return buildCreditSpread(ctx, client, symbol, expiration, intent, qty)
	case ShapeIronCondor:
		return buildIronCondor(ctx, client, symbol, expiration, intent, qty)
	case ShapeIronButterfly:
		return buildIronButterfly(ctx, client, symbol, expiration, intent, qty)
	case ShapeRatioSpread:
		return buildRatioSpread(ctx, client, symbol, expiration, intent, qty)
	default:
		return nil, fmt.Errorf("strategy: unknown shape %q", intent.Shape)
	}
}

// ScaleLegs multiplies every leg's quantity by factor, used once the
// final contract count is known (legs are first built at factor=1 to
// price a single spread, then rescaled after SizeQuantity runs).
func ScaleLegs(legs []model.Leg, factor int) []model.Leg {
	out := make([]model.Leg, len(legs))
	for i, l := range legs {
		l.Quantity *= factor
		out[i] = l
	}
	return out
}

func leg(root string, expiration time.Time, optType model.OptionType, strike float64, side model.LegSide, qty int) (model.Leg, error) {
	sym, err := optionsymbol.Encode(root, expiration, optType, strike)
	if err != nil {
		return model.Leg{}, err
	}
	return model.Leg{
		OptionSymbol: sym,
		Underlying:   model.Symbol(root),
		Expiration:   expiration,
		Strike:       strike,
		Type:         optType,
		Quantity:     qty,
		Side:         side,
	}, nil
}

// buildCreditSpread sells a delta-targeted leg and buys protection
// spreadWidth further out of the money: a put spread on a bullish call,
// a call spread on a bearish one.
func buildCreditSpread(ctx context.Context, client broker.Client, symbol model.Symbol, expiration time.Time, intent Intent, qty int) ([]model.Leg, error) {
	optType := model.OptionPut
	if intent.Bias == model.BiasBearish {
		optType = model.OptionCall
	}

	shortStrike, err := client.StrikeForDelta(ctx, symbol, expiration, optType, intent.ShortDelta)
	if err != nil {
		return nil, fmt.Errorf("strategy: strike for short leg: %w", err)
	}

	var longStrike float64
	if optType == model.OptionPut {
		longStrike = shortStrike - intent.SpreadWidth
	} else {
		longStrike = shortStrike + intent.SpreadWidth
	}

	root := string(symbol)
	shortLeg, err := leg(root, expiration, optType, shortStrike, model.LegSell, qty)
	if err != nil {
		return nil, err
	}
	longLeg, err := leg(root, expiration, optType, longStrike, model.LegBuy, qty)
	if err != nil {
		return nil, err
	}
	return []model.Leg{shortLeg, longLeg}, nil
}

// buildIronCondor sells a put and a call at ShortDelta and buys wings
// WingWidth further out on each side.
func buildIronCondor(ctx context.Context, client broker.Client, symbol model.Symbol, expiration time.Time, intent Intent, qty int) ([]model.Leg, error) {
	shortPutStrike, err := client.StrikeForDelta(ctx, symbol, expiration, model.OptionPut, intent.ShortDelta)
	if err != nil {
		return nil, fmt.Errorf("strategy: strike for short put: %w", err)
	}
	shortCallStrike, err := client.StrikeForDelta(ctx, symbol, expiration, model.OptionCall, intent.ShortDelta)
	if err != nil {
		return nil, fmt.Errorf("strategy: strike for short call: %w", err)
	}

	root := string(symbol)
	legs := make([]model.Leg, 0, 4)
	add := func(optType model.OptionType, strike float64, side model.LegSide) error {
		l, err := leg(root, expiration, optType, strike, side, qty)
		if err != nil {
			return err
		}
		legs = append(legs, l)
		return nil
	}
	if err := add(model.OptionPut, shortPutStrike, model.LegSell); err != nil {
		return nil, err
	}
	if err := add(model.OptionPut, shortPutStrike-intent.WingWidth, model.LegBuy); err != nil {
		return nil, err
	}
	if err := add(model.OptionCall, shortCallStrike, model.LegSell); err != nil {
		return nil, err
	}
	if err := add(model.OptionCall, shortCallStrike+intent.WingWidth, model.LegBuy); err != nil {
		return nil, err
	}
	return legs, nil
}

// buildIronButterfly sells an at-the-money put and call at the same
// strike and buys wings WingWidth further out on each side.
func buildIronButterfly(ctx context.Context, client broker.Client, symbol model.Symbol, expiration time.Time, intent Intent, qty int) ([]model.Leg, error) {
	const atmDelta = 0.50
	atmStrike, err := client.StrikeForDelta(ctx, symbol, expiration, model.OptionPut, atmDelta)
	if err != nil {
		return nil, fmt.Errorf("strategy: strike for ATM put: %w", err)
	}

	root := string(symbol)
	legs := make([]model.Leg, 0, 4)
	add := func(optType model.OptionType, strike float64, side model.LegSide) error {
		l, err := leg(root, expiration, optType, strike, side, qty)
		if err != nil {
			return err
		}
		legs = append(legs, l)
		return nil
	}
	if err := add(model.OptionPut, atmStrike, model.LegSell); err != nil {
		return nil, err
	}
	if err := add(model.OptionPut, atmStrike-intent.WingWidth, model.LegBuy); err != nil {
		return nil, err
	}
	if err := add(model.OptionCall, atmStrike, model.LegSell); err != nil {
		return nil, err
	}
	if err := add(model.OptionCall, atmStrike+intent.WingWidth, model.LegBuy); err != nil {
		return nil, err
	}
	return legs, nil
}

// buildRatioSpread buys one near-the-money put and sells RatioShortQty
// further-out puts, spaced SpreadWidth apart, as a tail hedge.
func buildRatioSpread(ctx context.Context, client broker.Client, symbol model.Symbol, expiration time.Time, intent Intent, qty int) ([]model.Leg, error) {
	const longDelta = 0.40
	longStrike, err := client.StrikeForDelta(ctx, symbol, expiration, model.OptionPut, longDelta)
	if err != nil {
		return nil, fmt.Errorf("strategy: strike for long put: %w", err)
	}
	shortStrike := longStrike - intent.SpreadWidth

	root := string(symbol)
	longLeg, err := leg(root, expiration, model.OptionPut, longStrike, model.LegBuy, qty*intent.RatioLongQty)
	if err != nil {
		return nil, err
	}
	shortLeg, err := leg(root, expiration, model.OptionPut, shortStrike, model.LegSell, qty*intent.RatioShortQty)
	if err != nil {
		return nil, err
	}
	return []model.Leg{longLeg, shortLeg}, nil
}
