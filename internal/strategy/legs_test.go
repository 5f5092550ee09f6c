package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/model"
)

// fakeDeltaBroker returns a fixed strike for every delta request,
// enough to exercise leg construction without a real broker.Client.
type fakeDeltaBroker struct {
	broker.Client
	putStrike, callStrike float64
}

func (f *fakeDeltaBroker) StrikeForDelta(ctx context.Context, symbol model.Symbol, expiration time.Time, optType model.OptionType, targetDelta float64) (float64, error) {
	if optType == model.OptionPut {
		return f.putStrike, nil
	}
	return f.callStrike, nil
}

func TestSelectExpiration_PicksClosestDTE(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	expirations := []time.Time{
		now.AddDate(0, 0, 1),
		now.AddDate(0, 0, 7),
		now.AddDate(0, 0, 30),
	}
	exp, ok := SelectExpiration(expirations, now, 7)
	require.True(t, ok)
	require.Equal(t, expirations[1], exp)
}

func TestSelectExpiration_SkipsPastDates(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	expirations := []time.Time{now.AddDate(0, 0, -1)}
	_, ok := SelectExpiration(expirations, now, 7)
	require.False(t, ok)
}

func TestBuildLegs_CreditSpreadBullish(t *testing.T) {
	fb := &fakeDeltaBroker{putStrike: 440, callStrike: 460}
	intent := Intent{Shape: ShapeCreditSpread, Bias: model.BiasBullish, ShortDelta: 0.30, SpreadWidth: 5}
	legs, err := BuildLegs(context.Background(), fb, model.SymbolSPY, time.Now(), intent, 2)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	require.Equal(t, model.LegSell, legs[0].Side)
	require.Equal(t, 440.0, legs[0].Strike)
	require.Equal(t, model.LegBuy, legs[1].Side)
	require.Equal(t, 435.0, legs[1].Strike)
	require.Equal(t, 2, legs[0].Quantity)
}

func TestBuildLegs_RatioSpread(t *testing.T) {
	fb := &fakeDeltaBroker{putStrike: 440}
	intent := Intent{Shape: ShapeRatioSpread, SpreadWidth: 10, RatioShortQty: 2, RatioLongQty: 1}
	legs, err := BuildLegs(context.Background(), fb, model.SymbolSPY, time.Now(), intent, 3)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	require.Equal(t, 3, legs[0].Quantity) // long leg: 3 * RatioLongQty(1)
	require.Equal(t, 6, legs[1].Quantity) // short leg: 3 * RatioShortQty(2)
}

func TestScaleLegs(t *testing.T) {
	legs := []model.Leg{{Quantity: 1}, {Quantity: 2}}
	scaled := ScaleLegs(legs, 4)
	require.Equal(t, 4, scaled[0].Quantity)
	require.Equal(t, 8, scaled[1].Quantity)
	require.Equal(t, 1, legs[0].Quantity) // original untouched
}
