package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zerotype19/gekko3/internal/model"
)

type fakeIndicators struct {
	rsi14, sma200, adx, price float64
	rsiOK, smaOK, adxOK, priceOK bool
}

func (f fakeIndicators) RSI(symbol model.Symbol, n int) (float64, bool)   { return f.rsi14, f.rsiOK }
func (f fakeIndicators) SMA(symbol model.Symbol, n int) (float64, bool)   { return f.sma200, f.smaOK }
func (f fakeIndicators) ADX(symbol model.Symbol, n int) (float64, bool)  { return f.adx, f.adxOK }
func (f fakeIndicators) Price(symbol model.Symbol) (float64, bool)       { return f.price, f.priceOK }

func midDayET() time.Time {
	loc, _ := time.LoadLocation("America/New_York")
	return time.Date(2026, 3, 2, 13, 0, 0, 0, loc)
}

func forcedCloseTimeET() time.Time {
	loc, _ := time.LoadLocation("America/New_York")
	return time.Date(2026, 3, 2, 15, 56, 0, 0, loc)
}

func TestEvaluateExit_ForcedEODOverridesEverything(t *testing.T) {
	p := &model.TrackedPosition{Symbol: model.SymbolSPY, SignalSource: "TREND_ENGINE", Bias: model.BiasBullish}
	d := EvaluateExit(p, 5, 5, fakeIndicators{}, forcedCloseTimeET())
	require.True(t, d.ShouldClose)
	require.Equal(t, "forced_eod_close", d.Reason)
}

func TestEvaluateExit_ScalperRSIExit(t *testing.T) {
	p := &model.TrackedPosition{Symbol: model.SymbolSPY, SignalSource: "SCALPER", Bias: model.BiasBullish}
	ind := fakeIndicators{rsi14: 65, rsiOK: true}
	d := EvaluateExit(p, 10, 10, ind, midDayET())
	require.True(t, d.ShouldClose)
	require.Equal(t, "scalper_rsi_exit", d.Reason)
}

func TestEvaluateExit_ScalperStopLoss(t *testing.T) {
	p := &model.TrackedPosition{Symbol: model.SymbolSPY, SignalSource: "SCALPER", Bias: model.BiasBullish}
	d := EvaluateExit(p, -25, -10, fakeIndicators{}, midDayET())
	require.True(t, d.ShouldClose)
	require.Equal(t, "scalper_stop_loss", d.Reason)
}

func TestEvaluateExit_ScalperHoldsOtherwise(t *testing.T) {
	p := &model.TrackedPosition{Symbol: model.SymbolSPY, SignalSource: "SCALPER", Bias: model.BiasBullish}
	ind := fakeIndicators{rsi14: 50, rsiOK: true}
	d := EvaluateExit(p, -5, -5, ind, midDayET())
	require.False(t, d.ShouldClose)
}

func TestEvaluateExit_DirectionalTrailingStop(t *testing.T) {
	p := &model.TrackedPosition{Symbol: model.SymbolSPY, SignalSource: "TREND_ENGINE", Bias: model.BiasBullish}
	d := EvaluateExit(p, 35, 45, fakeIndicators{}, midDayET())
	require.True(t, d.ShouldClose)
	require.Equal(t, "trailing_stop", d.Reason)
}

func TestEvaluateExit_DirectionalTrendBreak(t *testing.T) {
	p := &model.TrackedPosition{Symbol: model.SymbolSPY, SignalSource: "ORB", Bias: model.BiasBullish}
	ind := fakeIndicators{price: 420, priceOK: true, sma200: 425, smaOK: true}
	d := EvaluateExit(p, 5, 5, ind, midDayET())
	require.True(t, d.ShouldClose)
	require.Equal(t, "trend_break", d.Reason)
}

func TestEvaluateExit_DirectionalProfitTarget(t *testing.T) {
	p := &model.TrackedPosition{Symbol: model.SymbolSPY, SignalSource: "WEEKEND_WARRIOR", Bias: model.BiasBearish}
	d := EvaluateExit(p, 85, 85, fakeIndicators{}, midDayET())
	require.True(t, d.ShouldClose)
	require.Equal(t, "profit_target", d.Reason)
}

func TestEvaluateExit_DirectionalMaxLoss(t *testing.T) {
	p := &model.TrackedPosition{Symbol: model.SymbolSPY, SignalSource: "ORB", Bias: model.BiasBullish}
	d := EvaluateExit(p, -110, 0, fakeIndicators{}, midDayET())
	require.True(t, d.ShouldClose)
	require.Equal(t, "max_loss", d.Reason)
}

func TestEvaluateExit_NeutralADXBreakout(t *testing.T) {
	p := &model.TrackedPosition{Symbol: model.SymbolSPY, SignalSource: "RANGE_FARMER"}
	ind := fakeIndicators{adx: 35, adxOK: true}
	d := EvaluateExit(p, 5, 5, ind, midDayET())
	require.True(t, d.ShouldClose)
	require.Equal(t, "adx_breakout", d.Reason)
}

func TestEvaluateExit_NeutralProfitTarget(t *testing.T) {
	p := &model.TrackedPosition{Symbol: model.SymbolSPY, SignalSource: "IRON_BUTTERFLY"}
	d := EvaluateExit(p, 55, 55, fakeIndicators{}, midDayET())
	require.True(t, d.ShouldClose)
	require.Equal(t, "profit_target", d.Reason)
}

func TestEvaluateExit_NeutralHoldsOtherwise(t *testing.T) {
	p := &model.TrackedPosition{Symbol: model.SymbolSPY, SignalSource: "RANGE_FARMER"}
	ind := fakeIndicators{adx: 15, adxOK: true}
	d := EvaluateExit(p, 10, 10, ind, midDayET())
	require.False(t, d.ShouldClose)
}
