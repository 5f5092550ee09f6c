package strategy

import (
	"math"

	"github.com/zerotype19/gekko3/internal/model"
)

// Gate evaluates one strategy's full condition set against a snapshot
// and returns an Intent if every gate holds.
type Gate func(s Snapshot) (*Intent, bool)

// Gates is the fixed table of seven strategies from spec §4.E, in the
// order they are evaluated on every trade event.
var Gates = []Gate{
	ORBGate,
	RangeFarmerGate,
	ScalperGate,
	TrendEngineGate,
	IronButterflyGate,
	RatioHedgeGate,
	WeekendWarriorGate,
}

// ORBGate: not EVENT_RISK, 10:00-11:30 ET, break of opening range AND
// volume_velocity > 1.5.
func ORBGate(s Snapshot) (*Intent, bool) {
	if s.Regime == model.RegimeEventRisk {
		return nil, false
	}
	if !s.etBetween("10:00", "11:30") {
		return nil, false
	}
	if !s.OpenRangeOK || !s.PriceOK || !s.VolumeVelocityOK {
		return nil, false
	}
	if s.VolumeVelocity <= 1.5 {
		return nil, false
	}

	switch {
	case s.Price > s.OpenRangeHigh:
		return &Intent{StrategyName: model.StrategyCreditSpread, GateName: "ORB", Shape: ShapeCreditSpread, Bias: model.BiasBullish,
			DTETarget: 0, ShortDelta: 0.30, SpreadWidth: 2, SignalKey: "ORB:breakout_up"}, true
	case s.Price < s.OpenRangeLow:
		return &Intent{StrategyName: model.StrategyCreditSpread, GateName: "ORB", Shape: ShapeCreditSpread, Bias: model.BiasBearish,
			DTETarget: 0, ShortDelta: 0.30, SpreadWidth: 2, SignalKey: "ORB:breakout_down"}, true
	default:
		return nil, false
	}
}

// RangeFarmerGate: LOW_VOL_CHOP, 13:00-13:05 ET, ADX < 20 AND
// |price - POC| < 2.0.
func RangeFarmerGate(s Snapshot) (*Intent, bool) {
	if s.Regime != model.RegimeLowVolChop {
		return nil, false
	}
	if !s.etBetween("13:00", "13:05") {
		return nil, false
	}
	if !s.ADXOK || !s.ProfileOK || !s.PriceOK {
		return nil, false
	}
	if s.ADX >= 20 || math.Abs(s.Price-s.POC) >= 2.0 {
		return nil, false
	}
	return &Intent{StrategyName: model.StrategyIronCondor, GateName: "RANGE_FARMER", Shape: ShapeIronCondor, Bias: model.BiasNeutral,
		DTETarget: 7, ShortDelta: 0.20, WingWidth: 5, SignalKey: "RANGE_FARMER:chop"}, true
}

// ScalperGate: TRENDING or HIGH_VOL_EXPANSION, all day, RSI(2) < 5
// (bullish) or > 95 (bearish).
func ScalperGate(s Snapshot) (*Intent, bool) {
	if s.Regime != model.RegimeTrending && s.Regime != model.RegimeHighVolExpansion {
		return nil, false
	}
	if !s.RSI2OK {
		return nil, false
	}
	switch {
	case s.RSI2 < 5:
		return &Intent{StrategyName: model.StrategyCreditSpread, GateName: "SCALPER", Shape: ShapeCreditSpread, Bias: model.BiasBullish,
			DTETarget: 0, ShortDelta: 0.30, SpreadWidth: 2, SignalKey: "SCALPER:oversold"}, true
	case s.RSI2 > 95:
		return &Intent{StrategyName: model.StrategyCreditSpread, GateName: "SCALPER", Shape: ShapeCreditSpread, Bias: model.BiasBearish,
			DTETarget: 0, ShortDelta: 0.30, SpreadWidth: 2, SignalKey: "SCALPER:overbought"}, true
	default:
		return nil, false
	}
}

// TrendEngineGate: TRENDING, all day. Bullish: RSI(14) < 30 AND price >
// POC AND flow != NEUTRAL. Bearish: mirror (RSI(14) > 70 AND price < POC
// AND flow != NEUTRAL).
func TrendEngineGate(s Snapshot) (*Intent, bool) {
	if s.Regime != model.RegimeTrending {
		return nil, false
	}
	if !s.RSI14OK || !s.ProfileOK || !s.PriceOK {
		return nil, false
	}
	if s.FlowState == model.FlowNeutral || s.FlowState == model.FlowUnknown {
		return nil, false
	}
	switch {
	case s.RSI14 < 30 && s.Price > s.POC:
		return &Intent{StrategyName: model.StrategyCreditSpread, GateName: "TREND_ENGINE", Shape: ShapeCreditSpread, Bias: model.BiasBullish,
			DTETarget: 30, ShortDelta: 0.32, SpreadWidth: 5, SignalKey: "TREND_ENGINE:bullish"}, true
	case s.RSI14 > 70 && s.Price < s.POC:
		return &Intent{StrategyName: model.StrategyCreditSpread, GateName: "TREND_ENGINE", Shape: ShapeCreditSpread, Bias: model.BiasBearish,
			DTETarget: 30, ShortDelta: 0.32, SpreadWidth: 5, SignalKey: "TREND_ENGINE:bearish"}, true
	default:
		return nil, false
	}
}

// IronButterflyGate: LOW_VOL_CHOP, 12:00-13:00 ET, iv_rank > 50 AND
// |price - POC| < 2.0.
func IronButterflyGate(s Snapshot) (*Intent, bool) {
	if s.Regime != model.RegimeLowVolChop {
		return nil, false
	}
	if !s.etBetween("12:00", "13:00") {
		return nil, false
	}
	if !s.IVRankOK || !s.ProfileOK || !s.PriceOK {
		return nil, false
	}
	if s.IVRank <= 50 || math.Abs(s.Price-s.POC) >= 2.0 {
		return nil, false
	}
	return &Intent{StrategyName: model.StrategyIronButterfly, GateName: "IRON_BUTTERFLY", Shape: ShapeIronButterfly, Bias: model.BiasNeutral,
		DTETarget: 7, WingWidth: 5, SignalKey: "IRON_BUTTERFLY:chop"}, true
}

// RatioHedgeGate: any regime, checked on the :30 minute mark each hour,
// iv_rank < 20. Modeled as a tail hedge: a put ratio spread (buy 1 near
// put, sell 2 further puts) — bearish in shape, not in market view.
func RatioHedgeGate(s Snapshot) (*Intent, bool) {
	if s.Now.Minute() != 30 {
		return nil, false
	}
	if !s.IVRankOK || s.IVRank >= 20 {
		return nil, false
	}
	return &Intent{StrategyName: model.StrategyRatioSpread, GateName: "RATIO_HEDGE", Shape: ShapeRatioSpread, Bias: model.BiasBearish,
		DTETarget: 45, RatioShortQty: 2, RatioLongQty: 1, SpreadWidth: 10, SignalKey: "RATIO_HEDGE:low_iv"}, true
}

// WeekendWarriorGate: any regime, Friday, 15:55-16:00 ET, VIX < 25.
// Direction follows flow state (risk-on -> bullish put credit spread,
// risk-off -> bearish call credit spread); skipped on NEUTRAL/UNKNOWN
// flow since there is no directional edge to lean on (Open Question
// resolution, see DESIGN.md).
func WeekendWarriorGate(s Snapshot) (*Intent, bool) {
	_, weekday := s.etClock()
	if weekday != 5 { // time.Friday == 5
		return nil, false
	}
	if !s.etBetween("15:55", "16:00") {
		return nil, false
	}
	if !s.VIXOK || s.VIX >= 25 {
		return nil, false
	}
	switch s.FlowState {
	case model.FlowRiskOn:
		return &Intent{StrategyName: model.StrategyCreditSpread, GateName: "WEEKEND_WARRIOR", Shape: ShapeCreditSpread, Bias: model.BiasBullish,
			DTETarget: 2, ShortDelta: 0.25, SpreadWidth: 2, SignalKey: "WEEKEND_WARRIOR:risk_on"}, true
	case model.FlowRiskOff:
		return &Intent{StrategyName: model.StrategyCreditSpread, GateName: "WEEKEND_WARRIOR", Shape: ShapeCreditSpread, Bias: model.BiasBearish,
			DTETarget: 2, ShortDelta: 0.25, SpreadWidth: 2, SignalKey: "WEEKEND_WARRIOR:risk_off"}, true
	default:
		return nil, false
	}
}
