package strategy

import "github.com/zerotype19/gekko3/internal/model"

// Shape describes how many legs a strategy needs and how they relate,
// independent of strike selection (spec §4.E "Leg construction").
type Shape string

const (
	ShapeCreditSpread  Shape = "credit_spread"
	ShapeIronCondor    Shape = "iron_condor"
	ShapeIronButterfly Shape = "iron_butterfly"
	ShapeRatioSpread   Shape = "ratio_spread"
)

// Intent is what a strategy gate produces when its conditions hold: a
// directional call with enough structure for the engine to size, price,
// and build legs, but no strikes or quantities yet.
type Intent struct {
	StrategyName model.Strategy
	GateName     string // originating gate, e.g. "ORB", "SCALPER" -- selects exit rules
	Shape        Shape
	Bias         model.Bias
	DTETarget    int
	ShortDelta   float64 // credit spread / condor / butterfly short-leg delta target
	WingWidth    float64 // condor/butterfly wing width in strikes
	SpreadWidth  float64 // credit spread width in strikes
	RatioShortQty int
	RatioLongQty  int
	SignalKey    string // identity for the 300s replay guard, e.g. "ORB:breakout_up"
}
