// Package strategy is the Strategy Gates (spec §4.E): per-strategy
// windows, regime/IV/RSI guards, position sizing, pricing, and leg
// construction, emitting signed proposals to the Gate. Structurally
// grounded on the teacher's decision/localfunc.go "pure algorithmic
// decision, no LLM" dispatch — a switch over strategy name producing a
// Decision — generalized from crypto long/short sizing into option
// spread construction.
package strategy

import (
	"time"

	"github.com/zerotype19/gekko3/internal/model"
)

// Snapshot is everything a strategy gate needs to evaluate, pulled from
// the Indicator Store and regime classifier at the moment a bar closes.
type Snapshot struct {
	Symbol    model.Symbol
	Now       time.Time // wall clock, used for ET time-of-day checks
	Regime    model.Regime
	VIX       float64
	VIXOK     bool
	Price     float64
	PriceOK   bool
	SMA200    float64
	SMA200OK  bool
	RSI2      float64
	RSI2OK    bool
	RSI14     float64
	RSI14OK   bool
	ADX       float64
	ADXOK     bool
	POC       float64
	VAH       float64
	VAL       float64
	ProfileOK bool
	IVRank    float64
	IVRankOK  bool
	FlowState model.FlowState
	VolumeVelocity   float64
	VolumeVelocityOK bool
	OpenRangeHigh    float64
	OpenRangeLow     float64
	OpenRangeOK      bool
}

// etClock returns s.Now expressed as America/New_York HH:MM, plus the
// weekday in that zone.
func (s Snapshot) etClock() (hhmm string, weekday time.Weekday) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	t := s.Now.In(loc)
	return t.Format("15:04"), t.Weekday()
}

func (s Snapshot) etBetween(start, end string) bool {
	hhmm, _ := s.etClock()
	return hhmm >= start && hhmm <= end
}
