// Package regime implements the deterministic market-regime classifier
// (spec §4.B). Structurally it is the same "read several typed signals,
// switch into one of N named states" shape the teacher's StrategyEngine
// uses to pick an algo type, specialized to VIX/ADX/restricted-date inputs.
package regime

import (
	"time"

	"github.com/zerotype19/gekko3/internal/model"
)

// Inputs bundles the signals the classifier needs. VIXPresent/ADXPresent
// being false forces INSUFFICIENT_DATA regardless of the numeric fields.
type Inputs struct {
	VIX             float64
	VIXPresent      bool
	SPYADX          float64
	SPYADXPresent   bool
	Today           time.Time
	RestrictedDates map[string]bool // YYYY-MM-DD keys
}

const dateLayout = "2006-01-02"

// Classify returns the current Regime per the fixed decision table in
// spec §4.B. Order matters: EVENT_RISK is checked first.
func Classify(in Inputs) model.Regime {
	if !in.VIXPresent || !in.SPYADXPresent {
		return model.RegimeInsufficientData
	}

	dateKey := in.Today.Format(dateLayout)
	if in.RestrictedDates[dateKey] || in.VIX >= 30 {
		return model.RegimeEventRisk
	}
	if in.VIX >= 22 && in.SPYADX >= 25 {
		return model.RegimeHighVolExpansion
	}
	if in.SPYADX >= 20 && in.VIX < 22 {
		return model.RegimeTrending
	}
	return model.RegimeLowVolChop
}
