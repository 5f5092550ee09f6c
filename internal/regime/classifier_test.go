package regime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zerotype19/gekko3/internal/model"
)

func TestClassify(t *testing.T) {
	today := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		in   Inputs
		want model.Regime
	}{
		{"missing vix", Inputs{VIXPresent: false, SPYADXPresent: true, Today: today}, model.RegimeInsufficientData},
		{"missing adx", Inputs{VIXPresent: true, SPYADXPresent: false, Today: today}, model.RegimeInsufficientData},
		{"restricted date", Inputs{VIX: 15, VIXPresent: true, SPYADX: 10, SPYADXPresent: true, Today: today,
			RestrictedDates: map[string]bool{"2026-03-05": true}}, model.RegimeEventRisk},
		{"vix >= 30", Inputs{VIX: 30, VIXPresent: true, SPYADX: 10, SPYADXPresent: true, Today: today}, model.RegimeEventRisk},
		{"high vol expansion", Inputs{VIX: 22, VIXPresent: true, SPYADX: 25, SPYADXPresent: true, Today: today}, model.RegimeHighVolExpansion},
		{"trending", Inputs{VIX: 18, VIXPresent: true, SPYADX: 20, SPYADXPresent: true, Today: today}, model.RegimeTrending},
		{"low vol chop", Inputs{VIX: 15, VIXPresent: true, SPYADX: 10, SPYADXPresent: true, Today: today}, model.RegimeLowVolChop},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, Classify(c.in))
		})
	}
}
