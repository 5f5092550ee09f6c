package position

import (
	"context"

	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/metrics"
	"github.com/zerotype19/gekko3/internal/model"
)

// Reconcile compares broker-reported positions against the store every
// 10 minutes (spec §4.F step 6): positions the broker no longer reports
// are dropped as ghosts, and an OPENING position whose option symbols
// now show up at the broker is promoted to OPEN. Leg quantities are not
// compared with or adjusted to the broker's.
func (s *Store) Reconcile(ctx context.Context, b broker.Client) error {
	brokerPositions, err := b.GetPositions(ctx)
	if err != nil {
		return err
	}

	brokerSymbols := map[string]bool{}
	for _, legs := range brokerPositions {
		for _, l := range legs {
			brokerSymbols[l.OptionSymbol] = true
		}
	}

	for _, p := range s.All() {
		if p.Status == model.PositionOpening {
			continue
		}
		if !anyLegSeen(p.Legs, brokerSymbols) {
			s.Remove(p.TradeID)
			metrics.ReconciliationDrift.WithLabelValues("ghost_removed").Inc()
		}
	}

	for _, p := range s.All() {
		if p.Status != model.PositionOpening {
			continue
		}
		if !anyLegSeen(p.Legs, brokerSymbols) {
			continue
		}
		promoted := p.Status
		s.Mutate(p.TradeID, func(tp *model.TrackedPosition) {
			tp.Status = model.PositionOpen
		})
		if promoted != model.PositionOpen {
			metrics.ReconciliationDrift.WithLabelValues("promoted_to_open").Inc()
		}
	}

	return nil
}

func anyLegSeen(legs []model.Leg, brokerSymbols map[string]bool) bool {
	for _, l := range legs {
		if brokerSymbols[l.OptionSymbol] {
			return true
		}
	}
	return false
}
