package position

import (
	"context"
	"time"

	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/metrics"
	"github.com/zerotype19/gekko3/internal/model"
)

const (
	chaseDriftCents   = 0.10
	chaseTimeout      = 120 * time.Second
	chaseCooldown     = 5 * time.Second
	chaseAggressCents = 0.05
)

// ChaseOrder re-prices a still-pending open order that has drifted from
// the live mid or sat past the pending timeout, per spec §4.F step 4:
// cancel the stale order and resubmit a fresh multi-leg order at the
// current mid plus a nickel, then restart the cooldown.
func ChaseOrder(ctx context.Context, b broker.Client, p *model.TrackedPosition, currentMid float64, now time.Time) (bool, error) {
	if now.Before(p.RetryBackoffUntil) {
		return false, nil
	}

	report, err := b.GetOrderStatus(ctx, p.OpenOrderID)
	if err != nil {
		return false, err
	}
	if report.Status != broker.OrderPending {
		return false, nil
	}

	drifted := absFloat(currentMid-p.SubmittedMid) >= chaseDriftCents
	timedOut := now.Sub(p.SubmittedAt) >= chaseTimeout
	if !drifted && !timedOut {
		return false, nil
	}

	reason := "drift"
	if timedOut {
		reason = "timeout"
	}

	if err := b.CancelOrder(ctx, p.OpenOrderID); err != nil {
		return false, err
	}

	newLimit := chaseLimit(p, currentMid)
	req := multiLegRequestFor(p, newLimit)
	newReport, err := b.PlaceMultiLegOrder(ctx, req)
	if err != nil {
		return false, err
	}

	p.OpenOrderID = newReport.OrderID
	p.SubmittedLimit = newLimit
	p.SubmittedMid = currentMid
	p.LastAttemptAt = now
	p.RetryBackoffUntil = now.Add(chaseCooldown)

	metrics.OrderChaseAttempts.WithLabelValues(string(p.Symbol), reason).Inc()
	return true, nil
}

// chaseLimit resubmits at the new mid plus the aggressiveness buffer.
func chaseLimit(p *model.TrackedPosition, currentMid float64) float64 {
	return roundCent(currentMid + chaseAggressCents)
}

func multiLegRequestFor(p *model.TrackedPosition, limit float64) broker.MultiLegOrderRequest {
	orderType := "credit"
	if model.DebitStrategies[p.Strategy] {
		orderType = "debit"
	}
	legs := make([]broker.MultiLegOrderLeg, 0, len(p.Legs))
	for _, l := range p.Legs {
		side, err := model.ToBrokerSide(l.Side, model.ProposalOpen)
		if err != nil {
			continue
		}
		legs = append(legs, broker.MultiLegOrderLeg{OptionSymbol: l.OptionSymbol, Side: side, Quantity: l.Quantity})
	}
	return broker.MultiLegOrderRequest{Symbol: p.Symbol, OrderType: orderType, Price: limit, Legs: legs}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func roundCent(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
