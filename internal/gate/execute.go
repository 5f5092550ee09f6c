package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/ledger"
	"github.com/zerotype19/gekko3/internal/model"
)

const brokerWriteTimeout = 10 * time.Second

// execute builds and submits the one multi-leg order an approved
// proposal maps to (spec §4.H "Execution"), records it in the orders
// ledger, and maintains Position Metadata in lockstep with the
// broker's own order id -- the single authoritative key per spec §9.
func (g *Gate) execute(ctx context.Context, p model.Proposal, now time.Time) (string, error) {
	orderType := "credit"
	if p.Side == model.ProposalClose {
		orderType = "debit"
	}

	legs := make([]broker.MultiLegOrderLeg, 0, len(p.Legs))
	for _, l := range p.Legs {
		brokerSide, err := model.ToBrokerSide(l.Side, p.Side)
		if err != nil {
			return "", fmt.Errorf("gate: %w", err)
		}
		legs = append(legs, broker.MultiLegOrderLeg{
			OptionSymbol: l.OptionSymbol,
			Side:         brokerSide,
			Quantity:     l.Quantity,
		})
	}

	wctx, cancel := context.WithTimeout(ctx, brokerWriteTimeout)
	defer cancel()

	report, err := g.broker.PlaceMultiLegOrder(wctx, broker.MultiLegOrderRequest{
		Symbol:    p.Symbol,
		OrderType: orderType,
		Price:     p.Price,
		Legs:      legs,
	})
	if err != nil {
		_ = g.ledger.InsertOrder(ledger.OrderRecord{
			ID:         uuid.NewString(),
			ProposalID: p.ID,
			Symbol:     p.Symbol,
			Status:     "failed",
			Quantity:   p.Quantity,
		})
		return "", err
	}

	if err := g.ledger.InsertOrder(ledger.OrderRecord{
		ID:         report.OrderID,
		ProposalID: p.ID,
		Symbol:     p.Symbol,
		Status:     string(report.Status),
		Quantity:   p.Quantity,
	}); err != nil {
		log.Error().Err(err).Str("order_id", report.OrderID).Msg("failed to write order to ledger")
	}

	if p.Side == model.ProposalOpen {
		bias, _ := p.Context.Bias()
		meta := model.PositionMetadata{
			OrderID:          report.OrderID,
			Symbol:           p.Symbol,
			Bias:             bias,
			Strategy:         p.Strategy,
			CorrelationGroup: g.constitution.CorrelationGroups[p.Symbol],
			CreatedAt:        now,
		}
		if bias == "" {
			meta.Bias = model.BiasNeutral
		}
		if err := g.ledger.PutPositionMetadata(meta); err != nil {
			log.Error().Err(err).Str("order_id", report.OrderID).Msg("failed to store position metadata")
		}
	} else {
		found, ok, err := g.ledger.FindMostRecentOpenMetadata(p.Symbol, p.Strategy)
		if err != nil {
			log.Error().Err(err).Msg("failed to look up position metadata for close")
		} else if ok {
			if err := g.ledger.DeletePositionMetadata(found.OrderID); err != nil {
				log.Error().Err(err).Str("order_id", found.OrderID).Msg("failed to delete position metadata")
			}
		}
	}

	return report.OrderID, nil
}
