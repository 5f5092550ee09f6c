package position

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/gateclient"
	"github.com/zerotype19/gekko3/internal/model"
)

type fakeManagerBroker struct {
	broker.Client
	quotes    map[string]broker.Quote
	positions map[model.Symbol][]broker.BrokerLegPosition
}

func (f *fakeManagerBroker) OptionQuotes(ctx context.Context, symbols []string) (map[string]broker.Quote, error) {
	return f.quotes, nil
}

func (f *fakeManagerBroker) GetPositions(ctx context.Context) (map[model.Symbol][]broker.BrokerLegPosition, error) {
	return f.positions, nil
}

func (f *fakeManagerBroker) GetOrderStatus(ctx context.Context, orderID string) (broker.OrderReport, error) {
	return broker.OrderReport{Status: broker.OrderFilled}, nil
}

type fakeGate struct {
	lastProposal model.Proposal
	outcome      gateclient.ProposalOutcome
}

func (f *fakeGate) SubmitProposal(ctx context.Context, p model.Proposal) (gateclient.ProposalOutcome, error) {
	f.lastProposal = p
	return f.outcome, nil
}

func TestManager_Tick_ClosesPositionOnMaxLoss(t *testing.T) {
	s := NewStore("")
	s.Put(&model.TrackedPosition{
		TradeID:      "t1",
		Symbol:       model.SymbolSPY,
		Strategy:     model.StrategyCreditSpread,
		SignalSource: "ORB",
		Bias:         model.BiasBullish,
		Status:       model.PositionOpen,
		EntryPrice:   2.0,
		Legs: []model.Leg{
			{OptionSymbol: "SPY_SHORT", Quantity: 10, Side: model.LegSell},
			{OptionSymbol: "SPY_LONG", Quantity: 10, Side: model.LegBuy},
		},
	})
	b := &fakeManagerBroker{positions: map[model.Symbol][]broker.BrokerLegPosition{
		model.SymbolSPY: {{OptionSymbol: "SPY_SHORT", Quantity: 10, Side: model.LegSell}},
	}, quotes: map[string]broker.Quote{
		"SPY_SHORT": {Bid: 4.0, Ask: 4.2},
		"SPY_LONG":  {Bid: 0.1, Ask: 0.2},
	}}
	gate := &fakeGate{outcome: gateclient.ProposalOutcome{Status: "APPROVED", OrderID: "close-1"}}
	mgr := NewManager(s, b, gate, fakeIndicators{})

	mgr.tick(context.Background(), time.Now())

	require.Equal(t, model.ProposalClose, gate.lastProposal.Side)
	p, ok := s.Get("t1")
	require.True(t, ok)
	require.Equal(t, model.PositionClosing, p.Status)
	require.Equal(t, "close-1", p.CloseOrderID)
}

func TestManager_Tick_HoldsHealthyPosition(t *testing.T) {
	s := NewStore("")
	s.Put(&model.TrackedPosition{
		TradeID:      "t2",
		Symbol:       model.SymbolSPY,
		Strategy:     model.StrategyCreditSpread,
		SignalSource: "ORB",
		Bias:         model.BiasBullish,
		Status:       model.PositionOpen,
		EntryPrice:   20.0,
		Legs: []model.Leg{
			{OptionSymbol: "SPY_SHORT", Quantity: 10, Side: model.LegSell},
			{OptionSymbol: "SPY_LONG", Quantity: 10, Side: model.LegBuy},
		},
	})
	b := &fakeManagerBroker{positions: map[model.Symbol][]broker.BrokerLegPosition{
		model.SymbolSPY: {{OptionSymbol: "SPY_SHORT", Quantity: 10, Side: model.LegSell}},
	}, quotes: map[string]broker.Quote{
		"SPY_SHORT": {Bid: 1.0, Ask: 1.2},
		"SPY_LONG":  {Bid: 0.4, Ask: 0.6},
	}}
	gate := &fakeGate{}
	ind := fakeIndicators{price: 430, priceOK: true, sma200: 425, smaOK: true}
	mgr := NewManager(s, b, gate, ind)

	mgr.tick(context.Background(), midDayET())

	p, ok := s.Get("t2")
	require.True(t, ok)
	require.Equal(t, model.PositionOpen, p.Status)
	require.Empty(t, gate.lastProposal.ID)
}
