package position

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/model"
)

type fakeReconcileBroker struct {
	broker.Client
	positions map[model.Symbol][]broker.BrokerLegPosition
}

func (f *fakeReconcileBroker) GetPositions(ctx context.Context) (map[model.Symbol][]broker.BrokerLegPosition, error) {
	return f.positions, nil
}

func TestReconcile_RemovesGhostPosition(t *testing.T) {
	s := NewStore("")
	s.Put(&model.TrackedPosition{
		TradeID: "ghost",
		Symbol:  model.SymbolSPY,
		Status:  model.PositionOpen,
		Legs:    []model.Leg{{OptionSymbol: "SPY_SHORT"}, {OptionSymbol: "SPY_LONG"}},
	})
	b := &fakeReconcileBroker{positions: map[model.Symbol][]broker.BrokerLegPosition{}}

	err := s.Reconcile(context.Background(), b)
	require.NoError(t, err)
	_, ok := s.Get("ghost")
	require.False(t, ok)
}

func TestReconcile_PromotesOpeningToOpenWhenBrokerConfirms(t *testing.T) {
	s := NewStore("")
	s.Put(&model.TrackedPosition{
		TradeID: "t1",
		Symbol:  model.SymbolSPY,
		Status:  model.PositionOpening,
		Legs:    []model.Leg{{OptionSymbol: "SPY_SHORT"}, {OptionSymbol: "SPY_LONG"}},
	})
	b := &fakeReconcileBroker{positions: map[model.Symbol][]broker.BrokerLegPosition{
		model.SymbolSPY: {{OptionSymbol: "SPY_SHORT", Quantity: 10, Side: model.LegSell}},
	}}

	err := s.Reconcile(context.Background(), b)
	require.NoError(t, err)
	p, ok := s.Get("t1")
	require.True(t, ok)
	require.Equal(t, model.PositionOpen, p.Status)
}

func TestReconcile_LeavesOpeningAloneWhenBrokerSilent(t *testing.T) {
	s := NewStore("")
	s.Put(&model.TrackedPosition{
		TradeID: "t2",
		Symbol:  model.SymbolQQQ,
		Status:  model.PositionOpening,
		Legs:    []model.Leg{{OptionSymbol: "QQQ_SHORT"}},
	})
	b := &fakeReconcileBroker{positions: map[model.Symbol][]broker.BrokerLegPosition{}}

	err := s.Reconcile(context.Background(), b)
	require.NoError(t, err)
	p, ok := s.Get("t2")
	require.True(t, ok)
	require.Equal(t, model.PositionOpening, p.Status)
}

func TestReconcile_LeavesConfirmedOpenPositionAlone(t *testing.T) {
	s := NewStore("")
	s.Put(&model.TrackedPosition{
		TradeID: "t3",
		Symbol:  model.SymbolIWM,
		Status:  model.PositionOpen,
		Legs:    []model.Leg{{OptionSymbol: "IWM_SHORT"}},
	})
	b := &fakeReconcileBroker{positions: map[model.Symbol][]broker.BrokerLegPosition{
		model.SymbolIWM: {{OptionSymbol: "IWM_SHORT"}},
	}}

	err := s.Reconcile(context.Background(), b)
	require.NoError(t, err)
	p, ok := s.Get("t3")
	require.True(t, ok)
	require.Equal(t, model.PositionOpen, p.Status)
}
