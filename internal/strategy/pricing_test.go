package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/model"
)

func TestNetMidPrice_CreditSpread(t *testing.T) {
	legs := []model.Leg{
		{OptionSymbol: "SHORT", Side: model.LegSell, Quantity: 1},
		{OptionSymbol: "LONG", Side: model.LegBuy, Quantity: 1},
	}
	quotes := map[string]broker.Quote{
		"SHORT": {Bid: 1.20, Ask: 1.30},
		"LONG":  {Bid: 0.40, Ask: 0.50},
	}
	net, ok := NetMidPrice(legs, quotes)
	require.True(t, ok)
	require.InDelta(t, 1.25-0.45, net, 0.001)
}

func TestNetMidPrice_MissingQuote(t *testing.T) {
	legs := []model.Leg{{OptionSymbol: "MISSING", Side: model.LegSell, Quantity: 1}}
	_, ok := NetMidPrice(legs, map[string]broker.Quote{})
	require.False(t, ok)
}

func TestEntryPrice_CreditVsDebit(t *testing.T) {
	require.Equal(t, 0.80, EntryPrice(model.StrategyCreditSpread, 0.80))
	require.Equal(t, 0.80, EntryPrice(model.StrategyRatioSpread, -0.80))
}
