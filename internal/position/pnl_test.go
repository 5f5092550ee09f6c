package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/model"
)

func creditSpreadLegs() []model.Leg {
	exp := time.Date(2026, 4, 17, 0, 0, 0, 0, time.UTC)
	return []model.Leg{
		{OptionSymbol: "SPY_SHORT", Underlying: model.SymbolSPY, Expiration: exp, Strike: 428, Type: model.OptionPut, Quantity: 10, Side: model.LegSell},
		{OptionSymbol: "SPY_LONG", Underlying: model.SymbolSPY, Expiration: exp, Strike: 426, Type: model.OptionPut, Quantity: 10, Side: model.LegBuy},
	}
}

func TestCostToClose_SignedSum(t *testing.T) {
	legs := creditSpreadLegs()
	quotes := map[string]broker.Quote{
		"SPY_SHORT": {Bid: 0.90, Ask: 1.10},
		"SPY_LONG":  {Bid: 0.40, Ask: 0.60},
	}
	cost, ok := CostToClose(legs, quotes)
	require.True(t, ok)
	// buy to close the short leg costs 1.00*10, sell to close the long leg nets 0.50*10
	require.InDelta(t, 10.0-5.0, cost, 1e-9)
}

func TestCostToClose_MissingQuoteFails(t *testing.T) {
	legs := creditSpreadLegs()
	quotes := map[string]broker.Quote{"SPY_SHORT": {Bid: 0.90, Ask: 1.10}}
	_, ok := CostToClose(legs, quotes)
	require.False(t, ok)
}

func TestPnL_CreditStrategyFlattensNegativeCostToClose(t *testing.T) {
	pnl, pnlPct := PnL(model.StrategyCreditSpread, 5.0, -1.0)
	require.InDelta(t, 5.0, pnl, 1e-9)
	require.InDelta(t, 100.0, pnlPct, 1e-9)
}

func TestPnL_DebitStrategyHandlesNegativeCostToClose(t *testing.T) {
	pnl, pnlPct := PnL(model.StrategyRatioSpread, 3.0, -2.0)
	require.InDelta(t, 5.0, pnl, 1e-9)
	require.InDelta(t, 5.0/3.0*100, pnlPct, 1e-9)
}

func TestPnL_ZeroEntryPriceHasZeroPercent(t *testing.T) {
	_, pnlPct := PnL(model.StrategyCreditSpread, 0, 1.0)
	require.Equal(t, 0.0, pnlPct)
}
