package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSizeQuantity_ClampsToRange(t *testing.T) {
	// risk_amount = 100000*0.02 = 2000; max_loss_per_contract = 50 -> raw 40, clamp to 20.
	qty, ok := SizeQuantity(100000, 50)
	require.True(t, ok)
	require.Equal(t, 20, qty)
}

func TestSizeQuantity_FloorsAtOneWhenAffordable(t *testing.T) {
	// risk_amount = 1000*0.02 = 20; max_loss_per_contract = 15 -> raw 1.
	qty, ok := SizeQuantity(1000, 15)
	require.True(t, ok)
	require.Equal(t, 1, qty)
}

func TestSizeQuantity_RejectsWhenEvenOneContractExceedsEquityCap(t *testing.T) {
	// 10% of equity is 100; a single contract costing 500 can't be afforded.
	_, ok := SizeQuantity(1000, 500)
	require.False(t, ok)
}

func TestSizeQuantity_BoundsByTenPercentEquity(t *testing.T) {
	// risk_amount = 10000*0.02 = 200; max_loss = 10 -> raw 20 (already clamp ceiling).
	// 10% equity cap = 1000; 20*10=200 <= 1000, so no further reduction needed.
	qty, ok := SizeQuantity(10000, 10)
	require.True(t, ok)
	require.Equal(t, 20, qty)
}

func TestMaxLossPerContract_CreditSpread(t *testing.T) {
	// max_loss_per_contract = spread_width * 100, independent of net credit.
	loss := MaxLossPerContract(ShapeCreditSpread, 0.80, 2, 0, 0, 0)
	require.InDelta(t, 200.0, loss, 0.001)
}

func TestSizeQuantity_S1Scenario(t *testing.T) {
	// equity $100k, width 2 -> max_loss_per_contract = 200, risk_amount = 2000, qty = floor(2000/200) = 10.
	loss := MaxLossPerContract(ShapeCreditSpread, 0.80, 2, 0, 0, 0)
	qty, ok := SizeQuantity(100000, loss)
	require.True(t, ok)
	require.Equal(t, 10, qty)
}
