package position

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/model"
)

// fakeChaseBroker embeds broker.Client so only the methods ChaseOrder
// actually calls need overriding.
type fakeChaseBroker struct {
	broker.Client
	status         broker.OrderReport
	canceled       bool
	canceledID     string
	placed         broker.MultiLegOrderRequest
	placeCount     int
	newOrderID     string
}

func (f *fakeChaseBroker) GetOrderStatus(ctx context.Context, orderID string) (broker.OrderReport, error) {
	return f.status, nil
}

func (f *fakeChaseBroker) CancelOrder(ctx context.Context, orderID string) error {
	f.canceled = true
	f.canceledID = orderID
	return nil
}

func (f *fakeChaseBroker) PlaceMultiLegOrder(ctx context.Context, req broker.MultiLegOrderRequest) (broker.OrderReport, error) {
	f.placed = req
	f.placeCount++
	return broker.OrderReport{OrderID: f.newOrderID, Status: broker.OrderPending}, nil
}

func creditPosition() *model.TrackedPosition {
	return &model.TrackedPosition{
		TradeID:        "t1",
		Symbol:         model.SymbolSPY,
		Strategy:       model.StrategyCreditSpread,
		OpenOrderID:    "orig-order",
		SubmittedLimit: 0.55,
		SubmittedMid:   0.55,
		SubmittedAt:    time.Now().Add(-10 * time.Second),
		Legs: []model.Leg{
			{OptionSymbol: "SPY_SHORT", Quantity: 10, Side: model.LegSell},
			{OptionSymbol: "SPY_LONG", Quantity: 10, Side: model.LegBuy},
		},
	}
}

func TestChaseOrder_DriftTriggersResubmit(t *testing.T) {
	b := &fakeChaseBroker{status: broker.OrderReport{Status: broker.OrderPending}, newOrderID: "resubmitted"}
	p := creditPosition()
	now := p.SubmittedAt.Add(10 * time.Second)

	chased, err := ChaseOrder(context.Background(), b, p, 0.70, now)
	require.NoError(t, err)
	require.True(t, chased)
	require.True(t, b.canceled)
	require.Equal(t, "orig-order", b.canceledID)
	require.Equal(t, "resubmitted", p.OpenOrderID)
	// resubmit at the drifted mid plus the aggressiveness buffer
	require.InDelta(t, 0.75, p.SubmittedLimit, 1e-9)
}

func TestChaseOrder_NoDriftNoTimeoutHolds(t *testing.T) {
	b := &fakeChaseBroker{status: broker.OrderReport{Status: broker.OrderPending}}
	p := creditPosition()
	now := p.SubmittedAt.Add(5 * time.Second)

	chased, err := ChaseOrder(context.Background(), b, p, 0.56, now)
	require.NoError(t, err)
	require.False(t, chased)
	require.False(t, b.canceled)
}

func TestChaseOrder_TimeoutTriggersResubmitRegardlessOfDrift(t *testing.T) {
	b := &fakeChaseBroker{status: broker.OrderReport{Status: broker.OrderPending}, newOrderID: "resubmitted"}
	p := creditPosition()
	now := p.SubmittedAt.Add(130 * time.Second)

	chased, err := ChaseOrder(context.Background(), b, p, 0.55, now)
	require.NoError(t, err)
	require.True(t, chased)
}

func TestChaseOrder_CooldownBlocksImmediateReattempt(t *testing.T) {
	b := &fakeChaseBroker{status: broker.OrderReport{Status: broker.OrderPending}, newOrderID: "resubmitted"}
	p := creditPosition()
	now := p.SubmittedAt.Add(10 * time.Second)
	p.RetryBackoffUntil = now.Add(3 * time.Second)

	chased, err := ChaseOrder(context.Background(), b, p, 0.70, now)
	require.NoError(t, err)
	require.False(t, chased)
	require.False(t, b.canceled)
}

func TestChaseOrder_NonPendingOrderIsLeftAlone(t *testing.T) {
	b := &fakeChaseBroker{status: broker.OrderReport{Status: broker.OrderFilled}}
	p := creditPosition()
	now := p.SubmittedAt.Add(130 * time.Second)

	chased, err := ChaseOrder(context.Background(), b, p, 0.90, now)
	require.NoError(t, err)
	require.False(t, chased)
	require.False(t, b.canceled)
}
