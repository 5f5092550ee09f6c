package position

import (
	"context"
	"time"

	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/gateclient"
	"github.com/zerotype19/gekko3/internal/metrics"
	"github.com/zerotype19/gekko3/internal/model"
)

const (
	tickInterval      = 5 * time.Second
	quoteTimeout      = 5 * time.Second
	reconcileInterval = 10 * time.Minute
)

// CloseSubmitter is the narrow surface Manager needs to send a CLOSE
// proposal through the Gate; satisfied by *gateclient.Client.
type CloseSubmitter interface {
	SubmitProposal(ctx context.Context, p model.Proposal) (gateclient.ProposalOutcome, error)
}

// Manager runs the independent 5 s loop spec §4.F describes: quote
// fetch, P&L, exit evaluation, order chasing, and periodic broker
// reconciliation, against the positions held in Store.
type Manager struct {
	store         *Store
	broker        broker.Client
	gate          CloseSubmitter
	indicators    IndicatorReader
	lastReconcile time.Time
}

func NewManager(store *Store, b broker.Client, gate CloseSubmitter, indicators IndicatorReader) *Manager {
	return &Manager{store: store, broker: b, gate: gate, indicators: indicators}
}

// Run blocks on the 5 s tick until ctx is canceled. Per spec §5's
// cancellation contract, the in-flight cycle is always allowed to
// finish (the ctx check happens between ticks, not inside one) and the
// disk mirror is the last thing touched on each cycle via Store.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.tick(ctx, now)
		}
	}
}

func (m *Manager) tick(ctx context.Context, now time.Time) {
	quoteCtx, cancel := context.WithTimeout(ctx, quoteTimeout)
	defer cancel()

	for _, p := range m.store.All() {
		m.processPosition(quoteCtx, p, now)
	}

	if m.lastReconcile.IsZero() || now.Sub(m.lastReconcile) >= reconcileInterval {
		if err := m.store.Reconcile(ctx, m.broker); err != nil {
			log.Error().Err(err).Msg("reconcile failed")
		} else {
			m.lastReconcile = now
		}
	}
}

func (m *Manager) processPosition(ctx context.Context, p *model.TrackedPosition, now time.Time) {
	switch p.Status {
	case model.PositionOpening:
		m.chaseOpen(ctx, p, now)
		return
	case model.PositionClosing:
		m.chaseClose(ctx, p, now)
		return
	}

	optSymbols := make([]string, 0, len(p.Legs))
	for _, l := range p.Legs {
		optSymbols = append(optSymbols, l.OptionSymbol)
	}
	quotes, err := m.broker.OptionQuotes(ctx, optSymbols)
	if err != nil {
		log.Error().Err(err).Str("trade_id", p.TradeID).Msg("quote fetch failed")
		return
	}

	costToClose, ok := CostToClose(p.Legs, quotes)
	if !ok {
		return
	}
	pnl, pnlPct := PnL(p.Strategy, p.EntryPrice, costToClose)

	m.store.Mutate(p.TradeID, func(tp *model.TrackedPosition) {
		if pnlPct > tp.HighestPnLSeen {
			tp.HighestPnLSeen = pnlPct
		}
	})
	metrics.PositionPnLPercent.WithLabelValues(p.TradeID, string(p.Symbol)).Set(pnlPct)

	current, _ := m.store.Get(p.TradeID)
	if current == nil {
		return
	}

	decision := EvaluateExit(current, pnlPct, current.HighestPnLSeen, m.indicators, now)
	if decision.ShouldClose {
		m.submitClose(ctx, current, costToClose, pnl, decision.Reason, now)
		return
	}

	mid := 0.0
	for _, q := range quotes {
		mid += q.Mid()
	}
	if len(quotes) > 0 {
		mid /= float64(len(quotes))
	}
	if chased, err := ChaseOrder(ctx, m.broker, current, mid, now); err != nil {
		log.Error().Err(err).Str("trade_id", p.TradeID).Msg("chase failed")
	} else if chased {
		// ChaseOrder mutated the shared *TrackedPosition in place; Mutate
		// with a no-op fn re-persists the current state under the lock.
		m.store.Mutate(p.TradeID, func(tp *model.TrackedPosition) {})
	}
}

// chaseOpen runs the same drift/timeout chase logic as an already-open
// position, since an OPENING trade's resting limit can drift too.
func (m *Manager) chaseOpen(ctx context.Context, p *model.TrackedPosition, now time.Time) {
	optSymbols := make([]string, 0, len(p.Legs))
	for _, l := range p.Legs {
		optSymbols = append(optSymbols, l.OptionSymbol)
	}
	quotes, err := m.broker.OptionQuotes(ctx, optSymbols)
	if err != nil {
		return
	}
	mid := 0.0
	for _, q := range quotes {
		mid += q.Mid()
	}
	if len(quotes) > 0 {
		mid /= float64(len(quotes))
	}
	if chased, err := ChaseOrder(ctx, m.broker, p, mid, now); err != nil {
		log.Error().Err(err).Str("trade_id", p.TradeID).Msg("open chase failed")
	} else if chased {
		m.store.Mutate(p.TradeID, func(tp *model.TrackedPosition) {})
	}
}

func (m *Manager) chaseClose(ctx context.Context, p *model.TrackedPosition, now time.Time) {
	m.chaseOpen(ctx, p, now)
}

func (m *Manager) submitClose(ctx context.Context, p *model.TrackedPosition, costToClose, pnl float64, reason string, now time.Time) {
	proposalCtx := model.Context{
		"exit_reason": model.StringContext(reason),
		"pnl":         model.NumberContext(pnl),
	}
	prop := model.Proposal{
		ID:          p.TradeID + ":close",
		TimestampMs: now.UnixMilli(),
		Symbol:      p.Symbol,
		Strategy:    p.Strategy,
		Side:        model.ProposalClose,
		Quantity:    legQuantity(p.Legs),
		Price:       costToClose,
		Legs:        p.Legs,
		Context:     proposalCtx,
	}
	outcome, err := m.gate.SubmitProposal(ctx, prop)
	if err != nil {
		log.Error().Err(err).Str("trade_id", p.TradeID).Msg("close proposal failed")
		return
	}
	if outcome.Status != "APPROVED" {
		log.Warn().Str("trade_id", p.TradeID).Str("status", outcome.Status).Str("reason", outcome.Reason).Msg("close proposal rejected")
		return
	}
	m.store.Mutate(p.TradeID, func(tp *model.TrackedPosition) {
		tp.Status = model.PositionClosing
		tp.CloseOrderID = outcome.OrderID
		tp.SubmittedAt = now
		tp.LastAttemptAt = now
	})
}

func legQuantity(legs []model.Leg) int {
	max := 0
	for _, l := range legs {
		if l.Quantity > max {
			max = l.Quantity
		}
	}
	return max
}
