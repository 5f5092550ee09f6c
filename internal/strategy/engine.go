package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/gateclient"
	"github.com/zerotype19/gekko3/internal/indicator"
	"github.com/zerotype19/gekko3/internal/logging"
	"github.com/zerotype19/gekko3/internal/metrics"
	"github.com/zerotype19/gekko3/internal/model"
	"github.com/zerotype19/gekko3/internal/poller"
	"github.com/zerotype19/gekko3/internal/regime"
)

var log = logging.For("brain.strategy")

// RSIPeriods lists every RSI window a strategy gate consults; the
// warm-up and Indicator Store use this to know what to seed.
var RSIPeriods = []int{2, 14}

const (
	symbolThrottle = 60 * time.Second
	signalReplay   = 300 * time.Second
	smaWindow      = 200
	adxPeriod      = 14
	openRangeBars  = 30 // 30 one-minute bars = opening 30 minutes
	volVelocityN   = 20
)

// Submitter is the narrow surface Engine needs from the Gate channel,
// satisfied by *gateclient.Client; kept as an interface so tests can
// substitute a fake without a real HTTP round trip.
type Submitter interface {
	SubmitProposal(ctx context.Context, p model.Proposal) (gateclient.ProposalOutcome, error)
}

// PositionTracker is the narrow surface Engine needs from the Position
// Manager to decide whether a strategy has room to open (spec §4.E
// preconditions reference open-position counts indirectly via the
// Gate, but the Brain also avoids re-signaling a strategy it is already
// carrying for the same symbol).
type PositionTracker interface {
	HasOpenFor(symbol model.Symbol, strategyName model.Strategy) bool
}

// PositionOpener records a newly-accepted proposal as a Tracked
// Position (spec §4.F); satisfied by *position.Store.
type PositionOpener interface {
	Put(p *model.TrackedPosition)
}

// Engine evaluates every strategy gate on each bar close, sizes and
// prices the resulting Intent, constructs legs, and emits a signed
// proposal to the Gate. Grounded on the teacher's decision/localfunc.go
// dispatch loop, generalized from one decision per tick to seven gates
// evaluated in a fixed order with an emit-first-match policy.
type Engine struct {
	store     *indicator.Store
	broker    broker.Client
	gate      Submitter
	vix       *poller.VIXState
	positions PositionTracker
	opener    PositionOpener

	restrictedMu sync.Mutex
	restricted   map[string]bool

	mu            sync.Mutex
	lastSignalAt  map[model.Symbol]time.Time
	lastReplayAt  map[string]time.Time
}

func New(store *indicator.Store, brokerClient broker.Client, gate Submitter, vix *poller.VIXState, positions PositionTracker, opener PositionOpener) *Engine {
	return &Engine{
		store:        store,
		broker:       brokerClient,
		gate:         gate,
		vix:          vix,
		positions:    positions,
		opener:       opener,
		restricted:   make(map[string]bool),
		lastSignalAt: make(map[model.Symbol]time.Time),
		lastReplayAt: make(map[string]time.Time),
	}
}

// SetRestrictedDates replaces the calendar-lock date set consulted by
// the regime classifier (mirrors the Gate's own calendar; pushed to the
// Brain out of band, e.g. by an admin tool, since only the Gate is the
// durable source of truth per spec §4.H).
func (e *Engine) SetRestrictedDates(dates map[string]bool) {
	e.restrictedMu.Lock()
	defer e.restrictedMu.Unlock()
	e.restricted = dates
}

func (e *Engine) restrictedSnapshot() map[string]bool {
	e.restrictedMu.Lock()
	defer e.restrictedMu.Unlock()
	return e.restricted
}

// OnBarClose is the Stream Ingestor's callback, invoked after every
// trade it folds into the Indicator Store. It builds a Snapshot, runs
// every gate in order, and stops at the first that fires.
func (e *Engine) OnBarClose(ctx context.Context, symbol model.Symbol) {
	now := time.Now()

	if !e.throttleOK(symbol, now) {
		return
	}

	snap := e.buildSnapshot(symbol, now)

	for _, gate := range Gates {
		intent, fired := gate(snap)
		if !fired {
			continue
		}
		if !e.replayOK(intent.SignalKey, now) {
			return
		}
		if e.positions != nil && e.positions.HasOpenFor(symbol, intent.StrategyName) {
			log.Debug().Str("symbol", string(symbol)).Str("strategy", string(intent.StrategyName)).
				Msg("skipping signal: already carrying a position in this strategy")
			return
		}
		e.emit(ctx, symbol, *intent, snap, now)
		e.markSignaled(symbol, intent.SignalKey, now)
		return
	}
}

func (e *Engine) throttleOK(symbol model.Symbol, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.lastSignalAt[symbol]
	return !ok || now.Sub(last) >= symbolThrottle
}

func (e *Engine) replayOK(signalKey string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.lastReplayAt[signalKey]
	return !ok || now.Sub(last) >= signalReplay
}

func (e *Engine) markSignaled(symbol model.Symbol, signalKey string, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSignalAt[symbol] = now
	e.lastReplayAt[signalKey] = now
}

func (e *Engine) buildSnapshot(symbol model.Symbol, now time.Time) Snapshot {
	snap := Snapshot{Symbol: symbol, Now: now}

	if v, ok := e.vix.Value(now); ok {
		snap.VIX, snap.VIXOK = v, true
	}

	spyADX, spyADXOK := e.store.ADX(model.SymbolSPY, adxPeriod)
	snap.Regime = regime.Classify(regime.Inputs{
		VIX: snap.VIX, VIXPresent: snap.VIXOK,
		SPYADX: spyADX, SPYADXPresent: spyADXOK,
		Today: now, RestrictedDates: e.restrictedSnapshot(),
	})

	snap.Price, snap.PriceOK = e.store.Price(symbol)
	snap.SMA200, snap.SMA200OK = e.store.SMA(symbol, smaWindow)
	snap.RSI2, snap.RSI2OK = e.store.RSI(symbol, 2)
	snap.RSI14, snap.RSI14OK = e.store.RSI(symbol, 14)
	snap.ADX, snap.ADXOK = e.store.ADX(symbol, adxPeriod)

	if vp, ok := e.store.VolumeProfile(symbol); ok {
		snap.POC, snap.VAH, snap.VAL, snap.ProfileOK = vp.POC, vp.VAH, vp.VAL, true
	}

	snap.IVRank, snap.IVRankOK = e.store.CurrentIVRank(symbol)

	snap.FlowState = e.classifyFlow(symbol, snap)
	snap.VolumeVelocity, snap.VolumeVelocityOK = e.store.VolumeVelocity(symbol, volVelocityN)
	snap.OpenRangeHigh, snap.OpenRangeLow, snap.OpenRangeOK = e.store.OpeningRange(symbol, openRangeBars)

	return snap
}

// classifyFlow derives a coarse RISK_ON/RISK_OFF/NEUTRAL read from price
// vs session VWAP and the volume-velocity surge used by ORB, since spec
// §4.A only defines the inputs (VWAP, volume velocity) and leaves flow
// classification itself to the consuming component.
func (e *Engine) classifyFlow(symbol model.Symbol, snap Snapshot) model.FlowState {
	vwap, vwapOK := e.store.VWAP(symbol)
	if !vwapOK || !snap.PriceOK {
		return model.FlowUnknown
	}
	const neutralBandPercent = 0.05 / 100
	band := vwap * neutralBandPercent
	switch {
	case snap.Price > vwap+band:
		return model.FlowRiskOn
	case snap.Price < vwap-band:
		return model.FlowRiskOff
	default:
		return model.FlowNeutral
	}
}

// emit sizes, prices, builds legs for, and submits the proposal the
// fired Intent describes.
func (e *Engine) emit(ctx context.Context, symbol model.Symbol, intent Intent, snap Snapshot, now time.Time) {
	account, err := e.broker.GetAccount(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("emit: account fetch failed, skipping signal")
		return
	}

	expirations, err := e.broker.OptionChainExpirations(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", string(symbol)).Msg("emit: expirations fetch failed")
		return
	}
	expiration, ok := SelectExpiration(expirations, now, intent.DTETarget)
	if !ok {
		log.Warn().Str("symbol", string(symbol)).Msg("emit: no usable expiration for DTE target")
		return
	}

	// Price a single spread first (qty=1) to get a real per-contract cost,
	// then size off that before scaling the legs to the final quantity.
	unitLegs, err := BuildLegs(ctx, e.broker, symbol, expiration, intent, 1)
	if err != nil {
		log.Warn().Err(err).Str("symbol", string(symbol)).Msg("emit: leg construction failed")
		return
	}

	optSymbols := make([]string, 0, len(unitLegs))
	for _, l := range unitLegs {
		optSymbols = append(optSymbols, l.OptionSymbol)
	}
	quotes, err := e.broker.OptionQuotes(ctx, optSymbols)
	if err != nil {
		log.Warn().Err(err).Str("symbol", string(symbol)).Msg("emit: quote fetch failed")
		return
	}
	unitNetSigned, ok := NetMidPrice(unitLegs, quotes)
	if !ok {
		log.Warn().Str("symbol", string(symbol)).Msg("emit: incomplete quotes, skipping signal")
		return
	}
	unitEntryPrice := EntryPrice(intent.StrategyName, unitNetSigned)
	if unitEntryPrice <= 0 {
		log.Warn().Str("symbol", string(symbol)).Msg("emit: non-positive entry price, skipping signal")
		return
	}

	maxLoss := MaxLossPerContract(intent.Shape, unitEntryPrice, intent.SpreadWidth, intent.WingWidth, intent.RatioShortQty, intent.RatioLongQty)
	qty, ok := SizeQuantity(account.Equity, maxLoss)
	if !ok {
		log.Warn().Str("symbol", string(symbol)).Msg("emit: sizing rejected signal")
		return
	}
	legs := ScaleLegs(unitLegs, qty)

	// entry_price on the proposal and the Tracked Position is the total
	// price for the sized position (spec §4.F step 3's cost_to_close is
	// likewise a total over the held legs' quantities, e.g. §8 S4's
	// entry_price=120/cost_to_close=-30 are whole-position dollar figures).
	entryPrice := unitEntryPrice * float64(qty)

	proposalCtx := model.Context{
		"signal_key":    model.StringContext(intent.SignalKey),
		"signal_source": model.StringContext(intent.GateName),
		"bias":          model.StringContext(string(intent.Bias)),
	}
	if v, ok := e.vix.Value(now); ok {
		proposalCtx["vix"] = model.NumberContext(v)
	}
	proposalCtx["flow_state"] = model.StringContext(string(snap.FlowState))

	p := model.Proposal{
		ID:          uuid.NewString(),
		TimestampMs: now.UnixMilli(),
		Symbol:      symbol,
		Strategy:    intent.StrategyName,
		Side:        model.ProposalOpen,
		Quantity:    qty,
		Price:       entryPrice,
		Legs:        legs,
		Context:     proposalCtx,
	}

	metrics.ProposalsTotal.WithLabelValues(string(p.Strategy), string(p.Symbol), string(p.Side)).Inc()

	outcome, err := e.gate.SubmitProposal(ctx, p)
	if err != nil {
		log.Warn().Err(err).Str("proposal_id", p.ID).Msg("emit: proposal submission failed")
		metrics.ProposalOutcomeTotal.WithLabelValues("error", "transport").Inc()
		return
	}
	metrics.ProposalOutcomeTotal.WithLabelValues(outcome.Status, outcome.Reason).Inc()
	log.Info().Str("proposal_id", p.ID).Str("strategy", string(p.Strategy)).Str("status", outcome.Status).
		Str("reason", outcome.Reason).Msg("proposal submitted")

	if outcome.Status == "APPROVED" && e.opener != nil {
		e.opener.Put(&model.TrackedPosition{
			TradeID:        p.ID,
			Symbol:         symbol,
			Strategy:       intent.StrategyName,
			Bias:           intent.Bias,
			Legs:           legs,
			EntryPrice:     entryPrice,
			HighestPnLSeen: 0,
			Status:         model.PositionOpening,
			OpenOrderID:    outcome.OrderID,
			SubmittedLimit: entryPrice,
			SubmittedMid:   entryPrice,
			SubmittedAt:    now,
			LastAttemptAt:  now,
			SignalSource:   intent.GateName,
		})
	}
}
