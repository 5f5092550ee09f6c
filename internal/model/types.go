// Package model holds the wire and domain types shared by the Brain and
// the Gatekeeper: proposals, legs, tracked positions, and the
// Constitution. Nothing in this package performs I/O.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Symbol is one of the fixed index-ETF universe members.
type Symbol string

const (
	SymbolSPY Symbol = "SPY"
	SymbolQQQ Symbol = "QQQ"
	SymbolIWM Symbol = "IWM"
	SymbolDIA Symbol = "DIA"
)

// Universe lists every symbol the engine is allowed to touch.
var Universe = []Symbol{SymbolSPY, SymbolQQQ, SymbolIWM, SymbolDIA}

// Regime is the market-state classification that gates strategy eligibility.
type Regime string

const (
	RegimeTrending          Regime = "TRENDING"
	RegimeLowVolChop        Regime = "LOW_VOL_CHOP"
	RegimeHighVolExpansion  Regime = "HIGH_VOL_EXPANSION"
	RegimeEventRisk         Regime = "EVENT_RISK"
	RegimeInsufficientData  Regime = "INSUFFICIENT_DATA"
)

// Bias is the directional intent of a position.
type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
	BiasNeutral Bias = "neutral"
)

// FlowState is a categorical read of price vs VWAP and volume velocity.
type FlowState string

const (
	FlowRiskOn  FlowState = "RISK_ON"
	FlowRiskOff FlowState = "RISK_OFF"
	FlowNeutral FlowState = "NEUTRAL"
	FlowUnknown FlowState = "UNKNOWN"
)

// Strategy names the strategy shape that produced (or will close) a proposal.
type Strategy string

const (
	StrategyCreditSpread   Strategy = "CREDIT_SPREAD"
	StrategyIronCondor     Strategy = "IRON_CONDOR"
	StrategyIronButterfly  Strategy = "IRON_BUTTERFLY"
	StrategyRatioSpread    Strategy = "RATIO_SPREAD"
	StrategyCalendarSpread Strategy = "CALENDAR_SPREAD"
)

// CreditStrategies names strategies that settle entry_price as a net credit.
var CreditStrategies = map[Strategy]bool{
	StrategyCreditSpread:  true,
	StrategyIronCondor:    true,
	StrategyIronButterfly: true,
}

// DebitStrategies names strategies that settle entry_price as a net debit.
var DebitStrategies = map[Strategy]bool{
	StrategyRatioSpread:    true,
	StrategyCalendarSpread: true,
}

// PositionStatus is the lifecycle state of a Tracked Position.
type PositionStatus string

const (
	PositionOpening PositionStatus = "OPENING"
	PositionOpen    PositionStatus = "OPEN"
	PositionClosing PositionStatus = "CLOSING"
)

// LegSide is tagged rather than a bare string/bool so the zero value can
// never silently mean "buy" or "sell" — callers must pick one.
type LegSide string

const (
	LegBuy  LegSide = "BUY"
	LegSell LegSide = "SELL"
)

// ProposalSide distinguishes an opening trade from a closing one.
type ProposalSide string

const (
	ProposalOpen  ProposalSide = "OPEN"
	ProposalClose ProposalSide = "CLOSE"
)

// OptionType is PUT or CALL.
type OptionType string

const (
	OptionPut  OptionType = "PUT"
	OptionCall OptionType = "CALL"
)

// BrokerSide is the vocabulary the brokerage's multi-leg order API expects.
type BrokerSide string

const (
	BrokerSellToOpen  BrokerSide = "sell_to_open"
	BrokerBuyToOpen   BrokerSide = "buy_to_open"
	BrokerBuyToClose  BrokerSide = "buy_to_close"
	BrokerSellToClose BrokerSide = "sell_to_close"
)

// ToBrokerSide maps a leg side x proposal side pair onto the broker's
// order-leg vocabulary, per spec §4.H execution step.
func ToBrokerSide(leg LegSide, side ProposalSide) (BrokerSide, error) {
	switch {
	case side == ProposalOpen && leg == LegSell:
		return BrokerSellToOpen, nil
	case side == ProposalOpen && leg == LegBuy:
		return BrokerBuyToOpen, nil
	case side == ProposalClose && leg == LegSell:
		return BrokerBuyToClose, nil
	case side == ProposalClose && leg == LegBuy:
		return BrokerSellToClose, nil
	default:
		return "", fmt.Errorf("model: invalid leg side %q / proposal side %q combination", leg, side)
	}
}

// Leg is one option leg of a multi-leg proposal.
type Leg struct {
	OptionSymbol string     `json:"option_symbol"`
	Underlying   Symbol     `json:"underlying"`
	Expiration   time.Time  `json:"expiration"` // calendar date, time-of-day ignored
	Strike       float64    `json:"strike"`
	Type         OptionType `json:"type"`
	Quantity     int        `json:"quantity"`
	Side         LegSide    `json:"side"`
}

// ContextValue is a tagged union over the semi-open proposal.context
// dictionary: number | string | bool | null. The Gate only interprets
// "vix" and "flow_state"; everything else round-trips verbatim.
type ContextValue struct {
	kind byte // 'n' number, 's' string, 'b' bool, '0' null
	num  float64
	str  string
	bl   bool
}

func NumberContext(v float64) ContextValue { return ContextValue{kind: 'n', num: v} }
func StringContext(v string) ContextValue  { return ContextValue{kind: 's', str: v} }
func BoolContext(v bool) ContextValue      { return ContextValue{kind: 'b', bl: v} }
func NullContext() ContextValue            { return ContextValue{kind: '0'} }

func (c ContextValue) IsNull() bool { return c.kind == '0' }

func (c ContextValue) AsNumber() (float64, bool) {
	if c.kind == 'n' {
		return c.num, true
	}
	return 0, false
}

func (c ContextValue) AsString() (string, bool) {
	if c.kind == 's' {
		return c.str, true
	}
	return "", false
}

func (c ContextValue) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case 'n':
		return json.Marshal(c.num)
	case 's':
		return json.Marshal(c.str)
	case 'b':
		return json.Marshal(c.bl)
	default:
		return json.Marshal(nil)
	}
}

func (c *ContextValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*c = NullContext()
	case float64:
		*c = NumberContext(v)
	case string:
		*c = StringContext(v)
	case bool:
		*c = BoolContext(v)
	default:
		return fmt.Errorf("model: unsupported context value type %T", raw)
	}
	return nil
}

// Context is the proposal's semi-open dictionary. "vix" and "flow_state"
// are interpreted by the Gate; everything else is stored opaque.
type Context map[string]ContextValue

func (c Context) VIX() (float64, bool) {
	v, ok := c["vix"]
	if !ok {
		return 0, false
	}
	return v.AsNumber()
}

func (c Context) FlowState() (FlowState, bool) {
	v, ok := c["flow_state"]
	if !ok {
		return "", false
	}
	s, ok := v.AsString()
	if !ok {
		return "", false
	}
	return FlowState(s), true
}

func (c Context) Bias() (Bias, bool) {
	v, ok := c["bias"]
	if !ok {
		return "", false
	}
	s, ok := v.AsString()
	if !ok {
		return "", false
	}
	return Bias(s), true
}

// Proposal is the immutable, signed message a Brain sends to the Gate.
type Proposal struct {
	ID          string       `json:"id"`
	TimestampMs int64        `json:"timestamp_ms"`
	Symbol      Symbol       `json:"symbol"`
	Strategy    Strategy     `json:"strategy"`
	Side        ProposalSide `json:"side"`
	Quantity    int          `json:"quantity"`
	Price       float64      `json:"price"`
	Legs        []Leg        `json:"legs"`
	Context     Context      `json:"context"`
	Signature   string       `json:"signature,omitempty"`
}

// TrackedPosition is the Brain's exclusively-owned in-memory (and
// disk-mirrored) record of a live or in-flight trade.
type TrackedPosition struct {
	TradeID            string         `json:"trade_id"`
	Symbol             Symbol         `json:"symbol"`
	Strategy           Strategy       `json:"strategy"`
	Bias               Bias           `json:"bias"`
	Legs               []Leg          `json:"legs"`
	EntryPrice         float64        `json:"entry_price"`
	HighestPnLSeen     float64        `json:"highest_pnl_seen"`
	Status             PositionStatus `json:"status"`
	OpenOrderID        string         `json:"open_order_id,omitempty"`
	CloseOrderID       string         `json:"close_order_id,omitempty"`
	RetryBackoffUntil  time.Time      `json:"retry_backoff_until,omitempty"`
	SubmittedLimit     float64        `json:"submitted_limit,omitempty"`
	SubmittedMid       float64        `json:"submitted_mid,omitempty"`
	SubmittedAt        time.Time      `json:"submitted_at,omitempty"`
	LastAttemptAt      time.Time      `json:"last_attempt_at,omitempty"`

	// SignalSource names the strategy gate that produced this position
	// (e.g. "SCALPER", "ORB", "TREND_ENGINE") rather than its broker-facing
	// Strategy shape, since several gates share a shape (Scalper, ORB, Trend
	// Engine, and Weekend Warrior all emit CREDIT_SPREAD) but apply
	// different exit rules (spec §4.F step 5).
	SignalSource string `json:"signal_source"`
}

// PositionMetadata is the Gate's side-index: broker order id -> the
// correlation-relevant facts about the trade it opened.
type PositionMetadata struct {
	OrderID          string   `json:"order_id"`
	Symbol           Symbol   `json:"symbol"`
	Bias             Bias     `json:"bias"`
	Strategy         Strategy `json:"strategy"`
	CorrelationGroup string   `json:"correlation_group"`
	CreatedAt        time.Time `json:"created_at"`
}

// LockStatus is the Gate's coarse trading on/off switch.
type LockStatus string

const (
	StatusNormal LockStatus = "NORMAL"
	StatusLocked LockStatus = "LOCKED"
)

// LockState is persisted in the ledger and mirrored in Gate memory.
type LockState struct {
	Status LockStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}

// Constitution is the Gate's immutable risk-rule configuration.
type Constitution struct {
	AllowedSymbols            []Symbol            `json:"allowed_symbols"`
	AllowedStrategies         []Strategy          `json:"allowed_strategies"`
	MaxOpenPositions          int                 `json:"max_open_positions"`
	MaxConcentrationPerSymbol int                 `json:"max_concentration_per_symbol"`
	MaxDailyLossPercent       float64             `json:"max_daily_loss_percent"`
	MinDTE                    int                 `json:"min_dte"`
	MaxDTE                    int                 `json:"max_dte"`
	CorrelationGroups         map[Symbol]string   `json:"correlation_groups"`
	MaxCorrelatedPositions    int                 `json:"max_correlated_positions"`
	MaxTotalPositions         int                 `json:"max_total_positions"`
	StaleProposalMs           int64               `json:"stale_proposal_ms"`
	ForceEodCloseEt           string              `json:"force_eod_close_et,omitempty"` // "HH:MM" or empty
}

func (c Constitution) AllowsSymbol(s Symbol) bool {
	for _, a := range c.AllowedSymbols {
		if a == s {
			return true
		}
	}
	return false
}

func (c Constitution) AllowsStrategy(s Strategy) bool {
	for _, a := range c.AllowedStrategies {
		if a == s {
			return true
		}
	}
	return false
}

// HeartbeatState is the Gate's durable record of the Brain's last
// heartbeat: a monotonic timestamp plus an opaque state blob.
type HeartbeatState struct {
	LastHeartbeatAt time.Time       `json:"last_heartbeat_at"`
	BrainState      json.RawMessage `json:"brain_state,omitempty"`
}
