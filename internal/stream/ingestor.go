// Package stream is the Stream Ingestor (spec §4.D): it creates a
// streaming session, opens a persistent connection, subscribes to the
// fixed symbol universe, and dispatches trade/quote messages into the
// Indicator Store. Reconnect uses exponential backoff and only runs
// inside the configured session window. The network state machine is
// modeled on the teacher's own retry/backoff fields in AutoTrader,
// generalized from exchange-reconnect bookkeeping to a websocket client
// since the teacher repo carries no streaming client in the retrieved
// files.
package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/indicator"
	"github.com/zerotype19/gekko3/internal/logging"
	"github.com/zerotype19/gekko3/internal/model"
)

var log = logging.For("brain.ingest")

// OnBarClose is invoked synchronously, on the ingest goroutine, after
// every trade has been folded into the Indicator Store (not only on
// trades that close out a minute bar) — this is the hook the strategy
// gates attach to, per spec §5's ordering guarantee that a proposal only
// fires after the triggering trade's indicators are updated.
type OnBarClose func(symbol model.Symbol)

type wireMessage struct {
	Type   string  `json:"type"` // "trade" | "quote"
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price,omitempty"`
	Size   float64 `json:"size,omitempty"`
	Bid    float64 `json:"bid,omitempty"`
	Ask    float64 `json:"ask,omitempty"`
	TsMs   int64   `json:"ts_ms"`
}

// Ingestor owns the persistent streaming connection.
type Ingestor struct {
	client  broker.Client
	store   *indicator.Store
	symbols []model.Symbol
	onBar   OnBarClose

	warmupDone func() bool
}

func New(client broker.Client, store *indicator.Store, symbols []model.Symbol, onBar OnBarClose, warmupDone func() bool) *Ingestor {
	return &Ingestor{client: client, store: store, symbols: symbols, onBar: onBar, warmupDone: warmupDone}
}

// inSessionWindow is 09:25-16:05 America/New_York, weekdays, per spec §4.D.
func inSessionWindow(now time.Time) bool {
	ny := now.In(nyLoc())
	if ny.Weekday() == time.Saturday || ny.Weekday() == time.Sunday {
		return false
	}
	open := time.Date(ny.Year(), ny.Month(), ny.Day(), 9, 25, 0, 0, ny.Location())
	closeT := time.Date(ny.Year(), ny.Month(), ny.Day(), 16, 5, 0, 0, ny.Location())
	return !ny.Before(open) && !ny.After(closeT)
}

func nyLoc() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}

func nextWindowOpen(now time.Time) time.Time {
	ny := now.In(nyLoc())
	candidate := time.Date(ny.Year(), ny.Month(), ny.Day(), 9, 25, 0, 0, ny.Location())
	if ny.After(candidate) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	for candidate.Weekday() == time.Saturday || candidate.Weekday() == time.Sunday {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// Run drives the ingest loop until ctx is canceled, sleeping outside the
// session window and reconnecting with exponential backoff on failure.
func (ig *Ingestor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if !inSessionWindow(time.Now()) {
			wait := time.Until(nextWindowOpen(time.Now()))
			log.Info().Dur("wait", wait).Msg("outside session window, sleeping")
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				continue
			}
		}
		if err := ig.connectAndStream(ctx); err != nil {
			log.Warn().Err(err).Msg("stream connection failed")
		}
	}
}

var backoffSteps = []time.Duration{1 * time.Second, 2 * time.Second, 5 * time.Second, 30 * time.Second}

func (ig *Ingestor) connectAndStream(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		token, streamURL, err := ig.client.CreateStreamSession(ctx)
		if err != nil {
			ig.sleepBackoff(ctx, attempt)
			attempt++
			continue
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL, nil)
		if err != nil {
			ig.sleepBackoff(ctx, attempt)
			attempt++
			continue
		}

		if err := ig.subscribe(conn, token); err != nil {
			conn.Close()
			ig.sleepBackoff(ctx, attempt)
			attempt++
			continue
		}

		attempt = 0 // reset backoff once a connection is live
		ig.readLoop(ctx, conn)
		conn.Close()

		if !inSessionWindow(time.Now()) {
			return nil
		}
		ig.sleepBackoff(ctx, attempt)
		attempt++
	}
}

func (ig *Ingestor) sleepBackoff(ctx context.Context, attempt int) {
	idx := attempt
	if idx >= len(backoffSteps) {
		idx = len(backoffSteps) - 1
	}
	select {
	case <-ctx.Done():
	case <-time.After(backoffSteps[idx]):
	}
}

type subscribeMsg struct {
	Action  string   `json:"action"`
	Token   string   `json:"token"`
	Symbols []string `json:"symbols"`
}

func (ig *Ingestor) subscribe(conn *websocket.Conn, token string) error {
	syms := make([]string, len(ig.symbols))
	for i, s := range ig.symbols {
		syms[i] = string(s)
	}
	return conn.WriteJSON(subscribeMsg{Action: "subscribe", Token: token, Symbols: syms})
}

func (ig *Ingestor) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Msg("malformed stream message")
			continue
		}
		ig.dispatch(msg)
	}
}

func (ig *Ingestor) dispatch(msg wireMessage) {
	sym := model.Symbol(msg.Symbol)
	ts := time.UnixMilli(msg.TsMs)

	switch msg.Type {
	case "trade":
		ig.store.OnTrade(sym, msg.Price, msg.Size, ts)
		if ig.onBar != nil && (ig.warmupDone == nil || ig.warmupDone()) {
			ig.onBar(sym)
		}
	case "quote":
		ig.store.OnQuote(sym, msg.Bid, msg.Ask, ts)
	default:
		log.Debug().Str("type", msg.Type).Msg("unrecognized stream message type")
	}
}
