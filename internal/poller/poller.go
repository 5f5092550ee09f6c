// Package poller runs the three independent periodic tasks spec §4.C
// describes: VIX, per-symbol ATM IV, and a one-shot history warm-up.
// Each is cancellable and never blocks the ingest loop, following the
// teacher's ticker-driven goroutine shape from AutoTrader.Run():
// select { case <-ticker.C: ...; case <-stop: return }.
package poller

import (
	"context"
	"time"

	"github.com/zerotype19/gekko3/internal/broker"
	"github.com/zerotype19/gekko3/internal/indicator"
	"github.com/zerotype19/gekko3/internal/logging"
	"github.com/zerotype19/gekko3/internal/model"
)

var log = logging.For("brain.poller")

// VIXState is shared between the VIX poller and anyone reading the
// current VIX (the regime classifier). It tracks staleness per spec
// §4.C: value is flagged stale after 180s and becomes absent at that point.
type VIXState struct {
	value     float64
	updatedAt time.Time
	have      bool
}

func NewVIXState() *VIXState { return &VIXState{} }

func (v *VIXState) set(value float64, at time.Time) {
	v.value = value
	v.updatedAt = at
	v.have = true
}

// Value returns the last known VIX and whether it is still fresh
// (updated within the last 180s).
func (v *VIXState) Value(now time.Time) (float64, bool) {
	if !v.have {
		return 0, false
	}
	if now.Sub(v.updatedAt) > 180*time.Second {
		return 0, false
	}
	return v.value, true
}

// RunVIXPoller polls VIX every 60s until ctx is canceled. Fetch failures
// are logged and retried on the next tick; the last good value keeps
// being served (subject to the 180s staleness cutoff above) per spec §4.C.
func RunVIXPoller(ctx context.Context, client broker.Client, state *VIXState) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	poll := func() {
		fctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		v, err := client.VIX(fctx)
		if err != nil {
			log.Warn().Err(err).Msg("VIX poll failed, keeping last value")
			return
		}
		state.set(v, time.Now())
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}

// RunATMIVPoller fetches near-ATM call+put IV for every symbol every
// 15 minutes, averages them, and records the result into the Indicator
// Store's rolling IV history (spec §4.C).
func RunATMIVPoller(ctx context.Context, client broker.Client, store *indicator.Store, symbols []model.Symbol) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	poll := func() {
		for _, sym := range symbols {
			fctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			callIV, putIV, err := client.ATMImpliedVol(fctx, sym)
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("symbol", string(sym)).Msg("ATM IV poll failed")
				continue
			}
			store.RecordIV(sym, (callIV+putIV)/2)
		}
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}

// WarmUp runs once at startup: a single batched history fetch per
// symbol, seeding the candle ring directly from the fetched candles and
// the RSI averages from their closes. VWAP cumulants are not seeded;
// they build up from live trades only. Strategy gates must not fire
// until this returns with all symbols warmed.
func WarmUp(ctx context.Context, client broker.Client, store *indicator.Store, symbols []model.Symbol, rsiPeriods []int) error {
	const warmUpDays = 5
	for _, sym := range symbols {
		fctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		hist, err := client.History(fctx, sym, warmUpDays)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("symbol", string(sym)).Msg("warm-up history fetch failed")
			return err
		}
		candles := make([]indicator.Candle, 0, len(hist))
		for _, h := range hist {
			candles = append(candles, indicator.Candle{
				OpenTime: h.OpenTime, Open: h.Open, High: h.High, Low: h.Low, Close: h.Close, Volume: h.Volume,
			})
		}
		store.SeedCandles(sym, candles, rsiPeriods)
		store.MarkWarmedUp(sym)
		log.Info().Str("symbol", string(sym)).Int("bars", len(candles)).Msg("warm-up complete")
	}
	return nil
}
