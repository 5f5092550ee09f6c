// Package indicator is the Indicator Store (spec §4.A): it owns the
// per-symbol candle ring, session VWAP, SMA/RSI/ADX, volume profile, and
// IV rank, and is the exclusive writer of candle data. Trades/quotes are
// dispatched to it from the Stream Ingestor under a single short-lived
// lock per call; no I/O ever happens while that lock is held.
package indicator

import (
	"sync"
	"time"

	"github.com/zerotype19/gekko3/internal/model"
)

type symbolState struct {
	candles *ring

	// in-progress bar for the current open minute
	haveCurrent bool
	current     Candle

	// session VWAP cumulants, reset at each 09:30 ET open
	vwapCumPV     float64
	vwapCumVol    float64
	vwapSessionAt time.Time

	// session volume profile, reset alongside VWAP
	volProfile       *volumeProfile
	volProfileSessAt time.Time

	lastPrice    float64
	haveLastPx   bool
	lastTradeAt  time.Time

	rsiStates map[int]*rsiState

	ivHist *ivHistory

	warmedUp bool
}

func newSymbolState() *symbolState {
	return &symbolState{
		candles:    newRing(),
		volProfile: newVolumeProfile(),
		rsiStates:  make(map[int]*rsiState),
		ivHist:     newIVHistory(),
	}
}

func (s *symbolState) rsiState(period int) *rsiState {
	st, ok := s.rsiStates[period]
	if !ok {
		st = newRSIState(period)
		s.rsiStates[period] = st
	}
	return st
}

// Store is the Indicator Store. All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	symbols map[model.Symbol]*symbolState
}

func NewStore() *Store {
	st := &Store{symbols: make(map[model.Symbol]*symbolState)}
	for _, sym := range model.Universe {
		st.symbols[sym] = newSymbolState()
	}
	return st
}

func (st *Store) state(symbol model.Symbol) *symbolState {
	s, ok := st.symbols[symbol]
	if !ok {
		s = newSymbolState()
		st.symbols[symbol] = s
	}
	return s
}

// OnTrade folds a trade tick into the current minute bar, the session
// VWAP cumulants, and the session volume profile. It never blocks on I/O.
func (st *Store) OnTrade(symbol model.Symbol, price, size float64, ts time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.state(symbol)
	st.rollSessionLocked(s, ts)
	st.rollMinuteLocked(s, ts)

	if !s.haveCurrent {
		s.current = Candle{OpenTime: minuteFloor(ts), Open: price, High: price, Low: price, Close: price, Volume: size}
		s.haveCurrent = true
	} else {
		if price > s.current.High {
			s.current.High = price
		}
		if price < s.current.Low {
			s.current.Low = price
		}
		s.current.Close = price
		s.current.Volume += size
	}

	s.vwapCumPV += price * size
	s.vwapCumVol += size
	s.volProfile.add(price, size)

	s.lastPrice = price
	s.haveLastPx = true
	s.lastTradeAt = ts
}

// OnQuote is accepted for interface completeness with spec §4.A; the
// spec's derived indicators are all trade/bar driven, so quotes are
// currently only used by the Position Manager's own quote fetches, not
// folded into the Indicator Store's state.
func (st *Store) OnQuote(symbol model.Symbol, bid, ask float64, ts time.Time) {
	_ = symbol
	_ = bid
	_ = ask
	_ = ts
}

// rollSessionLocked resets VWAP cumulants and the volume profile at each
// new regular-session open. Caller holds st.mu.
func (st *Store) rollSessionLocked(s *symbolState, ts time.Time) {
	if s.vwapSessionAt.IsZero() || !sameSession(s.vwapSessionAt, ts) {
		s.vwapCumPV = 0
		s.vwapCumVol = 0
		s.vwapSessionAt = ts
		s.volProfile.reset()
		s.volProfileSessAt = ts
	}
}

// rollMinuteLocked closes out the in-progress bar if ts has moved into a
// new minute, appending it to the ring and updating RSI state. Caller
// holds st.mu.
func (st *Store) rollMinuteLocked(s *symbolState, ts time.Time) {
	if !s.haveCurrent {
		return
	}
	if minuteFloor(ts).Equal(s.current.OpenTime) {
		return
	}
	st.closeBarLocked(s, s.current)
	s.haveCurrent = false
}

// closeBarLocked appends a closed bar to the ring and advances every
// Wilder RSI period currently tracked for this symbol. Caller holds st.mu.
func (st *Store) closeBarLocked(s *symbolState, bar Candle) {
	prevClose, hadPrev := 0.0, false
	if last, ok := s.candles.last(); ok {
		prevClose, hadPrev = last.Close, true
	}
	s.candles.push(bar)
	if hadPrev {
		change := bar.Close - prevClose
		for _, rs := range s.rsiStates {
			rs.onClose(change)
		}
	}
}

// EnsureRSITracked registers a period so its Wilder state begins seeding
// on the next bar close; call this during warm-up for every period the
// strategy gates will query (2 and 14 per spec §4.E).
func (st *Store) EnsureRSITracked(symbol model.Symbol, period int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state(symbol).rsiState(period)
}

// FlushCurrentBar force-closes any in-progress bar. Used by callers that
// need a deterministic view at a fixed wall-clock boundary (e.g. tests).
func (st *Store) FlushCurrentBar(symbol model.Symbol, ts time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.state(symbol)
	if s.haveCurrent {
		st.closeBarLocked(s, s.current)
		s.haveCurrent = false
	}
	_ = ts
}

// Price returns the last trade price, absent if none has been seen.
func (st *Store) Price(symbol model.Symbol) (float64, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.state(symbol)
	return s.lastPrice, s.haveLastPx
}

// SMA returns the arithmetic mean of the last n closed bars, absent if
// fewer than n bars have closed.
func (st *Store) SMA(symbol model.Symbol, n int) (float64, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.state(symbol)
	bars, ok := s.candles.lastN(n)
	if !ok {
		return 0, false
	}
	sum := 0.0
	for _, b := range bars {
		sum += b.Close
	}
	return sum / float64(n), true
}

// RSI returns the Wilder-smoothed RSI(n). The period must already be
// tracked (via EnsureRSITracked or a prior RSI call that seeded it).
func (st *Store) RSI(symbol model.Symbol, n int) (float64, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.state(symbol)
	return s.rsiState(n).value()
}

// ADX returns Wilder ADX(n), recomputed over the trailing window.
func (st *Store) ADX(symbol model.Symbol, n int) (float64, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.state(symbol)
	return computeADX(s.candles.all(), n)
}

// VWAP returns cumulative (price*volume)/volume since the last session
// open, absent if no trades have been recorded this session.
func (st *Store) VWAP(symbol model.Symbol) (float64, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.state(symbol)
	if s.vwapCumVol == 0 {
		return 0, false
	}
	return s.vwapCumPV / s.vwapCumVol, true
}

// VolumeProfile returns the session POC/VAH/VAL.
func (st *Store) VolumeProfile(symbol model.Symbol) (VolumeProfileResult, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.state(symbol)
	return s.volProfile.compute()
}

// RecordIV appends an observed ATM IV sample to the symbol's rolling
// history, called by the ATM IV poller (spec §4.C).
func (st *Store) RecordIV(symbol model.Symbol, iv float64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state(symbol).ivHist.append(iv)
}

// IVRank returns the percentile rank of currentIV within the stored
// 252-sample history, absent if no history exists yet.
func (st *Store) IVRank(symbol model.Symbol, currentIV float64) (float64, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state(symbol).ivHist.rank(currentIV)
}

// CurrentIVRank is the convenience form strategy gates use: the rank of
// the most recently recorded ATM IV sample within its own history.
func (st *Store) CurrentIVRank(symbol model.Symbol) (float64, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	h := st.state(symbol).ivHist
	latest, ok := h.latest()
	if !ok {
		return 0, false
	}
	return h.rank(latest)
}

// VolumeVelocity is the ratio of the most recently closed bar's volume
// to the average volume of the preceding n bars, absent if fewer than
// n+1 bars have closed. Used by the ORB strategy gate (spec §4.E).
func (st *Store) VolumeVelocity(symbol model.Symbol, n int) (float64, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.state(symbol)
	bars, ok := s.candles.lastN(n + 1)
	if !ok {
		return 0, false
	}
	latest := bars[len(bars)-1].Volume
	sum := 0.0
	for _, b := range bars[:len(bars)-1] {
		sum += b.Volume
	}
	avg := sum / float64(n)
	if avg == 0 {
		return 0, false
	}
	return latest / avg, true
}

// OpeningRange returns the high/low of the first n bars of the current
// session, absent until the session has produced at least n closed bars.
func (st *Store) OpeningRange(symbol model.Symbol, n int) (high, low float64, ok bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.state(symbol)
	all := s.candles.all()
	if len(all) == 0 {
		return 0, 0, false
	}
	sessionStart := sessionOpen(all[len(all)-1].OpenTime)
	var session []Candle
	for _, c := range all {
		if !c.OpenTime.Before(sessionStart) {
			session = append(session, c)
		}
	}
	if len(session) < n {
		return 0, 0, false
	}
	high, low = session[0].High, session[0].Low
	for _, c := range session[:n] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return high, low, true
}

// MarkWarmedUp records that warm-up has completed for a symbol.
func (st *Store) MarkWarmedUp(symbol model.Symbol) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state(symbol).warmedUp = true
}

// WarmedUp reports whether warm-up has completed for every universe symbol.
func (st *Store) WarmedUp() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, sym := range model.Universe {
		if !st.state(sym).warmedUp {
			return false
		}
	}
	return true
}

// SeedCandles bulk-loads historical candles during warm-up (spec §4.A),
// oldest first, and seeds RSI state for the given periods from that
// history so the first live bar close continues an already-initialized
// Wilder average rather than restarting it.
func (st *Store) SeedCandles(symbol model.Symbol, candles []Candle, rsiPeriods []int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.state(symbol)
	for _, p := range rsiPeriods {
		s.rsiState(p)
	}
	for i, c := range candles {
		if i == 0 {
			s.candles.push(c)
			continue
		}
		prevClose := candles[i-1].Close
		s.candles.push(c)
		change := c.Close - prevClose
		for _, rs := range s.rsiStates {
			rs.onClose(change)
		}
	}
	if n := len(candles); n > 0 {
		s.lastPrice = candles[n-1].Close
		s.haveLastPx = true
	}
}
