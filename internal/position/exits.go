package position

import (
	"time"

	"github.com/zerotype19/gekko3/internal/model"
)

// IndicatorReader is the narrow read surface exit evaluation needs from
// the Indicator Store, kept as an interface so tests don't need a real
// warmed-up store.
type IndicatorReader interface {
	RSI(symbol model.Symbol, n int) (float64, bool)
	SMA(symbol model.Symbol, n int) (float64, bool)
	ADX(symbol model.Symbol, n int) (float64, bool)
	Price(symbol model.Symbol) (float64, bool)
}

// ExitDecision is what EvaluateExit returns: whether to close, and why
// (recorded on the CLOSE proposal's context for the audit trail).
type ExitDecision struct {
	ShouldClose bool
	Reason      string
}

func noExit() ExitDecision { return ExitDecision{} }

func closeFor(reason string) ExitDecision { return ExitDecision{ShouldClose: true, Reason: reason} }

const forcedCloseET = "15:55"

// EvaluateExit applies spec §4.F step 5's rule set, branching on the
// position's originating gate (SignalSource) since several gates share
// a broker-facing Strategy shape but close on different conditions.
func EvaluateExit(p *model.TrackedPosition, pnlPct, highestPnLSeen float64, ind IndicatorReader, now time.Time) ExitDecision {
	if forcedEODClose(now) {
		return closeFor("forced_eod_close")
	}

	switch p.SignalSource {
	case "SCALPER":
		return evaluateScalperExit(p, pnlPct, ind)
	case "RANGE_FARMER", "IRON_BUTTERFLY":
		return evaluateNeutralExit(p, pnlPct, ind)
	default:
		// ORB, TREND_ENGINE, WEEKEND_WARRIOR, and RATIO_HEDGE all carry a
		// directional bias; Ratio Hedge has no bespoke exit rule in the
		// spec's table, so it shares the directional credit-spread rules.
		return evaluateDirectionalExit(p, pnlPct, highestPnLSeen, ind, now)
	}
}

func forcedEODClose(now time.Time) bool {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return now.In(loc).Format("15:04") >= forcedCloseET
}

func evaluateScalperExit(p *model.TrackedPosition, pnlPct float64, ind IndicatorReader) ExitDecision {
	rsi14, ok := ind.RSI(p.Symbol, 14)
	if ok {
		if p.Bias == model.BiasBullish && rsi14 > 60 {
			return closeFor("scalper_rsi_exit")
		}
		if p.Bias == model.BiasBearish && rsi14 < 40 {
			return closeFor("scalper_rsi_exit")
		}
	}
	if pnlPct <= -20 {
		return closeFor("scalper_stop_loss")
	}
	return noExit()
}

func evaluateDirectionalExit(p *model.TrackedPosition, pnlPct, highestPnLSeen float64, ind IndicatorReader, now time.Time) ExitDecision {
	if highestPnLSeen >= 30 && highestPnLSeen-pnlPct >= 10 {
		return closeFor("trailing_stop")
	}
	if price, ok := ind.Price(p.Symbol); ok {
		if sma200, ok := ind.SMA(p.Symbol, 200); ok {
			if p.Bias == model.BiasBullish && price < sma200 {
				return closeFor("trend_break")
			}
			if p.Bias == model.BiasBearish && price > sma200 {
				return closeFor("trend_break")
			}
		}
	}
	if pnlPct >= 80 {
		return closeFor("profit_target")
	}
	if pnlPct <= -100 {
		return closeFor("max_loss")
	}
	return noExit()
}

func evaluateNeutralExit(p *model.TrackedPosition, pnlPct float64, ind IndicatorReader) ExitDecision {
	if adx, ok := ind.ADX(p.Symbol, 14); ok && adx > 30 {
		return closeFor("adx_breakout")
	}
	if pnlPct >= 50 {
		return closeFor("profit_target")
	}
	if pnlPct <= -100 {
		return closeFor("max_loss")
	}
	return noExit()
}
