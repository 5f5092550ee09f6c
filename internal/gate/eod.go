package gate

import (
	"fmt"
	"strings"
	"time"
)

// TriggerEndOfDayReport is the entry point the external scheduling
// fabric (21:30 UTC weekdays, per spec §4.H) calls. It computes day
// P&L from the equity delta, summarizes proposals by symbol and
// status, and sends one structured message to the notifier. Failures
// are logged and swallowed (spec §7 kind 6): a failed report must
// never affect trading.
func (g *Gate) TriggerEndOfDayReport(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	dayStartUnix := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Unix()
	summary, err := g.ledger.SummarizeProposalsSince(dayStartUnix)
	if err != nil {
		log.Error().Err(err).Msg("eod report: failed to summarize proposals")
		return
	}

	var dayPnL, dayPnLPct float64
	if g.day.StartOfDayEquity > 0 {
		dayPnL = g.cachedEquity - g.day.StartOfDayEquity
		dayPnLPct = dayPnL / g.day.StartOfDayEquity * 100
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Day P&L: %.2f (%.2f%%)\n", dayPnL, dayPnLPct)
	fmt.Fprintf(&sb, "Start-of-day equity: %.2f, current equity: %.2f\n", g.day.StartOfDayEquity, g.cachedEquity)
	for _, s := range summary {
		fmt.Fprintf(&sb, "%s %s: %d\n", s.Symbol, s.Status, s.Count)
	}

	g.notifier.Send(fmt.Sprintf("End-of-day report %s", tradingDate(now)), sb.String())
}
