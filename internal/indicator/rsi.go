package indicator

// rsiState holds Wilder-smoothed average gain/loss for one (symbol,
// period) pair, updated exactly once per closed bar. Per spec §4.A: the
// first value is the simple mean of the first n gains/losses; every
// subsequent bar updates avg = (prev_avg*(n-1) + new)/n. These averages
// are never recomputed from scratch or reset once seeded.
type rsiState struct {
	period      int
	avgGain     float64
	avgLoss     float64
	seeded      bool
	seedGains   []float64
	seedLosses  []float64
	haveSeen    int // number of closes observed since last seed attempt
}

func newRSIState(period int) *rsiState {
	return &rsiState{period: period}
}

// onClose updates the Wilder averages given the most recent close-over-
// close change. Must be called exactly once per newly closed bar, in
// order.
func (s *rsiState) onClose(change float64) {
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if !s.seeded {
		s.seedGains = append(s.seedGains, gain)
		s.seedLosses = append(s.seedLosses, loss)
		s.haveSeen++
		if s.haveSeen == s.period {
			sumG, sumL := 0.0, 0.0
			for i := range s.seedGains {
				sumG += s.seedGains[i]
				sumL += s.seedLosses[i]
			}
			s.avgGain = sumG / float64(s.period)
			s.avgLoss = sumL / float64(s.period)
			s.seeded = true
			s.seedGains = nil
			s.seedLosses = nil
		}
		return
	}

	n := float64(s.period)
	s.avgGain = (s.avgGain*(n-1) + gain) / n
	s.avgLoss = (s.avgLoss*(n-1) + loss) / n
}

// value returns the current RSI and whether enough bars have been seen.
func (s *rsiState) value() (float64, bool) {
	if !s.seeded {
		return 0, false
	}
	if s.avgLoss == 0 {
		return 100, true
	}
	rs := s.avgGain / s.avgLoss
	return 100 - (100 / (1 + rs)), true
}
