package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zerotype19/gekko3/internal/model"
)

func bar(minute int, closePrice float64) Candle {
	base := time.Date(2024, 1, 16, 14, 30, 0, 0, time.UTC) // 09:30 ET
	return Candle{
		OpenTime: base.Add(time.Duration(minute) * time.Minute),
		Open:     closePrice,
		High:     closePrice,
		Low:      closePrice,
		Close:    closePrice,
		Volume:   100,
	}
}

func TestSMA_AbsentUntilFullWindow(t *testing.T) {
	st := NewStore()
	closes := []float64{10, 11, 12}
	for i, c := range closes {
		st.state(model.SymbolSPY).candles.push(bar(i, c))
	}
	_, ok := st.SMA(model.SymbolSPY, 5)
	require.False(t, ok, "SMA must be absent with fewer than n closed bars")

	mean, ok := st.SMA(model.SymbolSPY, 3)
	require.True(t, ok)
	require.InDelta(t, 11.0, mean, 1e-9)
}

func TestRSI_WilderRecurrence(t *testing.T) {
	st := NewStore()
	st.EnsureRSITracked(model.SymbolSPY, 14)

	// 16 closes: first close seeds no change; bars 1..14 seed the first
	// average; bar 15 applies the recurrence once more.
	closes := []float64{100, 101, 102, 101, 103, 104, 103, 105, 106, 105, 107, 108, 107, 109, 110, 111}
	s := st.state(model.SymbolSPY)
	for i, c := range closes {
		b := bar(i, c)
		if i == 0 {
			s.candles.push(b)
			continue
		}
		prev := closes[i-1]
		s.candles.push(b)
		change := c - prev
		for _, rs := range s.rsiStates {
			rs.onClose(change)
		}
	}

	val, ok := st.RSI(model.SymbolSPY, 14)
	require.True(t, ok)
	require.Greater(t, val, 0.0)
	require.LessOrEqual(t, val, 100.0)
}

func TestVWAP_AbsentThenComputed(t *testing.T) {
	st := NewStore()
	_, ok := st.VWAP(model.SymbolQQQ)
	require.False(t, ok)

	ts := time.Date(2024, 1, 16, 14, 30, 0, 0, time.UTC) // 09:30 ET
	st.OnTrade(model.SymbolQQQ, 100, 10, ts)
	st.OnTrade(model.SymbolQQQ, 102, 10, ts.Add(time.Second))

	vwap, ok := st.VWAP(model.SymbolQQQ)
	require.True(t, ok)
	require.InDelta(t, 101.0, vwap, 1e-9)
}

func TestVolumeProfile_POC(t *testing.T) {
	st := NewStore()
	ts := time.Date(2024, 1, 16, 14, 30, 0, 0, time.UTC)
	st.OnTrade(model.SymbolIWM, 200.0, 5, ts)
	st.OnTrade(model.SymbolIWM, 200.1, 50, ts)
	st.OnTrade(model.SymbolIWM, 201.0, 3, ts)

	vp, ok := st.VolumeProfile(model.SymbolIWM)
	require.True(t, ok)
	require.InDelta(t, 200.0, vp.POC, 0.26)
}

func TestIVRank(t *testing.T) {
	st := NewStore()
	_, ok := st.IVRank(model.SymbolDIA, 0.2)
	require.False(t, ok)

	for _, iv := range []float64{0.1, 0.2, 0.3, 0.4, 0.5} {
		st.RecordIV(model.SymbolDIA, iv)
	}
	rank, ok := st.IVRank(model.SymbolDIA, 0.3)
	require.True(t, ok)
	require.InDelta(t, 60.0, rank, 1e-9) // 3 of 5 values <= 0.3
}
