package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInSessionWindow(t *testing.T) {
	loc := nyLoc()
	weekdayInWindow := time.Date(2026, 3, 2, 10, 0, 0, 0, loc) // Monday 10:00 ET
	require.True(t, inSessionWindow(weekdayInWindow))

	weekdayBeforeOpen := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)
	require.False(t, inSessionWindow(weekdayBeforeOpen))

	weekdayAfterClose := time.Date(2026, 3, 2, 16, 10, 0, 0, loc)
	require.False(t, inSessionWindow(weekdayAfterClose))

	saturday := time.Date(2026, 3, 7, 10, 0, 0, 0, loc)
	require.False(t, inSessionWindow(saturday))
}

func TestNextWindowOpenSkipsWeekend(t *testing.T) {
	loc := nyLoc()
	friday := time.Date(2026, 3, 6, 17, 0, 0, 0, loc) // after Friday close
	next := nextWindowOpen(friday)
	require.Equal(t, time.Monday, next.Weekday())
}
