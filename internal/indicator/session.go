package indicator

import "time"

// nyLocation is loaded once; falls back to UTC only if the zoneinfo
// database is unavailable, which should not happen on any real
// deployment target.
var nyLocation = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// sessionOpen returns today's (in t's date, interpreted in New York time)
// 09:30 America/New_York instant.
func sessionOpen(t time.Time) time.Time {
	ny := t.In(nyLocation)
	return time.Date(ny.Year(), ny.Month(), ny.Day(), 9, 30, 0, 0, nyLocation)
}

// sameSession reports whether a and b fall in the same regular-session
// day (both on/after that day's 09:30 ET open, before the next day's).
func sameSession(a, b time.Time) bool {
	key := func(t time.Time) time.Time {
		open := sessionOpen(t)
		if t.Before(open) {
			return open.AddDate(0, 0, -1)
		}
		return open
	}
	return key(a).Equal(key(b))
}

// minuteFloor truncates t down to the start of its minute, in UTC, so
// bar keys are stable regardless of input location.
func minuteFloor(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), 0, 0, time.UTC)
}
