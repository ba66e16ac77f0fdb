package activity

import "time"

const dayFormat = "2006-01-02"

// Window is the inclusive [Start, End] range defining the measurement period.
// Both bounds participate in membership tests.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a window with both bounds normalized to UTC.
func NewWindow(start, end time.Time) Window {
	return Window{
		Start: start.UTC(),
		End:   end.UTC(),
	}
}

// Contains reports whether ts falls inside the window, inclusive on both
// bounds. A zero timestamp is never inside any window.
func (w Window) Contains(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	if ts.Before(w.Start) {
		return false
	}
	return !ts.After(w.End)
}

// Days enumerates every calendar date in the window, inclusive of both ends,
// formatted as YYYY-MM-DD in UTC.
func (w Window) Days() []string {
	if w.Start.IsZero() || w.End.IsZero() || w.End.Before(w.Start) {
		return nil
	}

	start := time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(w.End.Year(), w.End.Month(), w.End.Day(), 0, 0, 0, 0, time.UTC)

	days := make([]string, 0, int(end.Sub(start).Hours()/24)+1)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		days = append(days, day.Format(dayFormat))
	}
	return days
}

// DayKey formats a timestamp as the daily-activity bucket key.
func DayKey(ts time.Time) string {
	return ts.UTC().Format(dayFormat)
}
