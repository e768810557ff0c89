package domain

import "time"

// IdleReturn reports whether activity at now, following activity at prev,
// crosses the idle threshold. A missing prev counts as "just now", so a
// user's first activity never qualifies.
func IdleReturn(prev *time.Time, now time.Time, threshold time.Duration) bool {
	if prev == nil {
		return false
	}
	return now.Sub(*prev) > threshold
}
