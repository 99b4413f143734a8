package engine

import "time"

// backoffDelay picks the retry delay after a failed attempt. attempt is the
// 1-based count of attempts made so far; schedules shorter than the attempt
// count repeat their last entry. A platform-provided retryAfter acts as a
// floor so the next attempt never lands inside the throttle window.
func backoffDelay(schedule []time.Duration, attempt int, retryAfter time.Duration) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	d := schedule[idx]
	if retryAfter > d {
		return retryAfter
	}
	return d
}
