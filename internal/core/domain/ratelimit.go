package domain

import (
	"math"
	"time"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Limit is the quota for the window.
	Limit int64

	// Count is the post-increment counter value. Zero when Degraded.
	Count int64

	// Remaining is the number of requests still admitted in this window.
	Remaining int64

	// ResetAt is the end of the current window.
	ResetAt time.Time

	// RetryAfter is how long a rejected client should wait. Zero when allowed.
	RetryAfter time.Duration

	// Degraded is set when the counter store failed and the request was
	// admitted without counting.
	Degraded bool
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below 1 for
// a rejection.
func (d Decision) RetryAfterSeconds() int64 {
	if d.Allowed {
		return 0
	}
	secs := int64(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Window identifies one fixed counting interval.
type Window struct {
	ID    int64
	Start time.Time
	End   time.Time
}

// WindowAt returns the fixed window of length size containing now.
// Windows are aligned to the Unix epoch; an instant equal to a boundary
// belongs to the window that starts there.
func WindowAt(now time.Time, size time.Duration) Window {
	n := now.UnixNano()
	w := size.Nanoseconds()

	id := n / w
	if n%w < 0 {
		id--
	}

	start := time.Unix(0, id*w)
	return Window{
		ID:    id,
		Start: start,
		End:   start.Add(size),
	}
}
