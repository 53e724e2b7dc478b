package mind

import (
	"sync"
	"time"
)

// PostLimiter caps how often the agent publishes, over a sliding minute and
// a sliding hour.
type PostLimiter struct {
	mu           sync.Mutex
	perMinute    []time.Time
	perHour      []time.Time
	maxPerMinute int
	maxPerHour   int
}

// NewPostLimiter builds a limiter; a non-positive max disables that window.
func NewPostLimiter(maxPerMinute, maxPerHour int) *PostLimiter {
	return &PostLimiter{
		perMinute:    make([]time.Time, 0, 8),
		perHour:      make([]time.Time, 0, 32),
		maxPerMinute: maxPerMinute,
		maxPerHour:   maxPerHour,
	}
}

// DefaultPostLimiter allows 2 posts a minute and 20 an hour.
func DefaultPostLimiter() *PostLimiter { return NewPostLimiter(2, 20) }

// Allow reports whether a post may go out at now.
func (l *PostLimiter) Allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.perMinute = keepAfter(l.perMinute, now.Add(-time.Minute))
	l.perHour = keepAfter(l.perHour, now.Add(-time.Hour))

	if l.maxPerMinute > 0 && len(l.perMinute) >= l.maxPerMinute {
		return false
	}
	if l.maxPerHour > 0 && len(l.perHour) >= l.maxPerHour {
		return false
	}
	return true
}

// Record notes a post made at now. Call after a successful publish.
func (l *PostLimiter) Record(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.perMinute = append(l.perMinute, now)
	l.perHour = append(l.perHour, now)
}

func keepAfter(ts []time.Time, cut time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cut) {
		i++
	}
	return ts[i:]
}
