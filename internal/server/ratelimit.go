package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultMutationsPerMinute = 60

// mutationLimiter holds one token bucket per signed-in user.
type mutationLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	clock    func() time.Time
	limiters map[string]*rate.Limiter
}

func newMutationLimiter(perMinute int, clock func() time.Time) *mutationLimiter {
	if perMinute <= 0 {
		perMinute = defaultMutationsPerMinute
	}
	if clock == nil {
		clock = time.Now
	}
	return &mutationLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		clock:    clock,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *mutationLimiter) allow(userID string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = limiter
	}
	l.mu.Unlock()
	return limiter.AllowN(l.clock(), 1)
}
