package notify

import (
	"sync"

	"golang.org/x/time/rate"
)

// Push rate limits: a misbehaving schedule (or a burst of failing jobs)
// must not flood a user's push topic.
const (
	pushPerMinute = 10
	pushBurst     = 5
)

// pushLimiter enforces a per-user token bucket on outbound push
// notifications.
type pushLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newPushLimiter() *pushLimiter {
	return &pushLimiter{limiters: make(map[string]*rate.Limiter)}
}

func (p *pushLimiter) allow(userID string) bool {
	p.mu.Lock()
	lim, ok := p.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(pushPerMinute)/60.0), pushBurst)
		p.limiters[userID] = lim
	}
	p.mu.Unlock()
	return lim.Allow()
}
