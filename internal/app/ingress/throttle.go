package ingress

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
)

// Throttle enforces a per-user token bucket at the ingress edge, ahead of
// and independent from the domain cooldown/jail locks: a user hammering the
// webhook endpoint faster than the bucket refills is rejected at the start
// of Dispatch, before the idempotence guard and the command itself run,
// regardless of whether that command itself is on cooldown.
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewThrottle builds a Throttle allowing ratePerSecond sustained events per
// user with the given burst. A non-positive ratePerSecond disables
// throttling entirely (Allow always succeeds), so ingress can be run
// without a configured limit in local/dev deployments.
func NewThrottle(ratePerSecond float64, burst int) *Throttle {
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(ratePerSecond),
		burst:    burst,
	}
}

func (t *Throttle) limiterFor(userID string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[userID]
	if !ok {
		l = rate.NewLimiter(t.rps, t.burst)
		t.limiters[userID] = l
	}
	return l
}

// Allow reports whether userID may proceed right now, consuming a token if
// so.
func (t *Throttle) Allow(userID string) bool {
	if t == nil || t.rps <= 0 {
		return true
	}
	return t.limiterFor(userID).Allow()
}

// Check is Allow rendered as a ServiceError, for direct use in Dispatch.
func (t *Throttle) Check(userID string) error {
	if t.Allow(userID) {
		return nil
	}
	return apperrors.NewRateLimited(userID)
}
