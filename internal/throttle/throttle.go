// Package throttle implements the layered protection in front of the
// login, registration and refresh endpoints: a hard request cap per
// window, plus a progressive slow-down that kicks in below the cap.
package throttle

import (
	"context"
	"errors"
	"time"
)

// ErrRateLimited is returned once a key exceeds the hard cap for the
// current window. Always recoverable after the window rolls over.
var ErrRateLimited = errors.New("too many requests")

// Counter is the shared attempt store. Incr bumps the counter for key,
// starting a fresh window when none exists, and returns the count within
// the current window. Increments are atomic per key; exactness at the
// boundary is best-effort since rate limiting is inherently approximate.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Close() error
}

type Policy struct {
	Window     time.Duration
	Max        int64
	DelayAfter int64
	DelayStep  time.Duration
	MaxDelay   time.Duration
}

// Gate applies one Policy to one endpoint class. Keys from different
// classes never collide because the class name prefixes the counter key.
type Gate struct {
	class   string
	policy  Policy
	counter Counter
}

func NewGate(class string, policy Policy, counter Counter) *Gate {
	return &Gate{
		class:   class,
		policy:  policy,
		counter: counter,
	}
}

// Check records one attempt for key and reports the verdict: a non-nil
// error once the hard cap is exceeded, otherwise the delay to impose
// before handling the request (zero below the slow-down threshold).
func (g *Gate) Check(ctx context.Context, key string) (time.Duration, error) {
	count, err := g.counter.Incr(ctx, g.class+":"+key, g.policy.Window)
	if err != nil {
		return 0, err
	}

	if count > g.policy.Max {
		return 0, ErrRateLimited
	}

	if count > g.policy.DelayAfter {
		delay := time.Duration(count-g.policy.DelayAfter) * g.policy.DelayStep
		if delay > g.policy.MaxDelay {
			delay = g.policy.MaxDelay
		}
		return delay, nil
	}

	return 0, nil
}
