package worker

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// OriginLimiter enforces per-origin politeness. Each origin carries its
// own dispatch state (last dispatch time, consecutive failures, base
// delay); that state is the only thing shared across concurrent fetch
// workers and every mutation happens under the origin's lock.
type OriginLimiter struct {
	mu            sync.Mutex
	origins       map[string]*originState
	defaultDelay  time.Duration
	maxDelay      time.Duration
	backoffFactor float64
}

type originState struct {
	mu           sync.Mutex
	limiter      *rate.Limiter
	baseDelay    time.Duration
	failures     int
	lastDispatch time.Time
}

// NewOriginLimiter creates a limiter with the given default inter-request
// delay, backoff cap and growth factor
func NewOriginLimiter(defaultDelay, maxDelay time.Duration, backoffFactor float64) *OriginLimiter {
	if backoffFactor < 1 {
		backoffFactor = 2.0
	}
	if maxDelay <= 0 {
		maxDelay = time.Minute
	}
	return &OriginLimiter{
		origins:       make(map[string]*originState),
		defaultDelay:  defaultDelay,
		maxDelay:      maxDelay,
		backoffFactor: backoffFactor,
	}
}

func (l *OriginLimiter) state(origin string) *originState {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.origins[origin]
	if !ok {
		st = &originState{
			limiter:   rate.NewLimiter(limitFor(l.defaultDelay), 1),
			baseDelay: l.defaultDelay,
		}
		l.origins[origin] = st
	}
	return st
}

// SetBaseDelay configures an origin's minimum inter-request delay.
// Strict or slow origins are configured higher than the default.
func (l *OriginLimiter) SetBaseDelay(origin string, delay time.Duration) {
	st := l.state(origin)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.baseDelay = delay
	st.limiter.SetLimit(limitFor(l.effectiveDelay(st)))
}

// RaiseBaseDelay lifts an origin's base delay, never lowering it. Used
// for robots.txt crawl-delay directives.
func (l *OriginLimiter) RaiseBaseDelay(origin string, delay time.Duration) {
	st := l.state(origin)
	st.mu.Lock()
	defer st.mu.Unlock()

	if delay > st.baseDelay {
		st.baseDelay = delay
		st.limiter.SetLimit(limitFor(l.effectiveDelay(st)))
	}
}

// Wait blocks until the origin's minimum inter-request delay has
// elapsed, then records the dispatch. Returns ctx.Err() on cancellation.
func (l *OriginLimiter) Wait(ctx context.Context, origin string) error {
	st := l.state(origin)

	if err := st.limiter.Wait(ctx); err != nil {
		return err
	}

	st.mu.Lock()
	st.lastDispatch = time.Now()
	st.mu.Unlock()
	return nil
}

// RecordSuccess resets the origin's backoff to its base delay
func (l *OriginLimiter) RecordSuccess(origin string) {
	st := l.state(origin)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.failures = 0
	st.limiter.SetLimit(limitFor(st.baseDelay))
}

// RecordFailure grows the origin's delay exponentially, capped at the
// configured maximum
func (l *OriginLimiter) RecordFailure(origin string) {
	st := l.state(origin)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.failures++
	st.limiter.SetLimit(limitFor(l.effectiveDelay(st)))
}

// Delay reports the origin's current effective inter-request delay
func (l *OriginLimiter) Delay(origin string) time.Duration {
	st := l.state(origin)
	st.mu.Lock()
	defer st.mu.Unlock()
	return l.effectiveDelay(st)
}

// LastDispatch reports when the origin was last dispatched to
func (l *OriginLimiter) LastDispatch(origin string) time.Time {
	st := l.state(origin)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastDispatch
}

// effectiveDelay is base × factor^failures, capped. Callers hold st.mu.
func (l *OriginLimiter) effectiveDelay(st *originState) time.Duration {
	if st.failures == 0 {
		return st.baseDelay
	}
	base := st.baseDelay
	if base <= 0 {
		// Backoff still applies to origins with no base delay.
		base = 100 * time.Millisecond
	}
	delay := time.Duration(float64(base) * math.Pow(l.backoffFactor, float64(st.failures)))
	if delay > l.maxDelay || delay < 0 {
		return l.maxDelay
	}
	return delay
}

func limitFor(delay time.Duration) rate.Limit {
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Every(delay)
}
