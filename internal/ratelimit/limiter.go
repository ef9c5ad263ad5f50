package ratelimit

import (
	"fmt"
	"sync/atomic"
	"time"

	"metergate.org/internal/auth"
	"metergate.org/internal/obs"
)

// sweepEvery is the number of admissions between opportunistic sweeps of
// stale counters.
const sweepEvery = 1024

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	// Window is the binding window: the one that denied the request, or the
	// configured window with the least headroom when allowed.
	Window    Window
	Limit     int64
	Current   int64
	Remaining int64
	ResetIn   time.Duration
}

// Limited reports whether any ceiling applied to the decision.
func (d Decision) Limited() bool { return d.Limit > 0 }

// ResetSeconds returns ResetIn in whole seconds for response headers.
func (d Decision) ResetSeconds() int64 { return int64(d.ResetIn / time.Second) }

// Limiter tracks request counts across rolling minute, hour and day windows
// per identity and endpoint, and rejects traffic exceeding the tier ceilings.
// Admit never blocks or sleeps.
type Limiter struct {
	store  CounterStore
	limits LimitSource
	now    func() time.Time
	admits atomic.Uint64
}

// LimiterOption configures Limiter behavior.
type LimiterOption func(*Limiter)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) LimiterOption {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// NewLimiter constructs a Limiter over the given counter store and limit
// source. Both are injected once at startup and shared process-wide.
func NewLimiter(store CounterStore, limits LimitSource, opts ...LimiterOption) *Limiter {
	l := &Limiter{store: store, limits: limits, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit decides whether the request may proceed. All three windows are
// incremented unconditionally, then the decision is made: denied as soon as
// any configured window's count exceeds that window's ceiling. A non-nil
// error indicates an internal counter fault; the decision is then a denial,
// the limiter fails closed, never open.
func (l *Limiter) Admit(identity, endpoint string, tier auth.Tier) (Decision, error) {
	now := l.now()
	limits := l.limits.LimitsFor(tier)

	counts := make(map[Window]int64, len(Windows))
	for _, w := range Windows {
		n, err := l.store.Incr(KeyAt(identity, endpoint, w, now))
		if err != nil {
			obs.RateLimitDenial(string(w))
			return Decision{
				Allowed: false,
				Window:  w,
				ResetIn: w.ResetIn(now),
			}, fmt.Errorf("ratelimit: counter access: %w", err)
		}
		counts[w] = n
	}

	if l.admits.Add(1)%sweepEvery == 0 {
		if _, err := l.store.Sweep(now); err != nil {
			obs.LogEntry(map[string]any{
				"level": "warn",
				"msg":   "rate counter sweep failed",
				"error": err.Error(),
			})
		}
	}

	for _, w := range Windows {
		limit := limits.ForWindow(w)
		if limit <= 0 {
			continue
		}
		if counts[w] > limit {
			obs.RateLimitDenial(string(w))
			return Decision{
				Allowed:   false,
				Window:    w,
				Limit:     limit,
				Current:   counts[w],
				Remaining: 0,
				ResetIn:   w.ResetIn(now),
			}, nil
		}
	}

	return l.allowedDecision(limits, counts, now), nil
}

// allowedDecision reports the configured window with the least headroom so
// callers can surface accurate limit headers.
func (l *Limiter) allowedDecision(limits Limits, counts map[Window]int64, now time.Time) Decision {
	decision := Decision{Allowed: true}
	for _, w := range Windows {
		limit := limits.ForWindow(w)
		if limit <= 0 {
			continue
		}
		remaining := limit - counts[w]
		if remaining < 0 {
			remaining = 0
		}
		if !decision.Limited() || remaining < decision.Remaining {
			decision.Window = w
			decision.Limit = limit
			decision.Current = counts[w]
			decision.Remaining = remaining
			decision.ResetIn = w.ResetIn(now)
		}
	}
	return decision
}
