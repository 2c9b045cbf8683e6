// Package ratelimit spaces outgoing exchange requests so that two calls for
// the same (exchange, endpoint) pair are never closer than a minimum interval.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the spacing applied when no override is configured.
const DefaultInterval = 100 * time.Millisecond

type key struct {
	exchange string
	endpoint string
}

type slot struct {
	limiter *rate.Limiter
	last    time.Time
}

// Limiter owns the per-key request history for one gateway instance.
type Limiter struct {
	mu        sync.Mutex
	interval  time.Duration
	overrides map[string]time.Duration
	slots     map[key]*slot
	now       func() time.Time
}

// New returns a Limiter spacing calls by interval. A non-positive interval
// falls back to DefaultInterval.
func New(interval time.Duration) *Limiter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Limiter{
		interval:  interval,
		overrides: make(map[string]time.Duration),
		slots:     make(map[key]*slot),
		now:       time.Now,
	}
}

// SetInterval overrides the spacing for every endpoint of one exchange.
// Zero disables throttling for that exchange.
func (l *Limiter) SetInterval(exchange string, interval time.Duration) {
	if interval < 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overrides[exchange] = interval
	for k, s := range l.slots {
		if k.exchange == exchange {
			s.limiter.SetLimit(limitFor(interval))
		}
	}
}

// Interval returns the spacing in force for an exchange.
func (l *Limiter) Interval(exchange string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.intervalLocked(exchange)
}

func (l *Limiter) intervalLocked(exchange string) time.Duration {
	if d, ok := l.overrides[exchange]; ok {
		return d
	}
	return l.interval
}

func limitFor(interval time.Duration) rate.Limit {
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}

// Acquire blocks until a request for (exchange, endpoint) may proceed and
// returns how long the caller waited. Reservations for one key are handed
// out in call order, so concurrent callers wait cumulatively. The only
// error is the context's, in which case the caller must not send the request.
func (l *Limiter) Acquire(ctx context.Context, exchange, endpoint string) (time.Duration, error) {
	k := key{exchange: exchange, endpoint: endpoint}

	l.mu.Lock()
	s, ok := l.slots[k]
	if !ok {
		s = &slot{limiter: rate.NewLimiter(limitFor(l.intervalLocked(exchange)), 1)}
		l.slots[k] = s
	}
	start := l.now()
	r := s.limiter.ReserveN(start, 1)
	l.mu.Unlock()

	delay := r.DelayFrom(start)
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			r.Cancel()
			return 0, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		r.Cancel()
		return 0, err
	}

	l.mu.Lock()
	s.last = l.now()
	l.mu.Unlock()
	return delay, nil
}

// LastRequest returns when the most recent request for the key was let through.
func (l *Limiter) LastRequest(exchange, endpoint string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key{exchange: exchange, endpoint: endpoint}]
	if !ok || s.last.IsZero() {
		return time.Time{}, false
	}
	return s.last, true
}
