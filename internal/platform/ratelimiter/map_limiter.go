package ratelimiter

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const evictEvery = 256

// MapLimiter keeps one token bucket per key (a signer address) and drops
// buckets that stayed idle longer than idleTTL.
type MapLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu    sync.Mutex
	byKey map[string]*entry
	hits  uint64
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New returns nil when rps or burst are not positive; a nil limiter never throttles.
func New(rps float64, burst int, idleTTL time.Duration) *MapLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &MapLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
		byKey:   make(map[string]*entry),
	}
}

// Allow consumes a token for key if one is available.
func (l *MapLimiter) Allow(key string) bool {
	lim := l.limiterFor(key)
	if lim == nil {
		return true
	}
	return lim.AllowN(l.now(), 1)
}

// Wait blocks until key may proceed or ctx ends.
func (l *MapLimiter) Wait(ctx context.Context, key string) error {
	lim := l.limiterFor(key)
	if lim == nil {
		return ctx.Err()
	}
	return lim.Wait(ctx)
}

// Len reports the number of tracked keys.
func (l *MapLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}

func (l *MapLimiter) limiterFor(key string) *rate.Limiter {
	if l == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.byKey[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now
	l.hits++
	if l.hits%evictEvery == 0 {
		l.evictLocked(now)
	}
	return e.limiter
}

func (l *MapLimiter) evictLocked(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, v := range l.byKey {
		if v.lastSeen.Before(cutoff) {
			delete(l.byKey, k)
		}
	}
}
