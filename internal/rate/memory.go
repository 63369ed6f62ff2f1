package rate

import (
	"context"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"
)

// MemoryLimiter es un token bucket por key: ráfaga de Max y recarga de
// Max tokens por Window. Las keys sin uso durante 2*Window se descartan.
type MemoryLimiter struct {
	Max    int
	Window time.Duration
	Now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	lim      *xrate.Limiter
	lastSeen time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:     max,
		Window:  window,
		Now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.Now()

	l.mu.Lock()
	l.sweep(now)
	b, ok := l.buckets[key]
	if !ok {
		every := l.Window / time.Duration(max(l.Max, 1))
		b = &bucket{lim: xrate.NewLimiter(xrate.Every(every), l.Max)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return Result{Allowed: false, RetryAfter: l.Window}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Result{Allowed: false, RetryAfter: delay, WindowTTL: l.Window}, nil
	}

	remaining := int64(b.lim.TokensAt(now))
	return Result{
		Allowed:     true,
		Remaining:   max(remaining, 0),
		WindowTTL:   l.Window,
		CurrentHits: int64(l.Max) - max(remaining, 0),
	}, nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.Window {
		return
	}
	l.lastSweep = now
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > 2*l.Window {
			delete(l.buckets, k)
		}
	}
}
