package rate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MultiLimiter permite distintos límites por endpoint compartiendo backend.
type MultiLimiter interface {
	AllowWithLimits(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Factory construye un Limiter para una configuración limit+window.
type Factory func(limit int, window time.Duration) Limiter

// Pool cachea un Limiter por configuración.
type Pool struct {
	factory  Factory
	mu       sync.RWMutex
	limiters map[string]Limiter
}

func NewPool(factory Factory) *Pool {
	return &Pool{factory: factory, limiters: make(map[string]Limiter)}
}

// For retorna (o crea) el limiter de la configuración.
func (p *Pool) For(limit int, window time.Duration) Limiter {
	configKey := fmt.Sprintf("%d:%s", limit, window)

	p.mu.RLock()
	l, ok := p.limiters[configKey]
	p.mu.RUnlock()
	if ok {
		return l
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// double-check
	if l, ok = p.limiters[configKey]; !ok {
		l = p.factory(limit, window)
		p.limiters[configKey] = l
	}
	return l
}

func (p *Pool) AllowWithLimits(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	return p.For(limit, window).Allow(ctx, key)
}
