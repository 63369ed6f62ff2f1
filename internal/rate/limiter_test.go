package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rdb "github.com/redis/go-redis/v9"
)

func TestRedisLimiterFixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLimiter(client, "", 2, time.Minute)
	fixed := time.Date(2026, 1, 1, 10, 0, 30, 0, time.UTC)
	l.Now = func() time.Time { return fixed }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "1.2.3.4")
		if err != nil || !res.Allowed {
			t.Fatalf("hit %d: %+v, %v", i+1, res, err)
		}
	}
	res, err := l.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if res.Allowed || res.Remaining != 0 || res.RetryAfter <= 0 {
		t.Fatalf("third hit must be blocked: %+v", res)
	}

	// otra key no comparte contador
	if res, _ := l.Allow(ctx, "5.6.7.8"); !res.Allowed {
		t.Fatal("independent key must be allowed")
	}

	// ventana siguiente
	l.Now = func() time.Time { return fixed.Add(time.Minute) }
	if res, _ := l.Allow(ctx, "1.2.3.4"); !res.Allowed {
		t.Fatal("next window must reset the counter")
	}
}

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	l.Now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if res, _ := l.Allow(ctx, "k"); !res.Allowed {
			t.Fatalf("hit %d should pass", i+1)
		}
	}
	res, _ := l.Allow(ctx, "k")
	if res.Allowed || res.RetryAfter <= 0 {
		t.Fatalf("fourth hit must be blocked: %+v", res)
	}

	// un token se recarga cada 20s
	now = now.Add(21 * time.Second)
	if res, _ := l.Allow(ctx, "k"); !res.Allowed {
		t.Fatal("expected a refilled token")
	}
}

func TestPoolReusesLimiter(t *testing.T) {
	built := 0
	p := NewPool(func(limit int, window time.Duration) Limiter {
		built++
		return NewMemoryLimiter(limit, window)
	})
	a := p.For(5, time.Minute)
	b := p.For(5, time.Minute)
	c := p.For(10, time.Minute)
	if a != b || a == c || built != 2 {
		t.Fatalf("unexpected pooling: built=%d", built)
	}
	if res, err := p.AllowWithLimits(context.Background(), "x", 1, time.Second); err != nil || !res.Allowed {
		t.Fatalf("AllowWithLimits = %+v, %v", res, err)
	}
}
