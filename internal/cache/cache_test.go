package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func exercise(t *testing.T, c Client) {
	t.Helper()
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("get = %q, %v", got, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestMemoryClient(t *testing.T) {
	c := NewMemory("iam", time.Minute)
	exercise(t, c)

	st, _ := c.Stats(context.Background())
	if st.Driver != "memory" || st.Hits != 1 || st.Misses != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestMemoryClientExpiry(t *testing.T) {
	c := NewMemory("", 0)
	ctx := context.Background()
	_ = c.Set(ctx, "short", "x", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if _, err := c.Get(ctx, "short"); !IsNotFound(err) {
		t.Fatalf("expected expired key, got %v", err)
	}
}

func TestRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisWithClient(rdb, "iam", time.Minute)
	defer c.Close()

	exercise(t, c)

	_ = c.Set(context.Background(), "ttl", "x", 0)
	if !mr.Exists("iam:ttl") {
		t.Fatal("expected prefixed key in redis")
	}
	if ttl := mr.TTL("iam:ttl"); ttl != time.Minute {
		t.Fatalf("expected default ttl, got %v", ttl)
	}
}

func TestNewUnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), Config{Driver: "memcached"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
