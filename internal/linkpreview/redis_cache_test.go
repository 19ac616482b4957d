package linkpreview

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCacheWithClient(client, ttl), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "https://example.com"); ok {
		t.Fatal("expected miss on empty cache")
	}

	stored := Preview{URL: "https://example.com", Title: "Example", SiteName: "example.com"}
	cache.Set(ctx, "https://example.com", stored)

	got, ok := cache.Get(ctx, "https://example.com")
	if !ok {
		t.Fatal("expected hit after set")
	}
	if got != stored {
		t.Fatalf("expected %+v, got %+v", stored, got)
	}
}

func TestRedisCacheExpires(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, "https://example.com", Preview{URL: "https://example.com"})
	mr.FastForward(2 * time.Minute)

	if _, ok := cache.Get(ctx, "https://example.com"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestRedisCacheIgnoresCorruptEntry(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)

	if err := mr.Set("preview:https://example.com", "not-json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, ok := cache.Get(context.Background(), "https://example.com"); ok {
		t.Fatal("corrupt entry should read as a miss")
	}
}
