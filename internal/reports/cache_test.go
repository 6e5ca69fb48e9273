package reports

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*Cache, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	return cache, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestFetchJSONPopulatesAndServesFromCache(t *testing.T) {
	cache, cleanup := newTestCache(t)
	defer cleanup()
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return Report{DateRange: DateRange{From: "2026-01-01", To: "2026-01-31"}}, nil
	}

	key, err := cache.BuildKey(ctx, KeyStatistics(7, "2026-01-01", "2026-01-31"))
	if err != nil {
		t.Fatalf("build key: %v", err)
	}

	var first Report
	if err := cache.FetchJSON(ctx, key, &first, loader); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	var second Report
	if err := cache.FetchJSON(ctx, key, &second, loader); err != nil {
		t.Fatalf("fetch cached: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one loader call, got %d", calls)
	}
	if second.DateRange.From != "2026-01-01" {
		t.Fatalf("cached payload mangled: %+v", second)
	}
}

func TestBumpInvalidatesEveryKey(t *testing.T) {
	cache, cleanup := newTestCache(t)
	defer cleanup()
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, KeyStatistics(7, "-", "-"))
	if err != nil {
		t.Fatalf("build key: %v", err)
	}
	if err := cache.Bump(ctx); err != nil {
		t.Fatalf("bump: %v", err)
	}
	after, err := cache.BuildKey(ctx, KeyStatistics(7, "-", "-"))
	if err != nil {
		t.Fatalf("build key: %v", err)
	}
	if before == after {
		t.Fatalf("bump must rotate the key, got %s twice", before)
	}
}

func TestNilCacheStillLoads(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, KeyStatistics(7, "-", "-"))
	if err != nil {
		t.Fatalf("build key: %v", err)
	}
	var report Report
	loader := func(context.Context) (any, error) {
		return Report{DateRange: DateRange{From: "x"}}, nil
	}
	if err := cache.FetchJSON(ctx, key, &report, loader); err != nil {
		t.Fatalf("nil cache fetch: %v", err)
	}
	if report.DateRange.From != "x" {
		t.Fatalf("loader result lost: %+v", report)
	}
	if err := cache.Bump(ctx); err != nil {
		t.Fatalf("nil cache bump: %v", err)
	}
}
