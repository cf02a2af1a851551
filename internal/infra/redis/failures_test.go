package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestFailureLimiterIncrementAndGet(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedis(t)
	_ = mr

	limiter, err := NewFailureLimiter(rdb)
	if err != nil {
		t.Fatalf("NewFailureLimiter() error = %v", err)
	}

	count, err := limiter.IncrementFailure(context.Background(), 7)
	if err != nil {
		t.Fatalf("IncrementFailure() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("IncrementFailure() = %d, want 1", count)
	}

	count, err = limiter.IncrementFailure(context.Background(), 7)
	if err != nil {
		t.Fatalf("IncrementFailure() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("IncrementFailure() = %d, want 2", count)
	}

	got, err := limiter.GetFailures(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetFailures() error = %v", err)
	}
	if got != 2 {
		t.Fatalf("GetFailures() = %d, want 2", got)
	}
}

func TestFailureLimiterMissingKeyIsZero(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedis(t)

	limiter, err := NewFailureLimiter(rdb)
	if err != nil {
		t.Fatalf("NewFailureLimiter() error = %v", err)
	}

	got, err := limiter.GetFailures(context.Background(), 99)
	if err != nil {
		t.Fatalf("GetFailures() error = %v", err)
	}
	if got != 0 {
		t.Fatalf("GetFailures() = %d, want 0 for absent key", got)
	}
}

func TestFailureLimiterWindowSlidesOnIncrement(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedis(t)

	limiter, err := newFailureLimiter(rdb, time.Hour)
	if err != nil {
		t.Fatalf("newFailureLimiter() error = %v", err)
	}

	if _, err := limiter.IncrementFailure(context.Background(), 7); err != nil {
		t.Fatalf("IncrementFailure() error = %v", err)
	}

	// Move close to expiry, then fail again: the window must restart.
	mr.FastForward(59 * time.Minute)
	if _, err := limiter.IncrementFailure(context.Background(), 7); err != nil {
		t.Fatalf("IncrementFailure() error = %v", err)
	}

	mr.FastForward(59 * time.Minute)
	got, err := limiter.GetFailures(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetFailures() error = %v", err)
	}
	if got != 2 {
		t.Fatalf("GetFailures() = %d, want 2 inside the slid window", got)
	}

	mr.FastForward(2 * time.Minute)
	got, err = limiter.GetFailures(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetFailures() error = %v", err)
	}
	if got != 0 {
		t.Fatalf("GetFailures() = %d, want 0 after expiry", got)
	}
}

func TestFailureLimiterIsolatesUsers(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedis(t)

	limiter, err := NewFailureLimiter(rdb)
	if err != nil {
		t.Fatalf("NewFailureLimiter() error = %v", err)
	}

	if _, err := limiter.IncrementFailure(context.Background(), 1); err != nil {
		t.Fatalf("IncrementFailure() error = %v", err)
	}

	got, err := limiter.GetFailures(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetFailures() error = %v", err)
	}
	if got != 0 {
		t.Fatalf("GetFailures() = %d, want 0 for other user", got)
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return mr, rdb
}
