package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/alimkdd/retry-engine/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const failureWindow = time.Hour

// incrScript increments the counter and resets its expiry atomically, so
// the failure window always slides forward from the latest failure.
var incrScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
redis.call("EXPIRE", KEYS[1], ARGV[1])
return current
`)

var _ ratelimit.FailureLimiter = (*FailureLimiter)(nil)

// FailureLimiter is a per-user failure counter in a shared Redis store.
type FailureLimiter struct {
	client *goredis.Client
	window time.Duration
	script *goredis.Script
}

func NewFailureLimiter(client *goredis.Client) (*FailureLimiter, error) {
	return newFailureLimiter(client, failureWindow)
}

func newFailureLimiter(client *goredis.Client, window time.Duration) (*FailureLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if window <= 0 {
		window = failureWindow
	}

	return &FailureLimiter{
		client: client,
		window: window,
		script: incrScript,
	}, nil
}

// IncrementFailure bumps the user's failure counter and slides the expiry
// window forward. Returns the counter value after the increment.
func (l *FailureLimiter) IncrementFailure(ctx context.Context, userID int64) (int64, error) {
	if l == nil || l.client == nil || l.script == nil {
		return 0, fmt.Errorf("failure limiter is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	count, err := l.script.Run(ctx, l.client, []string{failureKey(userID)}, int(l.window.Seconds())).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment failure counter: %w", err)
	}

	return count, nil
}

// GetFailures returns the current counter value, or 0 when the key is
// absent or expired.
func (l *FailureLimiter) GetFailures(ctx context.Context, userID int64) (int64, error) {
	if l == nil || l.client == nil {
		return 0, fmt.Errorf("failure limiter is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	count, err := l.client.Get(ctx, failureKey(userID)).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read failure counter: %w", err)
	}

	return count, nil
}

func failureKey(userID int64) string {
	return fmt.Sprintf("user:%d:failures", userID)
}
