package ratelimit

import "context"

// FailureLimiter tracks per-user gateway failures inside an expiring
// window. The window slides forward on every recorded failure.
type FailureLimiter interface {
	IncrementFailure(ctx context.Context, userID int64) (int64, error)
	GetFailures(ctx context.Context, userID int64) (int64, error)
}
