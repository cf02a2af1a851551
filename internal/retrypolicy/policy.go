// Package retrypolicy resolves per-error-type retry policies and computes
// the delay before the next attempt.
package retrypolicy

import (
	"fmt"
	"math"
	"time"

	"github.com/alimkdd/retry-engine/internal/domain"
)

const maxJitterMillis = 1000

// Policy is the retry budget for one classified error type.
type Policy struct {
	MaxAttempts        int
	Delays             []time.Duration
	ExponentialBackoff bool
}

// IsZero reports whether the policy disallows retries entirely.
func (p Policy) IsZero() bool {
	return p.MaxAttempts == 0 && len(p.Delays) == 0
}

// Table maps classified error types to their retry policies. Loaded once
// at startup and read-only afterwards.
type Table map[domain.ErrorType]Policy

// Resolver answers policy lookups with a peak-hours adjustment applied.
type Resolver struct {
	table Table
	now   func() time.Time
}

func NewResolver(table Table, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{table: table, now: now}
}

// Resolve returns the policy for an error type. Error types without a
// configured policy resolve to the zero policy: do not retry.
func (r *Resolver) Resolve(errorType domain.ErrorType) Policy {
	policy, ok := r.table[errorType]
	if !ok {
		return Policy{}
	}
	return AdjustForPeakHours(policy, r.now().UTC())
}

// AdjustForPeakHours reduces the retry budget by one attempt, floored at
// one, during the high-load windows [12:00,14:00) and [18:00,20:00).
func AdjustForPeakHours(policy Policy, now time.Time) Policy {
	hour := now.Hour()
	if (hour >= 12 && hour < 14) || (hour >= 18 && hour < 20) {
		policy.MaxAttempts = max(1, policy.MaxAttempts-1)
	}
	return policy
}

// Delay computes the wait before the next attempt. attemptNumber indexes
// the delay table. With exponential backoff the base delay is doubled per
// attempt and a uniform jitter in [0, 1s) is added, sourced from randIntn.
func Delay(policy Policy, attemptNumber int, randIntn func(n int) int) (time.Duration, error) {
	if attemptNumber < 0 || attemptNumber >= len(policy.Delays) {
		return 0, fmt.Errorf("attempt %d outside delay table of %d entries", attemptNumber, len(policy.Delays))
	}

	base := policy.Delays[attemptNumber]
	if !policy.ExponentialBackoff {
		return base, nil
	}

	exponential := time.Duration(float64(base) * math.Pow(2, float64(attemptNumber)))
	jitter := time.Duration(0)
	if randIntn != nil {
		jitter = time.Duration(randIntn(maxJitterMillis)) * time.Millisecond
	}

	return exponential + jitter, nil
}
