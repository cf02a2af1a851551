package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alimkdd/retry-engine/internal/domain"
	"go.uber.org/zap"
)

const persistTimeout = 2 * time.Second

// StateStore persists breaker transitions for audit and rehydration.
type StateStore interface {
	Upsert(ctx context.Context, gateway string, state string, now time.Time) error
	GetAll(ctx context.Context) ([]domain.CircuitBreakerStateRecord, error)
}

// Registry owns the live per-gateway breaker policies. Concurrent
// get-or-create for the same gateway always yields the same policy.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]*Policy

	config Config
	store  StateStore
	logger *zap.Logger

	onTransition func(gateway string, from, to State)
	onFailure    func(gateway string)
}

func NewRegistry(config Config, store StateStore, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		policies: make(map[string]*Policy),
		config:   config.withDefaults(),
		store:    store,
		logger:   logger,
	}
}

// Config returns the breaker configuration shared by all gateways.
func (r *Registry) Config() Config {
	return r.config
}

// SetTransitionHook installs an observer invoked on every breaker
// transition, in addition to persistence. Call before the first Get.
func (r *Registry) SetTransitionHook(hook func(gateway string, from, to State)) {
	r.onTransition = hook
}

// SetFailureHook installs an observer invoked on every recorded gateway
// failure. Call before the first RecordFailure.
func (r *Registry) SetFailureHook(hook func(gateway string)) {
	r.onFailure = hook
}

// RecordFailure notes a terminally failed attempt against a gateway for
// logging and metrics. State transitions are driven by Execute, which
// already counted this failure; RecordFailure never moves the breaker.
func (r *Registry) RecordFailure(gateway string) {
	r.logger.Warn("gateway failure recorded", zap.String("gateway", gateway))
	if r.onFailure != nil {
		r.onFailure(gateway)
	}
}

// Get returns the live breaker for a gateway, creating it on first use.
func (r *Registry) Get(gateway string) *Policy {
	r.mu.RLock()
	policy, ok := r.policies[gateway]
	r.mu.RUnlock()
	if ok {
		return policy
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double check: another goroutine may have created it meanwhile.
	if policy, ok := r.policies[gateway]; ok {
		return policy
	}

	policy = NewPolicy(gateway, r.config)
	policy.onTransition = r.persistTransition
	r.policies[gateway] = policy
	return policy
}

// Rehydrate restores in-memory breaker state from the last persisted audit
// rows. Breakers persisted as Open or HalfOpen resume their cooldown from
// the recorded last failure time.
func (r *Registry) Rehydrate(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	records, err := r.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted breaker state: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range records {
		policy := NewPolicy(record.Gateway, r.config)
		policy.onTransition = r.persistTransition

		switch record.State {
		case StateOpen.String(), StateHalfOpen.String():
			policy.state = StateOpen
			policy.openedAt = record.LastFailureTime
		default:
			// Closed rows start fresh.
		}

		r.policies[record.Gateway] = policy
		r.logger.Info("breaker state rehydrated",
			zap.String("gateway", record.Gateway),
			zap.String("state", policy.state.String()),
		)
	}

	return nil
}

func (r *Registry) persistTransition(gateway string, from, to State, at time.Time) {
	r.logger.Info("circuit breaker transition",
		zap.String("gateway", gateway),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)

	if r.onTransition != nil {
		r.onTransition(gateway, from, to)
	}

	if r.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := r.store.Upsert(ctx, gateway, to.String(), at); err != nil {
		r.logger.Error("failed to persist breaker transition",
			zap.String("gateway", gateway),
			zap.String("state", to.String()),
			zap.Error(err),
		)
	}
}
