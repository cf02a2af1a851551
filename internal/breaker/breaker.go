// Package breaker guards payment gateway calls with a per-gateway circuit
// breaker. The in-memory breaker answers all gating decisions; every state
// transition is written through to storage for audit.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute when the call is rejected without
// reaching the gateway.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker state. String values match the persisted audit rows.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// Config controls when a breaker opens and how long it stays open.
type Config struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

const (
	defaultFailureThreshold = 5
	defaultResetTimeout     = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = defaultResetTimeout
	}
	return c
}

// Policy is the live breaker for a single gateway name.
type Policy struct {
	mu sync.Mutex

	gateway string
	config  Config

	state               State
	consecutiveFailures int
	openedAt            time.Time
	probeInFlight       bool

	now          func() time.Time
	onTransition func(gateway string, from, to State, now time.Time)
}

type transition struct {
	from, to State
	at       time.Time
}

// NewPolicy creates a closed breaker for a gateway.
func NewPolicy(gateway string, config Config) *Policy {
	return &Policy{
		gateway: gateway,
		config:  config.withDefaults(),
		state:   StateClosed,
		now:     time.Now,
	}
}

// Execute runs fn under the breaker. When the circuit is open the call
// fails fast with ErrCircuitOpen and fn is never invoked. Any other error
// returned by fn counts as a failure toward opening the circuit.
func (p *Policy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	allowed, tr := p.allow()
	p.notify(tr)
	if !allowed {
		return ErrCircuitOpen
	}

	err := fn(ctx)
	if err != nil {
		p.notify(p.recordFailure())
	} else {
		p.notify(p.recordSuccess())
	}
	return err
}

// State returns the current state, applying the open-to-half-open
// transition if the cooldown has elapsed.
func (p *Policy) State() State {
	p.mu.Lock()
	tr := p.refreshLocked()
	state := p.state
	p.mu.Unlock()

	p.notify(tr)
	return state
}

func (p *Policy) allow() (bool, *transition) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tr := p.refreshLocked()

	switch p.state {
	case StateOpen:
		return false, tr
	case StateHalfOpen:
		if p.probeInFlight {
			return false, tr
		}
		p.probeInFlight = true
		return true, tr
	default:
		return true, tr
	}
}

func (p *Policy) recordSuccess() *transition {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateClosed:
		p.consecutiveFailures = 0
		return nil
	case StateHalfOpen:
		return p.transitionLocked(StateClosed)
	default:
		return nil
	}
}

func (p *Policy) recordFailure() *transition {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateClosed:
		p.consecutiveFailures++
		if p.consecutiveFailures >= p.config.FailureThreshold {
			return p.transitionLocked(StateOpen)
		}
		return nil
	case StateHalfOpen:
		return p.transitionLocked(StateOpen)
	default:
		return nil
	}
}

// refreshLocked moves an open breaker to half-open once the cooldown has
// elapsed. Caller holds the mutex.
func (p *Policy) refreshLocked() *transition {
	if p.state == StateOpen && p.now().Sub(p.openedAt) >= p.config.ResetTimeout {
		return p.transitionLocked(StateHalfOpen)
	}
	return nil
}

func (p *Policy) transitionLocked(to State) *transition {
	from := p.state
	p.state = to

	switch to {
	case StateClosed:
		p.consecutiveFailures = 0
		p.probeInFlight = false
	case StateOpen:
		p.openedAt = p.now()
		p.consecutiveFailures = 0
		p.probeInFlight = false
	case StateHalfOpen:
		p.probeInFlight = false
	}

	return &transition{from: from, to: to, at: p.now()}
}

// notify fires the transition hook outside the mutex so the hook may block
// on storage without holding up concurrent calls.
func (p *Policy) notify(tr *transition) {
	if tr == nil || p.onTransition == nil {
		return
	}
	p.onTransition(p.gateway, tr.from, tr.to, tr.at)
}
