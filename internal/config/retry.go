package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alimkdd/retry-engine/internal/breaker"
	"github.com/alimkdd/retry-engine/internal/domain"
	"github.com/alimkdd/retry-engine/internal/retrypolicy"
)

// RetryConfig is the JSON shape of the retry policy file.
type RetryConfig struct {
	NetworkTimeout       *policyConfig  `json:"networkTimeout"`
	GatewayBusy          *policyConfig  `json:"gatewayBusy"`
	RateLimitExceeded    *policyConfig  `json:"rateLimitExceeded"`
	TemporaryServerError *policyConfig  `json:"temporaryServerError"`
	CircuitBreaker       *breakerConfig `json:"circuitBreaker"`
}

type policyConfig struct {
	MaxAttempts           int   `json:"maxAttempts"`
	DelaysInSeconds       []int `json:"delaysInSeconds"`
	UseExponentialBackoff bool  `json:"useExponentialBackoff"`
}

type breakerConfig struct {
	FailureThreshold    int `json:"failureThreshold"`
	ResetTimeoutSeconds int `json:"resetTimeoutSeconds"`
}

// LoadRetryConfig reads the policy file and builds the retry policy table
// and the circuit breaker configuration.
func LoadRetryConfig(path string) (retrypolicy.Table, breaker.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, breaker.Config{}, fmt.Errorf("failed to read retry config %q: %w", path, err)
	}

	var rc RetryConfig
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, breaker.Config{}, fmt.Errorf("failed to parse retry config %q: %w", path, err)
	}

	table := retrypolicy.Table{}
	for errType, pc := range map[domain.ErrorType]*policyConfig{
		domain.ErrorTypeNetworkTimeout:       rc.NetworkTimeout,
		domain.ErrorTypeGatewayBusy:          rc.GatewayBusy,
		domain.ErrorTypeRateLimitExceeded:    rc.RateLimitExceeded,
		domain.ErrorTypeTemporaryServerError: rc.TemporaryServerError,
	} {
		if pc == nil {
			continue
		}
		policy, err := pc.toPolicy()
		if err != nil {
			return nil, breaker.Config{}, fmt.Errorf("invalid policy for %s: %w", errType, err)
		}
		table[errType] = policy
	}

	bc := breaker.Config{}
	if rc.CircuitBreaker != nil {
		if rc.CircuitBreaker.FailureThreshold < 1 {
			return nil, breaker.Config{}, fmt.Errorf("circuitBreaker.failureThreshold must be at least 1")
		}
		if rc.CircuitBreaker.ResetTimeoutSeconds < 1 {
			return nil, breaker.Config{}, fmt.Errorf("circuitBreaker.resetTimeoutSeconds must be at least 1")
		}
		bc.FailureThreshold = rc.CircuitBreaker.FailureThreshold
		bc.ResetTimeout = time.Duration(rc.CircuitBreaker.ResetTimeoutSeconds) * time.Second
	}

	return table, bc, nil
}

func (pc *policyConfig) toPolicy() (retrypolicy.Policy, error) {
	if pc.MaxAttempts < 1 {
		return retrypolicy.Policy{}, fmt.Errorf("maxAttempts must be at least 1, got %d", pc.MaxAttempts)
	}
	if len(pc.DelaysInSeconds) < pc.MaxAttempts {
		return retrypolicy.Policy{}, fmt.Errorf("need %d delays, got %d", pc.MaxAttempts, len(pc.DelaysInSeconds))
	}

	delays := make([]time.Duration, 0, len(pc.DelaysInSeconds))
	for _, s := range pc.DelaysInSeconds {
		if s < 0 {
			return retrypolicy.Policy{}, fmt.Errorf("delays must be non-negative, got %d", s)
		}
		delays = append(delays, time.Duration(s)*time.Second)
	}

	return retrypolicy.Policy{
		MaxAttempts:        pc.MaxAttempts,
		Delays:             delays,
		ExponentialBackoff: pc.UseExponentialBackoff,
	}, nil
}
