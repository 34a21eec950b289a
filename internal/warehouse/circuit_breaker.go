package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	apperrors "github.com/bizgraph/registry-analytics/internal/errors"
)

// CircuitBreakerConfig defines circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxRequests   uint32        // Max requests allowed in half-open state
	Interval      time.Duration // Window for counting failures
	Timeout       time.Duration // Duration circuit stays open before trying recovery
	ReadyToTrip   func(counts gobreaker.Counts) bool
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig provides sensible defaults
var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests: 1,
	Interval:    10 * time.Second,
	Timeout:     30 * time.Second,
	ReadyToTrip: func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 3 && (counts.ConsecutiveFailures >= 5 || failureRatio >= 0.6)
	},
}

// Executor is the execution contract the breaker wraps
type Executor interface {
	Execute(ctx context.Context, sqlText string, params []interface{}) ([]Row, error)
}

// BreakerClient wraps a warehouse executor with circuit breaker protection
type BreakerClient struct {
	client  Executor
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerClient creates a circuit-breaker-wrapped warehouse executor
func NewBreakerClient(client Executor, name string, config CircuitBreakerConfig) *BreakerClient {
	settings := gobreaker.Settings{
		Name:          name,
		MaxRequests:   config.MaxRequests,
		Interval:      config.Interval,
		Timeout:       config.Timeout,
		ReadyToTrip:   config.ReadyToTrip,
		OnStateChange: config.OnStateChange,
		// A rejected query is the renderer's bug, not warehouse trouble;
		// it must not open the circuit
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if enhanced, ok := err.(*apperrors.EnhancedError); ok {
				return enhanced.Code == apperrors.ErrCodeQueryRejected
			}
			return false
		},
	}

	return &BreakerClient{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Execute wraps the underlying Execute with circuit breaker protection
func (cb *BreakerClient) Execute(ctx context.Context, sqlText string, params []interface{}) ([]Row, error) {
	result, err := cb.breaker.Execute(func() (interface{}, error) {
		return cb.client.Execute(ctx, sqlText, params)
	})

	if err != nil {
		if enhanced, ok := err.(*apperrors.EnhancedError); ok {
			return nil, enhanced
		}
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeUpstreamUnavailable, "Warehouse temporarily unavailable").
				WithSuggestion("The warehouse is failing and requests are being shed. Retry shortly.")
		}
		return nil, apperrors.NewUpstreamExecutionError(fmt.Errorf("circuit breaker: %w", err))
	}

	return result.([]Row), nil
}

// State returns the current state of the circuit breaker
func (cb *BreakerClient) State() gobreaker.State {
	return cb.breaker.State()
}

// Counts returns the current failure counts
func (cb *BreakerClient) Counts() gobreaker.Counts {
	return cb.breaker.Counts()
}
