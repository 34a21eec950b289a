package warehouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizgraph/registry-analytics/internal/errors"
)

type stubExecutor struct {
	rows  []Row
	err   error
	calls int
}

func (s *stubExecutor) Execute(context.Context, string, []interface{}) ([]Row, error) {
	s.calls++
	return s.rows, s.err
}

func trippyConfig() CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig
	cfg.Timeout = time.Minute
	cfg.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}
	return cfg
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	stub := &stubExecutor{rows: []Row{{"cnt": int64(1)}}}
	cb := NewBreakerClient(stub, "warehouse-test", DefaultCircuitBreakerConfig)

	rows, err := cb.Execute(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestBreakerOpensOnRepeatedFailures(t *testing.T) {
	stub := &stubExecutor{err: errors.NewUpstreamExecutionError(fmt.Errorf("connection refused"))}
	cb := NewBreakerClient(stub, "warehouse-test", trippyConfig())

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(context.Background(), "SELECT 1", nil)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	// requests are shed without touching the executor
	before := stub.calls
	_, err := cb.Execute(context.Background(), "SELECT 1", nil)
	var enhanced *errors.EnhancedError
	require.ErrorAs(t, err, &enhanced)
	assert.Equal(t, errors.ErrCodeUpstreamUnavailable, enhanced.Code)
	assert.Equal(t, before, stub.calls)
}

func TestBreakerIgnoresRejectedQueries(t *testing.T) {
	stub := &stubExecutor{err: errors.NewQueryRejectedError(fmt.Errorf("syntax error"))}
	cb := NewBreakerClient(stub, "warehouse-test", trippyConfig())

	// a rejected query is a generator defect, not warehouse trouble; the
	// circuit must stay closed however often it happens
	for i := 0; i < 10; i++ {
		_, err := cb.Execute(context.Background(), "SELECT broken", nil)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, 10, stub.calls)
}
