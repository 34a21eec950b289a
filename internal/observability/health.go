package observability

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a health check for a component
type HealthCheck struct {
	Name        string                 `json:"name"`
	Status      HealthStatus           `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration_ms"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// HealthChecker performs health checks on dependencies
type HealthChecker struct {
	checks map[string]HealthCheckFunc
	cache  map[string]*HealthCheck
	mu     sync.Mutex
	ttl    time.Duration
}

// HealthCheckFunc is a function that performs a health check
type HealthCheckFunc func(context.Context) *HealthCheck

// NewHealthChecker creates a new health checker
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks: make(map[string]HealthCheckFunc),
		cache:  make(map[string]*HealthCheck),
		ttl:    5 * time.Second, // Cache health checks for 5 seconds
	}
}

// Register registers a health check
func (hc *HealthChecker) Register(name string, check HealthCheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
}

// Check performs all health checks, serving cached results within the TTL
func (hc *HealthChecker) Check(ctx context.Context) map[string]*HealthCheck {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	results := make(map[string]*HealthCheck)
	now := time.Now()

	for name, checkFunc := range hc.checks {
		if cached, exists := hc.cache[name]; exists {
			if now.Sub(cached.LastChecked) < hc.ttl {
				results[name] = cached
				continue
			}
		}

		result := checkFunc(ctx)
		result.LastChecked = time.Now()

		hc.cache[name] = result
		results[name] = result
	}

	return results
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status    HealthStatus            `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Checks    map[string]*HealthCheck `json:"checks"`
	Metadata  map[string]interface{}  `json:"metadata,omitempty"`
}

// GetHealthResponse returns a complete health response
func (hc *HealthChecker) GetHealthResponse(ctx context.Context) *HealthResponse {
	checks := hc.Check(ctx)

	status := HealthStatusHealthy
	for _, check := range checks {
		switch check.Status {
		case HealthStatusUnhealthy:
			status = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if status == HealthStatusHealthy {
				status = HealthStatusDegraded
			}
		}
	}

	return &HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Metadata: map[string]interface{}{
			"service": "registry-analytics",
		},
	}
}

// Common health check functions

// WarehouseHealthCheck creates a health check for warehouse connectivity
func WarehouseHealthCheck(pingFunc func(context.Context) error) HealthCheckFunc {
	return pingCheck("warehouse", 2*time.Second, pingFunc)
}

// RedisHealthCheck creates a health check for Redis connectivity
func RedisHealthCheck(pingFunc func(context.Context) error) HealthCheckFunc {
	return pingCheck("redis", 2*time.Second, pingFunc)
}

func pingCheck(name string, timeout time.Duration, pingFunc func(context.Context) error) HealthCheckFunc {
	return func(ctx context.Context) *HealthCheck {
		start := time.Now()

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := pingFunc(ctx)
		duration := time.Since(start)

		if err != nil {
			return &HealthCheck{
				Name:     name,
				Status:   HealthStatusUnhealthy,
				Message:  fmt.Sprintf("%s connection failed: %v", name, err),
				Duration: duration,
			}
		}

		return &HealthCheck{
			Name:     name,
			Status:   HealthStatusHealthy,
			Message:  fmt.Sprintf("%s connection successful", name),
			Duration: duration,
			Metadata: map[string]interface{}{
				"response_time_ms": duration.Milliseconds(),
			},
		}
	}
}

// MemoryHealthCheck creates a health check for memory usage
func MemoryHealthCheck(getMemoryUsage func() (used, total uint64)) HealthCheckFunc {
	return func(ctx context.Context) *HealthCheck {
		used, total := getMemoryUsage()
		usagePercent := float64(used) / float64(total) * 100

		status := HealthStatusHealthy
		message := "Memory usage normal"

		if usagePercent > 90 {
			status = HealthStatusUnhealthy
			message = "Memory usage critical"
		} else if usagePercent > 75 {
			status = HealthStatusDegraded
			message = "Memory usage high"
		}

		return &HealthCheck{
			Name:    "memory",
			Status:  status,
			Message: message,
			Metadata: map[string]interface{}{
				"used_bytes":    used,
				"total_bytes":   total,
				"usage_percent": usagePercent,
			},
		}
	}
}
