// Package health aggregates named health checks into a cached report,
// served by the API as /health.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pifleet.dev/pifleet/internal/clock"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check represents a single health check result.
type Check struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration_ms"`
}

// Report represents the overall health report.
type Report struct {
	Status    Status           `json:"status"`
	Checks    map[string]Check `json:"checks"`
	Timestamp time.Time        `json:"timestamp"`
}

// CheckFunc is a function that performs a health check.
type CheckFunc func(ctx context.Context) Check

// Checker performs health checks, caching the report briefly so a polling
// load balancer doesn't hammer the fleet.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
	cache  *Report
	ttl    time.Duration
}

// NewChecker creates an empty health checker.
func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]CheckFunc),
		ttl:    5 * time.Second,
	}
}

// Register adds a health check.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// Check runs all health checks and returns a report. A cached report is
// returned while fresh.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	if c.cache != nil && time.Since(c.cache.Timestamp) < c.ttl {
		report := *c.cache
		c.mu.RUnlock()
		return report
	}
	c.mu.RUnlock()

	report := Report{
		Status:    StatusHealthy,
		Checks:    make(map[string]Check),
		Timestamp: clock.Now(),
	}

	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	c.mu.RUnlock()

	for name, fn := range checks {
		start := clock.Now()
		result := fn(ctx)
		result.Name = name
		result.LastChecked = start
		result.Duration = clock.Since(start)
		report.Checks[name] = result

		// Overall status is the worst individual status.
		switch result.Status {
		case StatusUnhealthy:
			report.Status = StatusUnhealthy
		case StatusDegraded:
			if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		}
	}

	c.mu.Lock()
	c.cache = &report
	c.mu.Unlock()
	return report
}

// Handler returns an HTTP handler serving the health report. Unhealthy
// reports get a 503 so load balancers can act on the status code alone.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := c.Check(r.Context())

		code := http.StatusOK
		if report.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(report)
	})
}

// FleetCheck builds a CheckFunc over a status snapshot function: healthy
// when every instance responds, degraded on partial failure, unhealthy
// when none respond.
func FleetCheck(reachable func(ctx context.Context) (ok, total int)) CheckFunc {
	return func(ctx context.Context) Check {
		ok, total := reachable(ctx)
		check := Check{Message: fmt.Sprintf("%d/%d instances reachable", ok, total)}
		switch {
		case total == 0:
			check.Status = StatusUnhealthy
			check.Message = "no instances configured"
		case ok == total:
			check.Status = StatusHealthy
		case ok == 0:
			check.Status = StatusUnhealthy
		default:
			check.Status = StatusDegraded
		}
		return check
	}
}
