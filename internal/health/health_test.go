package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticCheck(status Status) CheckFunc {
	return func(ctx context.Context) Check {
		return Check{Status: status}
	}
}

func TestChecker_AllHealthy(t *testing.T) {
	c := NewChecker()
	c.Register("a", staticCheck(StatusHealthy))
	c.Register("b", staticCheck(StatusHealthy))

	report := c.Check(context.Background())

	assert.Equal(t, StatusHealthy, report.Status)
	assert.Len(t, report.Checks, 2)
	assert.Equal(t, "a", report.Checks["a"].Name)
}

func TestChecker_WorstStatusWins(t *testing.T) {
	c := NewChecker()
	c.Register("ok", staticCheck(StatusHealthy))
	c.Register("limping", staticCheck(StatusDegraded))

	report := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)

	c2 := NewChecker()
	c2.Register("limping", staticCheck(StatusDegraded))
	c2.Register("down", staticCheck(StatusUnhealthy))

	report = c2.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
}

func TestChecker_CachesReport(t *testing.T) {
	calls := 0
	c := NewChecker()
	c.Register("counted", func(ctx context.Context) Check {
		calls++
		return Check{Status: StatusHealthy}
	})

	c.Check(context.Background())
	c.Check(context.Background())

	assert.Equal(t, 1, calls, "second check inside the TTL must hit the cache")
}

func TestHandler_UnhealthyIs503(t *testing.T) {
	c := NewChecker()
	c.Register("down", staticCheck(StatusUnhealthy))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusUnhealthy, report.Status)
}

func TestHandler_DegradedIs200(t *testing.T) {
	c := NewChecker()
	c.Register("limping", staticCheck(StatusDegraded))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFleetCheck(t *testing.T) {
	tests := []struct {
		name   string
		ok     int
		total  int
		expect Status
	}{
		{"all reachable", 3, 3, StatusHealthy},
		{"partial", 2, 3, StatusDegraded},
		{"none reachable", 0, 3, StatusUnhealthy},
		{"empty fleet", 0, 0, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := FleetCheck(func(ctx context.Context) (int, int) {
				return tt.ok, tt.total
			})
			check := fn(context.Background())
			assert.Equal(t, tt.expect, check.Status)
			assert.NotEmpty(t, check.Message)
		})
	}
}
