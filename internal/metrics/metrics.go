// Package metrics exposes Prometheus metrics for the fleet service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all fleet metrics.
type Registry struct {
	// Appliance authentication
	LoginsTotal *prometheus.CounterVec // result: cached|fresh|failed
	AuthRetries prometheus.Counter

	// Per-instance operations
	InstanceOps    *prometheus.CounterVec // instance, op
	InstanceErrors *prometheus.CounterVec // instance, op

	// Fleet fan-out
	FleetOps *prometheus.CounterVec // op: status|set_blocking

	// HTTP API surface
	APIRequests *prometheus.CounterVec // path, method, status
	APILatency  *prometheus.HistogramVec

	// Session cache
	SessionsCached prometheus.GaugeFunc
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pifleet_logins_total",
		Help: "Appliance authentications by result (cached, fresh, failed)",
	}, []string{"result"})

	r.AuthRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pifleet_auth_retries_total",
		Help: "Operations retried after a 401 with a forced re-login",
	})

	r.InstanceOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pifleet_instance_ops_total",
		Help: "Per-instance operations attempted",
	}, []string{"instance", "op"})

	r.InstanceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pifleet_instance_errors_total",
		Help: "Per-instance operations that ended in failure",
	}, []string{"instance", "op"})

	r.FleetOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pifleet_fleet_ops_total",
		Help: "Fleet-wide fan-out operations",
	}, []string{"op"})

	r.APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pifleet_api_requests_total",
		Help: "HTTP API requests served",
	}, []string{"path", "method", "status"})

	r.APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pifleet_api_request_duration_seconds",
		Help:    "HTTP API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	return r
}

// RegisterSessionGauge wires a gauge reporting the live session-cache size.
// Called once at startup when the store exists.
func (r *Registry) RegisterSessionGauge(count func() int) {
	r.SessionsCached = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "pifleet_sessions_cached",
		Help: "Credentials currently held in the session cache",
	}, func() float64 { return float64(count()) })
}
