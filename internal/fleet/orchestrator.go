// Package fleet fans status and blocking operations out across every
// configured Pi-hole instance concurrently and aggregates the per-instance
// outcomes.
//
// Results always come back in configured-instance order, one entry per
// instance, regardless of completion order. A slow or unreachable instance
// never delays or cancels the others.
package fleet

import (
	"context"
	"sync"

	"pifleet.dev/pifleet/internal/logging"
	"pifleet.dev/pifleet/internal/metrics"
	"pifleet.dev/pifleet/internal/pihole"
)

// Orchestrator coordinates fan-out operations across the fleet.
type Orchestrator struct {
	instances []pihole.InstanceConfig
	client    *pihole.Client
	logger    *logging.Logger
}

// New creates an Orchestrator over the given instances.
func New(instances []pihole.InstanceConfig, client *pihole.Client, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		instances: instances,
		client:    client,
		logger:    logger.WithComponent("fleet"),
	}
}

// Instances returns the configured instances in order.
func (o *Orchestrator) Instances() []pihole.InstanceConfig {
	return o.instances
}

// GetAllStatus fetches the status of every instance concurrently.
// FetchStatus never fails, so this is a plain parallel gather; each result
// lands at its instance's input index.
func (o *Orchestrator) GetAllStatus(ctx context.Context) []pihole.InstanceStatus {
	metrics.Get().FleetOps.WithLabelValues("status").Inc()

	results := make([]pihole.InstanceStatus, len(o.instances))
	var wg sync.WaitGroup
	for i, inst := range o.instances {
		wg.Add(1)
		go func(i int, inst pihole.InstanceConfig) {
			defer wg.Done()
			results[i] = o.client.FetchStatus(ctx, inst)
		}(i, inst)
	}
	wg.Wait()
	return results
}

// SetAllBlocking sets the blocking state on every instance concurrently.
// Each goroutine captures its own success or failure; a failing instance
// becomes an error-tagged entry instead of aborting the fan-out, so the
// returned list always has exactly one entry per configured instance.
func (o *Orchestrator) SetAllBlocking(ctx context.Context, enabled bool, timerSeconds int) []pihole.InstanceActionResult {
	metrics.Get().FleetOps.WithLabelValues("set_blocking").Inc()
	o.logger.Info("Setting blocking state fleet-wide", "blocking", enabled, "timer", timerSeconds, "instances", len(o.instances))

	results := make([]pihole.InstanceActionResult, len(o.instances))
	var wg sync.WaitGroup
	for i, inst := range o.instances {
		wg.Add(1)
		go func(i int, inst pihole.InstanceConfig) {
			defer wg.Done()
			res, err := o.client.SetBlocking(ctx, inst, enabled, timerSeconds)
			if err != nil {
				o.logger.Warn("Set blocking failed", "instance", inst.Name, "error", err)
				msg := err.Error()
				results[i] = pihole.InstanceActionResult{Name: inst.Name, Error: &msg}
				return
			}
			results[i] = res
		}(i, inst)
	}
	wg.Wait()
	return results
}
