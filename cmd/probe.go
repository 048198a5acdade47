package cmd

import (
	"context"
	"fmt"
	"time"

	"pifleet.dev/pifleet/internal/config"
	"pifleet.dev/pifleet/internal/probe"
)

// RunProbe issues a canary DNS query against every instance and prints
// whether each one is actually sinkholing the domain.
func RunProbe(configFile, domain string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	setupLogging(cfg, false)

	if domain == "" {
		domain = cfg.Probe.Domain
	}
	prober := probe.New(domain, cfg.Probe.Port)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("Probing %q against %d instances\n\n", domain, len(cfg.Instances))
	for _, res := range prober.ProbeAll(ctx, cfg.InstanceConfigs()) {
		switch {
		case res.Error != nil:
			fmt.Printf("%-16s ERROR: %s\n", res.Name, *res.Error)
		case res.Blocked != nil && *res.Blocked:
			fmt.Printf("%-16s blocked (%s)\n", res.Name, res.RTT)
		default:
			fmt.Printf("%-16s NOT BLOCKED, answered %s (%s)\n", res.Name, res.Answer, res.RTT)
		}
	}
	return nil
}
