package cmd

import (
	"fmt"

	"pifleet.dev/pifleet/internal/config"
)

// RunCheck validates a configuration file and prints a summary.
func RunCheck(configFile string, verbose bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Printf("Configuration OK: %d instances, listening on %s\n", len(cfg.Instances), cfg.Listen)
	if verbose {
		for _, inst := range cfg.Instances {
			auth := "password set"
			if inst.Password == "" {
				auth = "no password"
			}
			fmt.Printf("  %-16s %s (%s)\n", inst.Name, inst.URL, auth)
		}
		fmt.Printf("  http: timeout %ds, max %d redirects\n", cfg.HTTP.TimeoutSeconds, cfg.HTTP.MaxRedirects)
		fmt.Printf("  probe: %s:%d\n", cfg.Probe.Domain, cfg.Probe.Port)
	}
	return nil
}
