package cmd

import (
	"context"
	"fmt"
	"time"

	"pifleet.dev/pifleet/internal/config"
)

// RunSetBlocking enables or disables blocking fleet-wide and prints the
// per-instance outcomes. Partial failure is reported but only a total
// failure returns an error.
func RunSetBlocking(configFile string, enabled bool, timerSeconds int) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg, false)
	orch, _ := buildFleet(cfg, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	results := orch.SetAllBlocking(ctx, enabled, timerSeconds)

	failed := 0
	for _, res := range results {
		if res.Error != nil {
			failed++
			fmt.Printf("%-16s FAILED: %s\n", res.Name, *res.Error)
			continue
		}

		state := "disabled"
		if res.Blocking != nil && *res.Blocking {
			state = "enabled"
		}
		if res.Timer > 0 {
			fmt.Printf("%-16s %s (re-enables in %s)\n", res.Name, state,
				(time.Duration(res.Timer) * time.Second).String())
		} else {
			fmt.Printf("%-16s %s\n", res.Name, state)
		}
	}

	if failed == len(results) {
		return fmt.Errorf("all %d instances failed", failed)
	}
	if failed > 0 {
		fmt.Printf("\n%d of %d instances failed\n", failed, len(results))
	}
	return nil
}
