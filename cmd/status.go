package cmd

import (
	"context"
	"fmt"
	"time"

	"pifleet.dev/pifleet/internal/config"
)

// RunStatus fetches and prints the status of every configured instance.
func RunStatus(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg, false)
	orch, _ := buildFleet(cfg, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statuses := orch.GetAllStatus(ctx)

	fmt.Printf("%-16s %-10s %-10s %12s %10s %8s\n", "INSTANCE", "BLOCKING", "TIMER", "QUERIES", "BLOCKED", "%")
	failed := 0
	for _, st := range statuses {
		if st.Error != nil {
			failed++
			fmt.Printf("%-16s %-10s %s\n", st.Name, "ERROR", *st.Error)
			continue
		}

		state := "disabled"
		if st.Blocking != nil && *st.Blocking {
			state = "enabled"
		}
		timer := "-"
		if st.Timer > 0 {
			timer = (time.Duration(st.Timer) * time.Second).String()
		}
		fmt.Printf("%-16s %-10s %-10s %12d %10d %7.1f%%\n",
			st.Name, state, timer, st.TotalQueries, st.BlockedQueries, st.PercentBlocked)
	}

	if failed == len(statuses) {
		return fmt.Errorf("all %d instances unreachable", failed)
	}
	return nil
}
