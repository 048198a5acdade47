package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pifleet.dev/pifleet/internal/api"
	"pifleet.dev/pifleet/internal/config"
	"pifleet.dev/pifleet/internal/health"
	"pifleet.dev/pifleet/internal/metrics"
	"pifleet.dev/pifleet/internal/probe"
)

// RunServe starts the HTTP API server and blocks until SIGINT/SIGTERM.
func RunServe(configFile string, jsonLogs bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger := setupLogging(cfg, jsonLogs)
	orch, sessions := buildFleet(cfg, logger)
	metrics.Get().RegisterSessionGauge(sessions.Len)

	prober := probe.New(cfg.Probe.Domain, cfg.Probe.Port)

	checker := health.NewChecker()
	checker.Register("config", func(ctx context.Context) health.Check {
		return health.Check{
			Status:  health.StatusHealthy,
			Message: fmt.Sprintf("%d instances configured", len(cfg.Instances)),
		}
	})
	checker.Register("fleet", health.FleetCheck(func(ctx context.Context) (int, int) {
		statuses := orch.GetAllStatus(ctx)
		ok := 0
		for _, st := range statuses {
			if st.Error == nil {
				ok++
			}
		}
		return ok, len(statuses)
	}))

	server := api.NewServer(api.ServerOptions{
		Fleet:   orch,
		Prober:  prober,
		Checker: checker,
		Logger:  logger,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(cfg.Listen); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Info("Serving fleet", "instances", len(cfg.Instances), "listen", cfg.Listen)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
