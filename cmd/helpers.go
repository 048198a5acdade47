// Package cmd contains the entry functions behind each CLI subcommand.
package cmd

import (
	"time"

	"pifleet.dev/pifleet/internal/clock"
	"pifleet.dev/pifleet/internal/config"
	"pifleet.dev/pifleet/internal/fleet"
	"pifleet.dev/pifleet/internal/logging"
	"pifleet.dev/pifleet/internal/pihole"
	"pifleet.dev/pifleet/internal/session"
	"pifleet.dev/pifleet/internal/transport"
)

// buildFleet wires the full stack from a loaded configuration: transport,
// session store, per-instance client, orchestrator.
func buildFleet(cfg *config.Config, logger *logging.Logger) (*fleet.Orchestrator, *session.Store) {
	tr := transport.NewClient(
		transport.WithTimeout(time.Duration(cfg.HTTP.TimeoutSeconds)*time.Second),
		transport.WithMaxRedirects(cfg.HTTP.MaxRedirects),
	)
	sessions := session.NewStore(&clock.RealClock{})
	client := pihole.NewClient(tr, sessions, logger)
	return fleet.New(cfg.InstanceConfigs(), client, logger), sessions
}

// setupLogging builds the process logger from config and installs it as
// the default.
func setupLogging(cfg *config.Config, jsonOutput bool) *logging.Logger {
	level := logging.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}

	logger := logging.New(logging.Config{
		Level: level,
		JSON:  jsonOutput,
	})
	logging.SetDefault(logger)
	return logger
}
