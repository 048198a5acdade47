package cmd

import (
	"io"

	"pifleet.dev/pifleet/internal/config"
	"pifleet.dev/pifleet/internal/logging"
	"pifleet.dev/pifleet/internal/tui"
)

// RunConsole starts the interactive fleet console.
func RunConsole(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	// The TUI owns the terminal; route logs nowhere instead of corrupting
	// the alternate screen.
	logger := logging.New(logging.Config{Level: logging.LevelError, Output: io.Discard})
	logging.SetDefault(logger)

	orch, _ := buildFleet(cfg, logger)
	return tui.Run(orch)
}
