// Package brand provides centralized naming constants for the service.
// Keeping identity in one place makes renaming or white-labeling a
// one-file change.
package brand

// Identity.
const (
	Name        = "PiFleet"
	LowerName   = "pifleet"
	BinaryName  = "pifleet"
	Description = "Multi-instance Pi-hole blocking control"
)

// Defaults.
const (
	DefaultConfigDir = "/etc/pifleet"
	ConfigFileName   = "pifleet.hcl"
	DefaultListen    = ":8080"
	EnvPrefix        = "PIFLEET"
)

// Build information, overridden at link time:
//
//	go build -ldflags "-X pifleet.dev/pifleet/internal/brand.Version=..."
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = ""
)
