// Package config loads and validates the service configuration: the
// ordered Pi-hole instance list plus HTTP and probe tuning. HCL is the
// primary format; JSON and YAML are accepted by extension, and a legacy
// environment-only mode covers deployments without a config file.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"pifleet.dev/pifleet/internal/brand"
	"pifleet.dev/pifleet/internal/pihole"
	"pifleet.dev/pifleet/internal/transport"
)

// Config is the top-level service configuration.
type Config struct {
	// Listen is the HTTP API listen address, e.g. ":8080".
	Listen string `hcl:"listen,optional" json:"listen,omitempty" yaml:"listen,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `hcl:"log_level,optional" json:"log_level,omitempty" yaml:"log_level,omitempty"`

	Instances []Instance   `hcl:"instance,block" json:"instances" yaml:"instances"`
	HTTP      *HTTPConfig  `hcl:"http,block" json:"http,omitempty" yaml:"http,omitempty"`
	Probe     *ProbeConfig `hcl:"probe,block" json:"probe,omitempty" yaml:"probe,omitempty"`
}

// Instance is the connection configuration of one Pi-hole deployment.
type Instance struct {
	Name     string `hcl:"name,label" json:"name" yaml:"name"`
	URL      string `hcl:"url" json:"url" yaml:"url"`
	Password string `hcl:"password,optional" json:"password,omitempty" yaml:"password,omitempty"`
}

// HTTPConfig tunes outbound appliance calls.
type HTTPConfig struct {
	TimeoutSeconds int `hcl:"timeout_seconds,optional" json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	MaxRedirects   int `hcl:"max_redirects,optional" json:"max_redirects,omitempty" yaml:"max_redirects,omitempty"`
}

// ProbeConfig tunes the DNS blocking probe.
type ProbeConfig struct {
	// Domain is the canary queried against each instance; it should be a
	// domain every instance is expected to block.
	Domain string `hcl:"domain,optional" json:"domain,omitempty" yaml:"domain,omitempty"`
	Port   int    `hcl:"port,optional" json:"port,omitempty" yaml:"port,omitempty"`
}

// DefaultProbeDomain is on every stock Pi-hole blocklist.
const DefaultProbeDomain = "doubleclick.net"

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = brand.DefaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTP == nil {
		c.HTTP = &HTTPConfig{}
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		c.HTTP.TimeoutSeconds = int(transport.DefaultTimeout.Seconds())
	}
	if c.HTTP.MaxRedirects <= 0 {
		c.HTTP.MaxRedirects = transport.DefaultMaxRedirects
	}
	if c.Probe == nil {
		c.Probe = &ProbeConfig{}
	}
	if c.Probe.Domain == "" {
		c.Probe.Domain = DefaultProbeDomain
	}
	if c.Probe.Port <= 0 {
		c.Probe.Port = 53
	}
}

// Validate checks the configuration for use. Instance names missing from
// the config are derived from the URL host before uniqueness is enforced.
func (c *Config) Validate() error {
	if len(c.Instances) == 0 {
		return fmt.Errorf("no instances configured")
	}

	seenNames := make(map[string]bool)
	seenURLs := make(map[string]bool)

	for i := range c.Instances {
		inst := &c.Instances[i]

		if inst.URL == "" {
			return fmt.Errorf("instance %q: url is required", inst.Name)
		}

		u, err := url.Parse(inst.URL)
		if err != nil {
			return fmt.Errorf("instance %q: invalid url %q: %w", inst.Name, inst.URL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("instance %q: url %q must use http or https", inst.Name, inst.URL)
		}
		if u.Host == "" {
			return fmt.Errorf("instance %q: url %q has no host", inst.Name, inst.URL)
		}

		// Normalize: the URL is the session-cache identity key, so a
		// trailing slash must not split one instance into two.
		inst.URL = strings.TrimRight(inst.URL, "/")

		if inst.Name == "" {
			inst.Name = u.Hostname()
		}

		if seenNames[inst.Name] {
			return fmt.Errorf("duplicate instance name %q", inst.Name)
		}
		seenNames[inst.Name] = true

		if seenURLs[inst.URL] {
			return fmt.Errorf("duplicate instance url %q", inst.URL)
		}
		seenURLs[inst.URL] = true
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}

	return nil
}

// InstanceConfigs converts the configured instances into the form the
// fleet layer consumes, preserving order.
func (c *Config) InstanceConfigs() []pihole.InstanceConfig {
	out := make([]pihole.InstanceConfig, len(c.Instances))
	for i, inst := range c.Instances {
		out[i] = pihole.InstanceConfig{
			Name:     inst.Name,
			URL:      inst.URL,
			Password: inst.Password,
		}
	}
	return out
}
