package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"pifleet.dev/pifleet/internal/brand"
)

// Load resolves the configuration: an explicit file when path is set,
// otherwise the environment-only legacy mode. Defaults are applied and the
// result validated.
func Load(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if path != "" {
		cfg, err = LoadFile(path)
	} else {
		cfg, err = FromEnv()
	}
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile loads a config file, choosing the parser by extension.
// Unknown extensions try HCL first and fall back to JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return LoadHCL(data, path)
	case ".json":
		return LoadJSON(data)
	case ".yaml", ".yml":
		return LoadYAML(data)
	default:
		cfg, hclErr := LoadHCL(data, path)
		if hclErr == nil {
			return cfg, nil
		}
		return LoadJSON(data)
	}
}

// LoadHCL parses HCL config bytes. An env object is exposed to the
// evaluation context so secrets stay out of the file:
//
//	password = env.PIHOLE_PASSWORD
func LoadHCL(data []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("HCL parse error: %s", diags.Error())
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("HCL decode error: %s", diags.Error())
	}
	return &cfg, nil
}

// LoadJSON parses JSON config bytes.
func LoadJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}
	return &cfg, nil
}

// LoadYAML parses YAML config bytes.
func LoadYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	return &cfg, nil
}

// FromEnv builds a configuration from environment variables only:
//
//	PIFLEET_URLS       comma-separated base URLs (required)
//	PIFLEET_PASSWORDS  comma-separated, parallel to URLS; a single value
//	                   applies to every instance
//	PIFLEET_LISTEN     listen address
//	PIFLEET_LOG_LEVEL  log level
//
// Instance names are derived from URL hosts during validation.
func FromEnv() (*Config, error) {
	rawURLs := os.Getenv(brand.EnvPrefix + "_URLS")
	if rawURLs == "" {
		return nil, fmt.Errorf("no config file given and %s_URLS is not set", brand.EnvPrefix)
	}

	urls := splitAndTrim(rawURLs)
	passwords := splitAndTrim(os.Getenv(brand.EnvPrefix + "_PASSWORDS"))

	if len(passwords) > 1 && len(passwords) != len(urls) {
		return nil, fmt.Errorf("%s_PASSWORDS has %d entries for %d urls", brand.EnvPrefix, len(passwords), len(urls))
	}

	cfg := &Config{
		Listen:   os.Getenv(brand.EnvPrefix + "_LISTEN"),
		LogLevel: os.Getenv(brand.EnvPrefix + "_LOG_LEVEL"),
	}

	for i, u := range urls {
		inst := Instance{URL: u}
		switch {
		case len(passwords) == 1:
			inst.Password = passwords[0]
		case i < len(passwords):
			inst.Password = passwords[i]
		}
		cfg.Instances = append(cfg.Instances, inst)
	}
	return cfg, nil
}

// evalContext exposes the process environment as an `env` object to HCL
// expressions.
func evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// HostOf returns the hostname part of an instance URL, used for display
// and as the DNS probe target.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
