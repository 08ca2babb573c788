// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/remoting/lib/classfilter"
	"github.com/bureau-foundation/remoting/lib/wire"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for a remoting endpoint.
type Config struct {
	// Environment identifies the deployment type (development,
	// staging, production).
	Environment Environment `yaml:"environment"`

	// Channel configures the handshake and envelope policy.
	Channel ChannelConfig `yaml:"channel"`

	// Transport configures the stream endpoints.
	Transport TransportConfig `yaml:"transport"`

	// Cache configures the local artifact cache.
	Cache CacheConfig `yaml:"cache"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment.
type ConfigOverrides struct {
	Channel   *ChannelOverrides `yaml:"channel,omitempty"`
	Transport *TransportConfig  `yaml:"transport,omitempty"`
	Cache     *CacheOverrides   `yaml:"cache,omitempty"`
}

// ChannelOverrides mirrors ChannelConfig for override sections. Bools
// are pointers so a section that omits a bool leaves the base value
// alone instead of silently forcing it false.
type ChannelOverrides struct {
	Name            string   `yaml:"name,omitempty"`
	Mode            string   `yaml:"mode,omitempty"`
	Compression     string   `yaml:"compression,omitempty"`
	Restricted      *bool    `yaml:"restricted,omitempty"`
	AllowedClasses  []string `yaml:"allowed_classes,omitempty"`
	BlockedPatterns []string `yaml:"blocked_patterns,omitempty"`
}

// CacheOverrides mirrors CacheConfig for override sections, with the
// same pointer-bool convention as ChannelOverrides.
type CacheOverrides struct {
	Root   string `yaml:"root,omitempty"`
	Budget int64  `yaml:"budget,omitempty"`
	Touch  *bool  `yaml:"touch,omitempty"`
	Verify *bool  `yaml:"verify,omitempty"`
}

// ChannelConfig configures the handshake and envelope policy.
type ChannelConfig struct {
	// Name identifies the channel in errors and logs.
	// Default: the hostname.
	Name string `yaml:"name"`

	// Mode is the transmission mode: "negotiate", "binary", or
	// "text". Default: negotiate.
	Mode string `yaml:"mode"`

	// Compression caps the advertised frame compression: "zstd"
	// advertises the full set, "lz4" only lz4, "none" disables
	// compression entirely. Default: zstd.
	Compression string `yaml:"compression"`

	// Restricted refuses inbound envelope classes not listed in
	// AllowedClasses. Default: false (development), true (production).
	Restricted bool `yaml:"restricted"`

	// AllowedClasses is the accept set for a restricted channel.
	AllowedClasses []string `yaml:"allowed_classes"`

	// BlockedPatterns are regular expressions over inbound class
	// tags; a match vetoes the envelope before its body is decoded.
	BlockedPatterns []string `yaml:"blocked_patterns"`
}

// TransportConfig configures the stream endpoints.
type TransportConfig struct {
	// Listen is the TCP address to accept connections on, e.g.
	// ":7099". Empty means this endpoint only dials.
	Listen string `yaml:"listen"`

	// Dial is the TCP address to connect to. Empty means this
	// endpoint only listens.
	Dial string `yaml:"dial"`

	// DialTimeout bounds connection establishment, as a Go duration
	// string. Default: 30s.
	DialTimeout string `yaml:"dial_timeout"`
}

// CacheConfig configures the local artifact cache.
type CacheConfig struct {
	// Root is the cache directory.
	// Default: ${REMOTING_ROOT}/cache
	Root string `yaml:"root"`

	// Budget is the size the reaper trims the cache down to, in
	// bytes. Zero disables reaping.
	Budget int64 `yaml:"budget"`

	// Touch refreshes artifact mtimes on cache hits so the reaper
	// sees genuine recency. Default: true.
	Touch bool `yaml:"touch"`

	// Verify re-checksums fetched artifacts against their keys.
	// Default: false (development), true (production).
	Verify bool `yaml:"verify"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file. They exist primarily to
// ensure all fields have sensible zero-values, not as a fallback -
// the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "remoting")

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "remoting"
	}

	return &Config{
		Environment: Development,
		Channel: ChannelConfig{
			Name:        hostname,
			Mode:        "negotiate",
			Compression: "zstd",
		},
		Transport: TransportConfig{
			DialTimeout: "30s",
		},
		Cache: CacheConfig{
			Root:  filepath.Join(defaultRoot, "cache"),
			Touch: true,
		},
	}
}

// Load loads configuration from the REMOTING_CONFIG environment
// variable.
//
// This is the only way to load configuration without an explicit
// path. There are no fallbacks or defaults - if REMOTING_CONFIG is
// not set, this fails. This ensures deterministic, auditable
// configuration with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("REMOTING_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("REMOTING_CONFIG environment variable not set; " +
			"set it to the path of your remoting.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment
// variables do not override config values - this ensures
// deterministic, auditable configuration. The only expansion
// performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production
	// sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the
// current config. JSON and JSONC files are rewritten to plain JSON
// first; YAML is a superset of JSON, so one unmarshal path serves
// both formats.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific
// overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: restriction on, fetched bytes verified.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Channel: &ChannelOverrides{
					Restricted: boolPtr(true),
				},
				Cache: &CacheOverrides{
					Touch:  boolPtr(true),
					Verify: boolPtr(true),
				},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Channel != nil {
		if overrides.Channel.Name != "" {
			c.Channel.Name = overrides.Channel.Name
		}
		if overrides.Channel.Mode != "" {
			c.Channel.Mode = overrides.Channel.Mode
		}
		if overrides.Channel.Compression != "" {
			c.Channel.Compression = overrides.Channel.Compression
		}
		if overrides.Channel.Restricted != nil {
			c.Channel.Restricted = *overrides.Channel.Restricted
		}
		if len(overrides.Channel.AllowedClasses) > 0 {
			c.Channel.AllowedClasses = overrides.Channel.AllowedClasses
		}
		if len(overrides.Channel.BlockedPatterns) > 0 {
			c.Channel.BlockedPatterns = overrides.Channel.BlockedPatterns
		}
	}

	if overrides.Transport != nil {
		if overrides.Transport.Listen != "" {
			c.Transport.Listen = overrides.Transport.Listen
		}
		if overrides.Transport.Dial != "" {
			c.Transport.Dial = overrides.Transport.Dial
		}
		if overrides.Transport.DialTimeout != "" {
			c.Transport.DialTimeout = overrides.Transport.DialTimeout
		}
	}

	if overrides.Cache != nil {
		if overrides.Cache.Root != "" {
			c.Cache.Root = overrides.Cache.Root
		}
		if overrides.Cache.Budget != 0 {
			c.Cache.Budget = overrides.Cache.Budget
		}
		if overrides.Cache.Touch != nil {
			c.Cache.Touch = *overrides.Cache.Touch
		}
		if overrides.Cache.Verify != nil {
			c.Cache.Verify = *overrides.Cache.Verify
		}
	}
}

func boolPtr(v bool) *bool { return &v }

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"REMOTING_ROOT": filepath.Dir(c.Cache.Root),
		"HOME":          os.Getenv("HOME"),
	}

	c.Cache.Root = expandVars(c.Cache.Root, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if _, err := c.Mode(); err != nil {
		errs = append(errs, err)
	}

	if _, err := c.Capability(); err != nil {
		errs = append(errs, err)
	}

	if c.Channel.Restricted && len(c.Channel.AllowedClasses) == 0 {
		errs = append(errs, fmt.Errorf("channel.restricted requires channel.allowed_classes"))
	}

	if _, err := c.ClassFilter(); err != nil {
		errs = append(errs, err)
	}

	if c.Cache.Budget < 0 {
		errs = append(errs, fmt.Errorf("cache.budget must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Mode returns the configured transmission mode.
func (c *Config) Mode() (wire.Mode, error) {
	mode, err := wire.ParseMode(c.Channel.Mode)
	if err != nil {
		return mode, fmt.Errorf("channel.mode: %w", err)
	}
	return mode, nil
}

// Capability returns the capability to advertise, with the
// compression set capped by channel.compression.
func (c *Config) Capability() (wire.Capability, error) {
	name := c.Channel.Compression
	if name == "" {
		name = "zstd"
	}
	ceiling, err := wire.ParseCompressionTag(name)
	if err != nil {
		return wire.Capability{}, fmt.Errorf("channel.compression: %w", err)
	}

	capability := wire.NewCapability()
	switch ceiling {
	case wire.CompressionNone:
		capability.Compressions = nil
	case wire.CompressionLZ4:
		capability.Compressions = []wire.CompressionTag{wire.CompressionLZ4}
	}
	return capability, nil
}

// ClassFilter builds the deserialization filter from the configured
// blocked patterns. No patterns means a permissive filter.
func (c *Config) ClassFilter() (classfilter.Filter, error) {
	if len(c.Channel.BlockedPatterns) == 0 {
		return classfilter.AcceptAll(), nil
	}
	filter, err := classfilter.NewPattern(c.Channel.BlockedPatterns...)
	if err != nil {
		return nil, fmt.Errorf("channel.blocked_patterns: %w", err)
	}
	return filter, nil
}

// EnsureCacheDir creates the cache directory if it doesn't exist.
func (c *Config) EnsureCacheDir() error {
	if c.Cache.Root == "" {
		return nil
	}
	if err := os.MkdirAll(c.Cache.Root, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", c.Cache.Root, err)
	}
	return nil
}
