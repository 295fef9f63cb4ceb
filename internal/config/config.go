// Package config loads the netaddr tool configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/marcuoli/go-netaddr/pkg/netaddr"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/hostcache"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/iface"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/resolve"
)

// Config is the on-disk configuration.
type Config struct {
	Network   NetworkConfig   `yaml:"network"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Probe     ProbeConfig     `yaml:"probe"`
	HostCache HostCacheConfig `yaml:"hostCache"`
	Log       LogConfig       `yaml:"log"`
	// OUIDatabase is the path of an IEEE oui.txt; empty searches the usual places.
	OUIDatabase string `yaml:"ouiDatabase"`
}

// NetworkConfig selects the local address.
type NetworkConfig struct {
	BindIP             string   `yaml:"bindIP"`
	PreferIPv6         bool     `yaml:"preferIPv6"`
	IgnoredInterfaces  []string `yaml:"ignoredInterfaces"`
	PreferredInterface string   `yaml:"preferredInterface"`
}

// ResolverConfig bounds name resolution.
type ResolverConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
}

// ProbeConfig bounds reachability probes.
type ProbeConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// HostCacheConfig sizes the reverse lookup cache.
type HostCacheConfig struct {
	Size int `yaml:"size"`
}

// LogConfig controls the command line log output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Default returns a configuration with every default filled in.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// Load reads path, expands environment variables in the raw text, applies
// defaults, overlays the NETADDR_* variables and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// LoadOrDefault loads path, or returns the defaults (with the environment
// applied) when path is empty or does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return fromDefaults()
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fromDefaults()
	}
	return Load(path)
}

func fromDefaults() (*Config, error) {
	c := Default()
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return c, nil
}

// Parse decodes YAML data the way Load does.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	c.ApplyDefaults()
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &c, nil
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Resolver.Timeout == 0 {
		c.Resolver.Timeout = resolve.DefaultTimeout
	}
	if c.Resolver.Concurrency == 0 {
		c.Resolver.Concurrency = resolve.DefaultConcurrency
	}
	if c.Probe.Timeout == 0 {
		c.Probe.Timeout = iface.DefaultProbeTimeout
	}
	if c.HostCache.Size == 0 {
		c.HostCache.Size = hostcache.DefaultSize
	}
	if c.Log.Level == "" {
		c.Log.Level = logrus.InfoLevel.String()
	}
	if c.Log.Format == "" {
		c.Log.Format = FormatText
	}
}

// ApplyEnv overlays the NETADDR_* variables reported by getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	opts := netaddr.Options{
		BindIP:             c.Network.BindIP,
		PreferIPv6:         c.Network.PreferIPv6,
		IgnoredInterfaces:  c.Network.IgnoredInterfaces,
		PreferredInterface: c.Network.PreferredInterface,
	}
	opts.ApplyEnv(getenv)
	c.Network.BindIP = opts.BindIP
	c.Network.PreferIPv6 = opts.PreferIPv6
	c.Network.IgnoredInterfaces = opts.IgnoredInterfaces
	c.Network.PreferredInterface = opts.PreferredInterface
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Resolver.Timeout < 0 {
		errs = append(errs, fmt.Errorf("resolver.timeout must not be negative, got %v", c.Resolver.Timeout))
	}
	if c.Resolver.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("resolver.concurrency must not be negative, got %d", c.Resolver.Concurrency))
	}
	if c.Probe.Timeout < 0 {
		errs = append(errs, fmt.Errorf("probe.timeout must not be negative, got %v", c.Probe.Timeout))
	}
	if c.HostCache.Size < 0 {
		errs = append(errs, fmt.Errorf("hostCache.size must not be negative, got %d", c.HostCache.Size))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case FormatText, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format must be %q or %q, got %q", FormatText, FormatJSON, c.Log.Format))
	}
	for _, name := range c.Network.IgnoredInterfaces {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, errors.New("network.ignoredInterfaces must not contain empty entries"))
			break
		}
	}
	return errors.Join(errs...)
}

// Options converts the configuration for netaddr.New.
func (c *Config) Options() netaddr.Options {
	opts := netaddr.DefaultOptions()
	opts.BindIP = c.Network.BindIP
	opts.PreferIPv6 = c.Network.PreferIPv6
	opts.IgnoredInterfaces = c.Network.IgnoredInterfaces
	opts.PreferredInterface = c.Network.PreferredInterface
	opts.ResolveTimeout = c.Resolver.Timeout
	opts.ResolveConcurrency = c.Resolver.Concurrency
	opts.ProbeTimeout = c.Probe.Timeout
	opts.HostCacheSize = c.HostCache.Size
	return opts
}
