package netaddr

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/marcuoli/go-netaddr/pkg/netaddr/hostcache"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/iface"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/probe"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/resolve"
)

// Environment variables read by OptionsFromEnv.
const (
	EnvIPToBind           = "NETADDR_IP_TO_BIND"
	EnvPreferIPv6         = "NETADDR_PREFER_IPV6"
	EnvIgnoredInterfaces  = "NETADDR_IGNORED_INTERFACES"
	EnvPreferredInterface = "NETADDR_PREFERRED_INTERFACE"
)

// Options configures a Locator.
type Options struct {
	// BindIP forces the local address. It may be a host name.
	BindIP string
	// PreferIPv6 makes IPv6 interface addresses eligible and picks IPv6
	// results when a name has both families.
	PreferIPv6 bool
	// IgnoredInterfaces are interface name patterns, matched against the
	// whole name. Invalid expressions are compared literally.
	IgnoredInterfaces []string
	// PreferredInterface is scanned before all others.
	PreferredInterface string

	ResolveTimeout     time.Duration
	ProbeTimeout       time.Duration
	ResolveConcurrency int
	HostCacheSize      int

	// Hooks replacing system access. Nil means the system default.
	Lookup        resolve.LookupFunc
	ReverseLookup hostcache.LookupFunc
	Source        iface.Source
	Prober        probe.Prober
	Hostname      func() (string, error)
}

// DefaultOptions returns options with every default filled in.
func DefaultOptions() Options {
	return Options{
		ResolveTimeout:     resolve.DefaultTimeout,
		ProbeTimeout:       iface.DefaultProbeTimeout,
		ResolveConcurrency: resolve.DefaultConcurrency,
		HostCacheSize:      hostcache.DefaultSize,
	}
}

// OptionsFromEnv returns DefaultOptions overlaid with the environment.
func OptionsFromEnv() Options {
	opts := DefaultOptions()
	opts.ApplyEnv(os.Getenv)
	return opts
}

// ApplyEnv overlays the variables that getenv reports as set. Malformed
// booleans are ignored.
func (o *Options) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvIPToBind)); v != "" {
		o.BindIP = v
	}
	if v := strings.TrimSpace(getenv(EnvPreferIPv6)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			o.PreferIPv6 = b
		} else {
			debugLog(ComponentLocator, "%s=%q is not a boolean, ignored", EnvPreferIPv6, v)
		}
	}
	if v := getenv(EnvIgnoredInterfaces); strings.TrimSpace(v) != "" {
		o.IgnoredInterfaces = SplitList(v)
	}
	if v := strings.TrimSpace(getenv(EnvPreferredInterface)); v != "" {
		o.PreferredInterface = v
	}
}

// SplitList splits a comma separated list, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
