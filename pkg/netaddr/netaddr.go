package netaddr

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/marcuoli/go-netaddr/pkg/netaddr/classify"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/hostcache"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/iface"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/pattern"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/resolve"
)

// Locator answers address questions for one configuration. It is safe for
// concurrent use.
type Locator struct {
	opts     Options
	resolver *resolve.Resolver
	scanner  *iface.Scanner
	names    *hostcache.Cache

	mu    sync.Mutex
	local resolve.Address
}

// New creates a Locator. Zero durations and sizes in opts take their defaults.
func New(opts Options) *Locator {
	def := DefaultOptions()
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = def.ResolveTimeout
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = def.ProbeTimeout
	}
	if opts.ResolveConcurrency <= 0 {
		opts.ResolveConcurrency = def.ResolveConcurrency
	}
	if opts.HostCacheSize <= 0 {
		opts.HostCacheSize = def.HostCacheSize
	}

	r := resolve.NewResolver()
	r.Timeout = opts.ResolveTimeout
	r.Concurrency = opts.ResolveConcurrency
	r.PreferIPv6 = opts.PreferIPv6
	r.Lookup = opts.Lookup

	s := iface.NewScanner(r)
	s.Source = opts.Source
	s.Prober = opts.Prober
	s.ProbeTimeout = opts.ProbeTimeout
	s.ResolveTimeout = opts.ResolveTimeout
	s.PreferIPv6 = opts.PreferIPv6
	s.PreferredInterface = opts.PreferredInterface
	s.Hostname = opts.Hostname
	s.Ignored = classify.CompileList(opts.IgnoredInterfaces)

	c := hostcache.New(opts.HostCacheSize)
	c.Lookup = opts.ReverseLookup

	return &Locator{opts: opts, resolver: r, scanner: s, names: c}
}

// Options returns the effective options.
func (l *Locator) Options() Options { return l.opts }

// Resolver returns the bounded resolver used by the Locator.
func (l *Locator) Resolver() *resolve.Resolver { return l.resolver }

// Scanner returns the interface scanner used by the Locator.
func (l *Locator) Scanner() *iface.Scanner { return l.scanner }

// Cache returns the host name cache used by the Locator.
func (l *Locator) Cache() *hostcache.Cache { return l.names }

// LocalAddress returns the address this machine should advertise. The first
// call computes it; later calls return the remembered value. Concurrent first
// calls may each compute it and the last result is kept.
func (l *Locator) LocalAddress(ctx context.Context) resolve.Address {
	l.mu.Lock()
	local := l.local
	l.mu.Unlock()
	if local.IsValid() {
		return local
	}

	local = l.findLocalAddress(ctx)

	l.mu.Lock()
	l.local = local
	l.mu.Unlock()
	return local
}

func (l *Locator) findLocalAddress(ctx context.Context) resolve.Address {
	if l.opts.BindIP != "" {
		addr, err := l.resolver.Resolve(ctx, l.opts.BindIP, l.opts.ResolveTimeout)
		if err == nil {
			debugLog(ComponentLocator, "local address %s from bind setting", addr)
			return addr
		}
		debugLog(ComponentLocator, "bind address %q unusable, scanning interfaces: %v", l.opts.BindIP, err)
	}
	addr := l.scanner.FindBestLocalAddress(ctx)
	debugLog(ComponentLocator, "local address %s", addr)
	return addr
}

// LocalHost returns LocalAddress as a literal.
func (l *Locator) LocalHost(ctx context.Context) string {
	return l.LocalAddress(ctx).String()
}

// Reset forgets the remembered local address.
func (l *Locator) Reset() {
	l.mu.Lock()
	l.local = resolve.Address{}
	l.mu.Unlock()
}

// Resolve resolves host within the configured timeout.
func (l *Locator) Resolve(ctx context.Context, host string) (resolve.Address, error) {
	return l.resolver.Resolve(ctx, host, l.opts.ResolveTimeout)
}

// IPByHost returns the address of host as a literal, or host itself when it
// cannot be resolved in time.
func (l *Locator) IPByHost(ctx context.Context, host string) string {
	addr, err := l.Resolve(ctx, host)
	if err != nil {
		debugLogVerbose(ComponentLocator, "%s: %v", host, err)
		return host
	}
	return addr.String()
}

// Match reports whether host:port matches pattern. Any error means no match.
func (l *Locator) Match(ctx context.Context, hostPattern, host string, port int) (bool, error) {
	return pattern.Match(ctx, l.resolver, hostPattern, host, port)
}

// HostName returns the cached reverse lookup of address, or address itself.
func (l *Locator) HostName(ctx context.Context, address string) string {
	return l.names.HostName(ctx, address)
}

// FilterLocalHost replaces an unusable local host (empty, "localhost",
// "0.0.0.0", loopback) with the local address. It accepts a bare host,
// "host:port" or a URL and keeps everything else unchanged.
func (l *Locator) FilterLocalHost(ctx context.Context, host string) string {
	if host == "" {
		return host
	}

	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err != nil || !classify.IsInvalidLocalHost(u.Hostname()) {
			return host
		}
		if port := u.Port(); port != "" {
			u.Host = net.JoinHostPort(l.LocalHost(ctx), port)
		} else {
			u.Host = bracket(l.LocalHost(ctx))
		}
		return u.String()
	}

	if h, port, err := net.SplitHostPort(host); err == nil {
		if classify.IsInvalidLocalHost(h) {
			return net.JoinHostPort(l.LocalHost(ctx), port)
		}
		return host
	}

	if classify.IsInvalidLocalHost(host) {
		return l.LocalHost(ctx)
	}
	return host
}

// ToAddressString joins host and port, bracketing IPv6 literals.
func ToAddressString(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func bracket(host string) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}
