// Package iface enumerates local network interfaces and picks the best
// address this machine can be identified by.
package iface

import (
	"context"
	"net"
	"net/netip"
	"os"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/marcuoli/go-netaddr/pkg/netaddr/classify"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/probe"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/resolve"
)

const (
	// DefaultProbeTimeout is the reachability probe timeout per candidate.
	DefaultProbeTimeout = 100 * time.Millisecond
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from interface scans.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Resolver turns a host into an address. *resolve.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, host string, timeout time.Duration) (resolve.Address, error)
}

// Candidate is a usable address found during a scan.
type Candidate struct {
	Addr      resolve.Address
	Interface string
	Index     int
	SiteLocal bool
}

// Scanner selects the local address. The zero value is not usable; use NewScanner.
type Scanner struct {
	// Resolver normalizes IPv6 zones and resolves the machine host name.
	Resolver Resolver
	// Source defaults to SystemSource.
	Source Source
	// Prober defaults to probe.Default().
	Prober probe.Prober
	// ProbeTimeout defaults to DefaultProbeTimeout.
	ProbeTimeout time.Duration
	// ResolveTimeout is passed to Resolver; zero means the resolver default.
	ResolveTimeout time.Duration
	// PreferIPv6 makes IPv6 addresses eligible.
	PreferIPv6 bool
	// Ignored interface name patterns.
	Ignored []*regexp.Regexp
	// PreferredInterface is scanned before all others when present.
	PreferredInterface string
	// Hostname defaults to os.Hostname.
	Hostname func() (string, error)
	// GOOS defaults to runtime.GOOS.
	GOOS string
	// Vendor names the manufacturer of a hardware address. Optional.
	Vendor func(net.HardwareAddr) string
}

// NewScanner creates a scanner that resolves through r.
func NewScanner(r Resolver) *Scanner {
	return &Scanner{
		Resolver:     r,
		ProbeTimeout: DefaultProbeTimeout,
	}
}

// Interfaces returns the eligible interfaces ordered by index, with the
// preferred interface first. Interfaces whose addresses cannot be read are
// logged and skipped.
func (s *Scanner) Interfaces() ([]Info, error) {
	src := s.Source
	if src == nil {
		src = SystemSource
	}
	all, err := src()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Index < all[j].Index })
	if s.PreferredInterface != "" {
		sort.SliceStable(all, func(i, j int) bool {
			return all[i].Name == s.PreferredInterface && all[j].Name != s.PreferredInterface
		})
	}

	res := all[:0:0]
	for _, info := range all {
		if info.Err != nil {
			debugLog("%s: skipped, cannot read addresses: %v", info.Name, info.Err)
			continue
		}
		if reason := s.skipReason(info); reason != "" {
			debugLog("%s: skipped, %s", info.Name, reason)
			continue
		}
		if s.Vendor != nil && len(info.HardwareAddr) > 0 {
			info.Vendor = s.Vendor(info.HardwareAddr)
		}
		res = append(res, info)
	}
	return res, nil
}

func (s *Scanner) skipReason(info Info) string {
	switch {
	case !info.Up:
		return "down"
	case info.Loopback:
		return "loopback"
	case info.Virtual:
		return "virtual"
	case classify.ShouldIgnoreInterface(info.Name, s.Ignored):
		return "ignored by pattern"
	case s.goos() == "windows" && isWireless(info.Name):
		return "wireless"
	}
	return ""
}

// Scan returns every usable candidate in interface and binding order.
func (s *Scanner) Scan(ctx context.Context) []Candidate {
	infos, err := s.Interfaces()
	if err != nil {
		debugLog("cannot enumerate interfaces: %v", err)
		return nil
	}

	var res []Candidate
	for _, info := range infos {
		for _, ip := range info.Addrs {
			addr, ok := s.validAddress(ctx, ip)
			if !ok {
				continue
			}
			res = append(res, Candidate{
				Addr:      addr,
				Interface: info.Name,
				Index:     info.Index,
				SiteLocal: classify.IsSiteLocal(addr.Addr()),
			})
		}
	}
	return res
}

// FindBestLocalAddress picks the first reachable site-local candidate, else
// the first candidate, else the address of the machine host name, else the
// loopback address. It never fails.
func (s *Scanner) FindBestLocalAddress(ctx context.Context) resolve.Address {
	candidates := s.Scan(ctx)

	prober := s.Prober
	if prober == nil {
		prober = probe.Default()
	}
	timeout := s.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	for _, c := range candidates {
		if !c.SiteLocal {
			continue
		}
		if prober.Reachable(ctx, c.Addr.Addr(), timeout) {
			debugLog("selected %s on %s (site-local, reachable)", c.Addr, c.Interface)
			return c.Addr
		}
	}
	if len(candidates) > 0 {
		c := candidates[0]
		debugLog("selected %s on %s (first candidate)", c.Addr, c.Interface)
		return c.Addr
	}

	if addr, ok := s.hostAddress(ctx); ok {
		debugLog("selected %s from the machine host name", addr)
		return addr
	}

	debugLog("no usable local address found, falling back to %s", classify.LocalHost)
	return resolve.MustParse(classify.LocalHost)
}

func (s *Scanner) validAddress(ctx context.Context, ip netip.Addr) (resolve.Address, bool) {
	if ip.Is6() && s.PreferIPv6 {
		return s.normalizeV6(ctx, ip), true
	}
	if classify.IsValidV4Address(ip) {
		return resolve.AddressFrom(ip), true
	}
	return resolve.Address{}, false
}

// normalizeV6 turns a named zone into the numeric scope id. The lookup goes
// through the bounded resolver; on failure the address is kept as is.
func (s *Scanner) normalizeV6(ctx context.Context, ip netip.Addr) resolve.Address {
	if ip.Zone() == "" || s.Resolver == nil {
		return resolve.AddressFrom(ip)
	}
	addr, err := s.Resolver.Resolve(ctx, ip.String(), s.ResolveTimeout)
	if err != nil {
		debugLog("%s: cannot normalize scope: %v", ip, err)
		return resolve.AddressFrom(ip)
	}
	return addr
}

func (s *Scanner) hostAddress(ctx context.Context) (resolve.Address, bool) {
	if s.Resolver == nil {
		return resolve.Address{}, false
	}
	hostname := s.Hostname
	if hostname == nil {
		hostname = os.Hostname
	}
	name, err := hostname()
	if err != nil || name == "" {
		debugLog("cannot read host name: %v", err)
		return resolve.Address{}, false
	}
	addr, err := s.Resolver.Resolve(ctx, name, s.ResolveTimeout)
	if err != nil {
		debugLog("%s: %v", name, err)
		return resolve.Address{}, false
	}
	return s.validAddress(ctx, addr.Addr())
}

func (s *Scanner) goos() string {
	if s.GOOS != "" {
		return s.GOOS
	}
	return runtime.GOOS
}

func isWireless(name string) bool {
	n := strings.ToLower(name)
	return strings.HasPrefix(n, "wi-fi") || strings.HasPrefix(n, "wlan") || strings.Contains(n, "wireless")
}
