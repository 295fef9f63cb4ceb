// Package classify provides pure address and interface predicates.
// Nothing in this package performs I/O or blocks.
package classify

import (
	"net/netip"
	"regexp"
	"strings"
)

const (
	// AnyHost is the IPv4 wildcard bind address.
	AnyHost = "0.0.0.0"
	// LocalHost is the IPv4 loopback literal.
	LocalHost = "127.0.0.1"
	// LocalHostName is the conventional loopback host name.
	LocalHostName = "localhost"

	// MinPort and MaxPort bound valid TCP/UDP ports.
	MinPort = 0
	MaxPort = 65535
)

var (
	ipPattern    = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3,5}$`)
	localPattern = regexp.MustCompile(`^127(\.\d{1,3}){3}$`)

	siteLocalV6 = netip.MustParsePrefix("fec0::/10")
	uniqueLocal = netip.MustParsePrefix("fc00::/7")
)

// IsLoopback reports whether addr is a loopback address. Invalid addresses return false.
func IsLoopback(addr netip.Addr) bool {
	return addr.IsValid() && addr.Unmap().IsLoopback()
}

// IsSiteLocal reports whether addr is in private address space:
// RFC 1918 for IPv4, fec0::/10 and fc00::/7 for IPv6.
func IsSiteLocal(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	if addr.Is4() {
		return IsPrivateIP(addr)
	}
	plain := addr.WithZone("")
	return siteLocalV6.Contains(plain) || uniqueLocal.Contains(plain)
}

// IsPrivateIP checks if an IPv4 address is in private (RFC 1918) address space.
func IsPrivateIP(addr netip.Addr) bool {
	if !addr.Is4() {
		return false
	}
	u := ipToUint32(addr)
	return u>>24 == 10 || // 10.0.0.0/8
		u>>20 == 0xac1 || // 172.16.0.0/12
		u>>16 == 0xc0a8 // 192.168.0.0/16
}

// IsAnyHost reports whether addr is the literal 0.0.0.0.
func IsAnyHost(addr string) bool {
	return addr == AnyHost
}

// IsValidV4Address is a heuristic filter for usable IPv4 candidates: the
// address must not be loopback, its text must look like a dotted quad, and it
// must be neither 0.0.0.0 nor 127.0.0.1. It is not an RFC validator.
func IsValidV4Address(addr netip.Addr) bool {
	if !addr.IsValid() || IsLoopback(addr) {
		return false
	}
	name := addr.Unmap().String()
	return ipPattern.MatchString(name) && !IsAnyHost(name) && name != LocalHost
}

// IsInvalidLocalHost reports whether host cannot identify this machine to a peer.
func IsInvalidLocalHost(host string) bool {
	return host == "" ||
		strings.EqualFold(host, LocalHostName) ||
		host == AnyHost ||
		localPattern.MatchString(host)
}

// IsValidLocalHost is the negation of IsInvalidLocalHost.
func IsValidLocalHost(host string) bool {
	return !IsInvalidLocalHost(host)
}

// IsInvalidPort reports whether port is outside the usable range. Port 0 is
// rejected because it cannot be dialed.
func IsInvalidPort(port int) bool {
	return port <= MinPort || port > MaxPort
}

// IsValidPort is the negation of IsInvalidPort.
func IsValidPort(port int) bool {
	return !IsInvalidPort(port)
}

// ShouldIgnoreInterface reports whether name fully matches any of the ignore patterns.
func ShouldIgnoreInterface(name string, ignore []*regexp.Regexp) bool {
	if name == "" {
		return false
	}
	for _, re := range ignore {
		if re != nil && re.MatchString(name) {
			return true
		}
	}
	return false
}

// CompilePatterns turns a comma separated list of interface name patterns
// into anchored regular expressions. An entry that is not a valid regular
// expression is matched literally.
func CompilePatterns(list string) []*regexp.Regexp {
	return CompileList(strings.Split(list, ","))
}

// CompileList is like CompilePatterns for patterns that are already split.
// Entries are compiled whole, so a pattern may itself contain commas.
func CompileList(patterns []string) []*regexp.Regexp {
	var res []*regexp.Regexp
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile(`^(?:` + p + `)$`)
		if err != nil {
			re = regexp.MustCompile(`^` + regexp.QuoteMeta(p) + `$`)
		}
		res = append(res, re)
	}
	return res
}

func ipToUint32(addr netip.Addr) uint32 {
	b := addr.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
