package resolve

import (
	"net/netip"
	"strconv"
)

// Family identifies an IP address family.
type Family int

const (
	// IPv4 is the IPv4 family.
	IPv4 Family = 4
	// IPv6 is the IPv6 family.
	IPv6 Family = 6
)

func (f Family) String() string {
	switch f {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return "unknown"
	}
}

// Address is an immutable resolved address. IPv4-mapped IPv6 addresses are
// stored unmapped. For IPv6 the zone, when present, is the numeric scope id.
type Address struct {
	ip netip.Addr
}

// AddressFrom wraps ip. IPv4-mapped addresses are unmapped.
func AddressFrom(ip netip.Addr) Address {
	if ip.Is4In6() {
		ip = ip.Unmap()
	}
	return Address{ip: ip}
}

// MustParse parses s as an IP literal and panics on error. Intended for tests
// and package level defaults.
func MustParse(s string) Address {
	return AddressFrom(netip.MustParseAddr(s))
}

// Addr returns the underlying netip.Addr.
func (a Address) Addr() netip.Addr { return a.ip }

// IsValid reports whether the address has been set.
func (a Address) IsValid() bool { return a.ip.IsValid() }

// Family reports the address family.
func (a Address) Family() Family {
	if a.ip.Is4() {
		return IPv4
	}
	return IPv6
}

// ScopeID returns the numeric IPv6 scope id, if the zone is numeric.
func (a Address) ScopeID() (uint32, bool) {
	zone := a.ip.Zone()
	if zone == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(zone, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}

// String returns the textual literal, including the zone if any.
func (a Address) String() string {
	if !a.ip.IsValid() {
		return ""
	}
	return a.ip.String()
}
