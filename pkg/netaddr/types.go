// Package netaddr finds the address a machine should advertise, resolves host
// names with a bounded wait, matches hosts against IP patterns and maps
// addresses back to host names.
//
// The work is split across subpackages:
//   - classify: pure predicates over addresses, ports and interface names
//   - resolve: time-bounded host name resolution
//   - iface: local interface enumeration and best address selection
//   - pattern: CIDR and wildcard/range host patterns
//   - hostcache: cached reverse lookups
//   - probe: reachability checks (ICMP echo then TCP echo by default, ARP, Neighbor)
//   - oui: MAC vendor names
//
// Locator ties them together; the package level functions use a Locator
// configured from the environment.
package netaddr

// Component identifies the part of the library that emitted a log message.
type Component string

const (
	ComponentLocator   Component = "locator"
	ComponentResolve   Component = "resolve"
	ComponentIface     Component = "iface"
	ComponentPattern   Component = "pattern"
	ComponentHostCache Component = "hostcache"
	ComponentProbe     Component = "probe"
	ComponentOUI       Component = "oui"
)
