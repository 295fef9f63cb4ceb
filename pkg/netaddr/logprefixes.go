// Package netaddr: Log prefix constants for consistent log tagging.
// Consumers may use them in their SetDebugLogger callback; they are not
// required.
package netaddr

// Log prefixes follow the [Component] or [Component:Subcomponent] pattern.
const (
	LogPrefixNetAddr = "[NetAddr]"

	LogPrefixLocator   = "[NetAddr:Locator]"
	LogPrefixResolve   = "[NetAddr:Resolve]"
	LogPrefixIface     = "[NetAddr:Iface]"
	LogPrefixPattern   = "[NetAddr:Pattern]"
	LogPrefixHostCache = "[NetAddr:HostCache]"
	LogPrefixProbe     = "[NetAddr:Probe]"
	LogPrefixOUI       = "[NetAddr:OUI]"

	// LogPrefixDebug is combined as "[DEBUG][NetAddr:*]".
	LogPrefixDebug = "[DEBUG]"
)

// ComponentToPrefix returns the log prefix for a component.
func ComponentToPrefix(component Component) string {
	switch component {
	case ComponentLocator:
		return LogPrefixLocator
	case ComponentResolve:
		return LogPrefixResolve
	case ComponentIface:
		return LogPrefixIface
	case ComponentPattern:
		return LogPrefixPattern
	case ComponentHostCache:
		return LogPrefixHostCache
	case ComponentProbe:
		return LogPrefixProbe
	case ComponentOUI:
		return LogPrefixOUI
	default:
		return LogPrefixNetAddr
	}
}
