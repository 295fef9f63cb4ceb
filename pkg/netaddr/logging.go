// Package netaddr: debug logging wiring for subpackages.
package netaddr

import (
	"github.com/marcuoli/go-netaddr/pkg/netaddr/hostcache"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/iface"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/oui"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/pattern"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/probe"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/resolve"
)

// Subpackage hooks are routed through the leveled logger of this package.
// Per-lookup chatter is only emitted at DebugVerbose.
func init() {
	resolve.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(ComponentResolve, format, args...)
	}
	pattern.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(ComponentPattern, format, args...)
	}
	hostcache.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(ComponentHostCache, format, args...)
	}
	iface.DebugLogger = func(format string, args ...interface{}) {
		debugLog(ComponentIface, format, args...)
	}
	probe.DebugLogger = func(format string, args ...interface{}) {
		debugLog(ComponentProbe, format, args...)
	}
	oui.DebugLogger = func(format string, args ...interface{}) {
		debugLog(ComponentOUI, format, args...)
	}
}
