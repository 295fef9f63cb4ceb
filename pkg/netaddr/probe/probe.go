// Package probe provides best-effort reachability checks used to prefer
// addresses that currently answer over ones that merely exist.
package probe

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strconv"
	"syscall"
	"time"
)

const (
	// DefaultTimeout is the probe timeout used when none is given.
	DefaultTimeout = 100 * time.Millisecond
	// EchoPort is the TCP echo service port.
	EchoPort = 7
)

// Errors
var (
	// ErrNotSupported is returned by probes that have no backend on this platform.
	ErrNotSupported = errors.New("probe is not supported on this platform")
	// ErrIPv6NotSupported is returned when attempting ARP on an IPv6 address.
	ErrIPv6NotSupported = errors.New("ARP is not supported for IPv6 addresses")
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from probe operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Prober reports whether an address answers within timeout.
type Prober interface {
	Reachable(ctx context.Context, addr netip.Addr, timeout time.Duration) bool
}

// Func adapts a function to the Prober interface.
type Func func(ctx context.Context, addr netip.Addr, timeout time.Duration) bool

// Reachable calls f.
func (f Func) Reachable(ctx context.Context, addr netip.Addr, timeout time.Duration) bool {
	return f(ctx, addr, timeout)
}

// TCPEcho dials the TCP echo port. An accepted connection or an active
// refusal both prove the host is up; a timeout or unreachable error does not.
type TCPEcho struct {
	Port int
}

// Reachable implements Prober.
func (p TCPEcho) Reachable(ctx context.Context, addr netip.Addr, timeout time.Duration) bool {
	if !addr.IsValid() {
		return false
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	port := p.Port
	if port <= 0 {
		port = EchoPort
	}

	d := net.Dialer{Timeout: timeout}
	target := net.JoinHostPort(addr.String(), strconv.Itoa(port))
	conn, err := d.DialContext(ctx, "tcp", target)
	if err == nil {
		conn.Close()
		debugLog("%s: echo port open", addr)
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		debugLog("%s: echo port refused, host is up", addr)
		return true
	}
	debugLog("%s: not reachable: %v", addr, err)
	return false
}

// Chain tries each prober in order and stops at the first that succeeds.
type Chain []Prober

// Reachable implements Prober.
func (c Chain) Reachable(ctx context.Context, addr netip.Addr, timeout time.Duration) bool {
	for _, p := range c {
		if ctx.Err() != nil {
			return false
		}
		if p.Reachable(ctx, addr, timeout) {
			return true
		}
	}
	return false
}

// Default returns the prober used for local address selection: an ICMP
// echo, then the TCP echo port.
func Default() Prober {
	return Chain{ICMP{}, TCPEcho{}}
}
