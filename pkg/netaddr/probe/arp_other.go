//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package probe

import (
	"context"
	"net"
	"net/netip"
	"time"
)

// ARP is a stub where arping has no backend; it never reports a host as reachable.
type ARP struct{}

// Reachable implements Prober.
func (ARP) Reachable(ctx context.Context, addr netip.Addr, timeout time.Duration) bool {
	return false
}

// ARPPing always returns ErrNotSupported.
func ARPPing(ctx context.Context, addr netip.Addr, timeout time.Duration) (net.HardwareAddr, error) {
	return nil, ErrNotSupported
}

// ARPSupported returns false on this platform.
func ARPSupported() bool {
	return false
}
