//go:build !linux

package probe

import (
	"context"
	"net"
	"net/netip"
	"time"
)

// Neighbor needs Linux packet sockets; elsewhere it never reports a host
// as reachable.
type Neighbor struct {
	Interface string
}

// Reachable implements Prober.
func (Neighbor) Reachable(ctx context.Context, addr netip.Addr, timeout time.Duration) bool {
	return false
}

// Resolve always returns ErrNotSupported.
func (Neighbor) Resolve(ctx context.Context, addr netip.Addr, timeout time.Duration) (net.HardwareAddr, error) {
	return nil, ErrNotSupported
}
