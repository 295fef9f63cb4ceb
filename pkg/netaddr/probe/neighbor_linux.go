//go:build linux

package probe

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"time"

	"github.com/mdlayher/arp"
)

// ErrNoInterface is returned when no local network contains the address.
var ErrNoInterface = errors.New("no interface on the same network")

// Neighbor resolves an IPv4 neighbor with an ARP request sent from the
// interface whose network contains it. Unlike ARP it needs no global state
// and can run concurrently.
type Neighbor struct {
	// Interface forces the interface used; empty means automatic.
	Interface string
}

// Reachable implements Prober.
func (n Neighbor) Reachable(ctx context.Context, addr netip.Addr, timeout time.Duration) bool {
	mac, err := n.Resolve(ctx, addr, timeout)
	if err != nil {
		debugLog("%s: neighbor lookup failed: %v", addr, err)
		return false
	}
	debugLog("%s is at %s", addr, mac)
	return true
}

// Resolve returns the hardware address of addr.
func (n Neighbor) Resolve(ctx context.Context, addr netip.Addr, timeout time.Duration) (net.HardwareAddr, error) {
	addr = addr.Unmap()
	if !addr.Is4() {
		return nil, ErrIPv6NotSupported
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ifi, err := n.lookupInterface(addr)
	if err != nil {
		return nil, err
	}
	c, err := arp.Dial(ifi)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = c.SetDeadline(time.Now()) })
	defer stop()

	return c.Resolve(addr)
}

func (n Neighbor) lookupInterface(addr netip.Addr) (*net.Interface, error) {
	if n.Interface != "" {
		return net.InterfaceByName(n.Interface)
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		ifi := &ifaces[i]
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipn, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if prefix, ok := toPrefix(ipn); ok && prefix.Contains(addr) {
				return ifi, nil
			}
		}
	}
	return nil, ErrNoInterface
}

func toPrefix(ipn *net.IPNet) (netip.Prefix, bool) {
	ip, ok := netip.AddrFromSlice(ipn.IP)
	ones, bits := ipn.Mask.Size()
	if !ok || bits == 0 {
		return netip.Prefix{}, false
	}
	ip = ip.Unmap()
	if ip.Is4() && bits == 128 {
		ones -= 96
	}
	prefix := netip.PrefixFrom(ip, ones)
	return prefix, prefix.IsValid()
}
