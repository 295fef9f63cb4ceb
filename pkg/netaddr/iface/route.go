package iface

import (
	"context"
	"net"
	"net/netip"
	"strconv"
)

// routeProbePort is only used to let the kernel pick a route; nothing is sent.
const routeProbePort = 9

// RouteSource returns the local address the kernel would use to reach
// target. Connecting a UDP socket selects the route without sending a packet.
func RouteSource(ctx context.Context, target netip.Addr) (netip.Addr, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", net.JoinHostPort(target.String(), strconv.Itoa(routeProbePort)))
	if err != nil {
		return netip.Addr{}, err
	}
	defer conn.Close()

	local := conn.LocalAddr().(*net.UDPAddr).AddrPort().Addr()
	debugLog("route to %s leaves from %s", target, local)
	return local.Unmap(), nil
}
