//go:build linux || darwin || freebsd || netbsd || openbsd

package probe

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/j-keck/arping"
)

// arping keeps its timeout in package state.
var arpingMu sync.Mutex

// ARP sends an ARP request and waits for a reply. It only works for IPv4
// hosts on a directly attached network and usually needs raw socket rights.
type ARP struct{}

// Reachable implements Prober.
func (ARP) Reachable(ctx context.Context, addr netip.Addr, timeout time.Duration) bool {
	_, err := ARPPing(ctx, addr, timeout)
	return err == nil
}

// ARPPing returns the hardware address that answered for addr.
func ARPPing(ctx context.Context, addr netip.Addr, timeout time.Duration) (net.HardwareAddr, error) {
	addr = addr.Unmap()
	if !addr.Is4() {
		return nil, ErrIPv6NotSupported
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	type arpResponse struct {
		mac net.HardwareAddr
		dur time.Duration
		err error
	}
	responseChan := make(chan arpResponse, 1)

	go func() {
		arpingMu.Lock()
		defer arpingMu.Unlock()
		arping.SetTimeout(timeout)
		b := addr.As4()
		mac, dur, err := arping.Ping(net.IPv4(b[0], b[1], b[2], b[3]))
		responseChan <- arpResponse{mac: mac, dur: dur, err: err}
	}()

	select {
	case <-ctx.Done():
		debugLog("%s: ARP context cancelled", addr)
		return nil, ctx.Err()
	case resp := <-responseChan:
		if resp.err != nil {
			debugLog("%s: ARP error: %v", addr, resp.err)
			return nil, resp.err
		}
		debugLog("%s -> MAC: %s (%.2fms)", addr, resp.mac, float64(resp.dur.Microseconds())/1000)
		return resp.mac, nil
	}
}

// ARPSupported returns true if ARP probing is supported on this platform.
func ARPSupported() bool {
	return true
}
