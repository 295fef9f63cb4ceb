package probe

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	protocolICMP     = 1
	protocolIPv6ICMP = 58
)

// ErrInvalidAddr is returned when probing the zero address.
var ErrInvalidAddr = errors.New("invalid address")

var echoSeq atomic.Uint32

// ICMP sends a single echo request. It uses an unprivileged datagram socket
// when the system allows it and a raw socket otherwise.
type ICMP struct{}

// Reachable implements Prober.
func (ICMP) Reachable(ctx context.Context, addr netip.Addr, timeout time.Duration) bool {
	rtt, err := Ping(ctx, addr, timeout)
	if err != nil {
		debugLog("%s: no echo reply: %v", addr, err)
		return false
	}
	debugLog("%s: echo reply in %v", addr, rtt)
	return true
}

// Ping sends one ICMP echo request to addr and waits for the matching reply.
func Ping(ctx context.Context, addr netip.Addr, timeout time.Duration) (time.Duration, error) {
	addr = addr.Unmap()
	if !addr.IsValid() {
		return 0, ErrInvalidAddr
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	conn, privileged, err := listenICMP(addr.Is6())
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return 0, err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	var reqType, replyType icmp.Type = ipv4.ICMPTypeEcho, ipv4.ICMPTypeEchoReply
	proto := protocolICMP
	if addr.Is6() {
		reqType, replyType = ipv6.ICMPTypeEchoRequest, ipv6.ICMPTypeEchoReply
		proto = protocolIPv6ICMP
	}

	seq := int(echoSeq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: reqType,
		Body: &icmp.Echo{ID: os.Getpid() & 0xffff, Seq: seq, Data: []byte("netaddr-probe")},
	}
	b, err := msg.Marshal(nil)
	if err != nil {
		return 0, err
	}

	ip := net.IP(addr.AsSlice())
	var dst net.Addr = &net.UDPAddr{IP: ip, Zone: addr.Zone()}
	if privileged {
		dst = &net.IPAddr{IP: ip, Zone: addr.Zone()}
	}

	start := time.Now()
	if _, err := conn.WriteTo(b, dst); err != nil {
		return 0, err
	}

	buf := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			return 0, err
		}
		reply, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil || reply.Type != replyType {
			continue
		}
		// Datagram sockets rewrite the echo ID, so only the sequence and
		// the sender are compared.
		echo, ok := reply.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq || !fromAddr(peer, addr) {
			continue
		}
		return time.Since(start), nil
	}
}

func listenICMP(v6 bool) (*icmp.PacketConn, bool, error) {
	udp, raw, bind := "udp4", "ip4:icmp", "0.0.0.0"
	if v6 {
		udp, raw, bind = "udp6", "ip6:ipv6-icmp", "::"
	}
	if conn, err := icmp.ListenPacket(udp, bind); err == nil {
		return conn, false, nil
	}
	conn, err := icmp.ListenPacket(raw, bind)
	if err != nil {
		return nil, false, err
	}
	return conn, true, nil
}

func fromAddr(peer net.Addr, want netip.Addr) bool {
	var ip net.IP
	switch p := peer.(type) {
	case *net.UDPAddr:
		ip = p.IP
	case *net.IPAddr:
		ip = p.IP
	default:
		return false
	}
	got, ok := netip.AddrFromSlice(ip)
	return ok && got.Unmap() == want.WithZone("")
}
