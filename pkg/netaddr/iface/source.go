package iface

import (
	"net"
	"net/netip"
	"strings"
)

// Info is a snapshot of one network interface. It is read fresh on every scan.
type Info struct {
	Name         string
	Index        int
	Up           bool
	Loopback     bool
	Virtual      bool
	HardwareAddr net.HardwareAddr
	// Vendor is the manufacturer of HardwareAddr, filled by Scanner.Interfaces
	// when a vendor lookup is configured.
	Vendor string
	// Addrs holds the bound addresses in binding order. Link-local IPv6
	// addresses carry the interface name as their zone.
	Addrs []netip.Addr
	// Err is set when the addresses of this interface could not be read.
	Err error
}

// Source enumerates the interfaces of the machine.
type Source func() ([]Info, error)

// SystemSource reads interfaces from the operating system.
func SystemSource() ([]Info, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	res := make([]Info, 0, len(ifaces))
	for _, ifi := range ifaces {
		info := Info{
			Name:         ifi.Name,
			Index:        ifi.Index,
			Up:           ifi.Flags&net.FlagUp != 0,
			Loopback:     ifi.Flags&net.FlagLoopback != 0,
			Virtual:      isVirtual(ifi.Name),
			HardwareAddr: ifi.HardwareAddr,
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			info.Err = err
			res = append(res, info)
			continue
		}
		for _, a := range addrs {
			ip, ok := extractIP(a)
			if !ok {
				continue
			}
			if ip.Is6() && ip.IsLinkLocalUnicast() {
				ip = ip.WithZone(ifi.Name)
			}
			info.Addrs = append(info.Addrs, ip)
		}
		res = append(res, info)
	}
	return res, nil
}

func extractIP(a net.Addr) (netip.Addr, bool) {
	var raw net.IP
	switch v := a.(type) {
	case *net.IPNet:
		raw = v.IP
	case *net.IPAddr:
		raw = v.IP
	default:
		return netip.Addr{}, false
	}
	ip, ok := netip.AddrFromSlice(raw)
	if !ok {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

// isVirtual reports alias sub-interfaces such as "eth0:1".
func isVirtual(name string) bool {
	return strings.Contains(name, ":")
}
