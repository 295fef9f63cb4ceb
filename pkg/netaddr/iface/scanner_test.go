package iface

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/marcuoli/go-netaddr/pkg/netaddr/probe"
	"github.com/marcuoli/go-netaddr/pkg/netaddr/resolve"
)

type fakeResolver map[string]string

func (f fakeResolver) Resolve(_ context.Context, host string, _ time.Duration) (resolve.Address, error) {
	a, ok := f[host]
	if !ok {
		return resolve.Address{}, &resolve.Error{Host: host, Err: resolve.ErrResolutionFailed}
	}
	return resolve.MustParse(a), nil
}

func reachable(addrs ...string) probe.Prober {
	set := make(map[netip.Addr]bool, len(addrs))
	for _, a := range addrs {
		set[netip.MustParseAddr(a)] = true
	}
	return probe.Func(func(_ context.Context, addr netip.Addr, _ time.Duration) bool {
		return set[addr]
	})
}

func ifc(name string, index int, addrs ...string) Info {
	info := Info{Name: name, Index: index, Up: true, Virtual: isVirtual(name)}
	for _, a := range addrs {
		info.Addrs = append(info.Addrs, netip.MustParseAddr(a))
	}
	return info
}

func staticSource(infos ...Info) Source {
	return func() ([]Info, error) {
		out := make([]Info, len(infos))
		copy(out, infos)
		return out, nil
	}
}

func newTestScanner(src Source, p probe.Prober) *Scanner {
	s := NewScanner(fakeResolver{})
	s.Source = src
	s.Prober = p
	s.GOOS = "linux"
	s.Hostname = func() (string, error) { return "", errors.New("no hostname") }
	return s
}

func TestFindBestLocalAddress(t *testing.T) {
	down := ifc("eth9", 9, "10.9.0.1")
	down.Up = false
	loop := ifc("lo", 1, "127.0.0.1")
	loop.Loopback = true

	tests := []struct {
		name   string
		infos  []Info
		reach  []string
		ignore []string
		want   string
	}{
		{
			name:  "reachable site-local wins over public",
			infos: []Info{ifc("eth0", 2, "203.0.113.5"), ifc("eth1", 3, "192.168.1.10")},
			reach: []string{"192.168.1.10", "203.0.113.5"},
			want:  "192.168.1.10",
		},
		{
			name:  "unreachable site-local falls back to first candidate",
			infos: []Info{ifc("eth0", 2, "203.0.113.5"), ifc("eth1", 3, "192.168.1.10")},
			want:  "203.0.113.5",
		},
		{
			name:  "second site-local reachable",
			infos: []Info{ifc("eth0", 2, "10.0.0.1"), ifc("eth1", 3, "10.0.0.2")},
			reach: []string{"10.0.0.2"},
			want:  "10.0.0.2",
		},
		{
			name:   "skips down loopback virtual and ignored",
			infos:  []Info{loop, down, ifc("eth0:1", 4, "10.0.0.2"), ifc("docker0", 5, "172.17.0.1"), ifc("eth1", 6, "10.0.0.3")},
			reach:  []string{"127.0.0.1", "10.9.0.1", "10.0.0.2", "172.17.0.1", "10.0.0.3"},
			ignore: []string{"docker.*"},
			want:   "10.0.0.3",
		},
		{
			name:  "ordered by index",
			infos: []Info{ifc("eth5", 5, "10.0.0.5"), ifc("eth2", 2, "10.0.0.2")},
			reach: []string{"10.0.0.5", "10.0.0.2"},
			want:  "10.0.0.2",
		},
		{
			name:  "binding order within an interface",
			infos: []Info{ifc("eth0", 2, "203.0.113.9", "203.0.113.7")},
			want:  "203.0.113.9",
		},
		{
			name:  "invalid v4 literals skipped",
			infos: []Info{ifc("eth0", 2, "0.0.0.0", "10.1.2.3")},
			want:  "10.1.2.3",
		},
		{
			name:  "ipv6 ignored without preference",
			infos: []Info{ifc("eth0", 2, "2001:db8::1", "172.16.0.4")},
			want:  "172.16.0.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScanner(staticSource(tt.infos...), reachable(tt.reach...))
			for _, p := range tt.ignore {
				s.Ignored = append(s.Ignored, regexp.MustCompile("^(?:"+p+")$"))
			}
			got := s.FindBestLocalAddress(context.Background())
			if got.String() != tt.want {
				t.Errorf("FindBestLocalAddress() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFindBestLocalAddressFallbacks(t *testing.T) {
	ctx := context.Background()

	t.Run("hostname", func(t *testing.T) {
		s := newTestScanner(staticSource(ifc("eth0", 2, "2001:db8::1")), reachable())
		s.Resolver = fakeResolver{"box": "10.9.9.9"}
		s.Hostname = func() (string, error) { return "box", nil }
		if got := s.FindBestLocalAddress(ctx); got.String() != "10.9.9.9" {
			t.Errorf("got %s, want 10.9.9.9", got)
		}
	})

	t.Run("hostname resolves to loopback", func(t *testing.T) {
		s := newTestScanner(staticSource(), reachable())
		s.Resolver = fakeResolver{"box": "127.0.0.1"}
		s.Hostname = func() (string, error) { return "box", nil }
		if got := s.FindBestLocalAddress(ctx); got.String() != "127.0.0.1" {
			t.Errorf("got %s, want 127.0.0.1", got)
		}
	})

	t.Run("enumeration failure", func(t *testing.T) {
		s := newTestScanner(func() ([]Info, error) { return nil, errors.New("boom") }, reachable())
		s.Resolver = fakeResolver{"box": "10.1.1.1"}
		s.Hostname = func() (string, error) { return "box", nil }
		if got := s.FindBestLocalAddress(ctx); got.String() != "10.1.1.1" {
			t.Errorf("got %s, want 10.1.1.1", got)
		}
	})

	t.Run("nothing at all", func(t *testing.T) {
		s := newTestScanner(func() ([]Info, error) { return nil, errors.New("boom") }, reachable())
		if got := s.FindBestLocalAddress(ctx); got.String() != "127.0.0.1" {
			t.Errorf("got %s, want 127.0.0.1", got)
		}
	})

	t.Run("nil resolver", func(t *testing.T) {
		s := newTestScanner(staticSource(), reachable())
		s.Resolver = nil
		if got := s.FindBestLocalAddress(ctx); got.String() != "127.0.0.1" {
			t.Errorf("got %s, want 127.0.0.1", got)
		}
	})
}

func TestPreferIPv6(t *testing.T) {
	ctx := context.Background()
	linkLocal := netip.MustParseAddr("fe80::1").WithZone("eth0")
	info := ifc("eth0", 2)
	info.Addrs = []netip.Addr{linkLocal, netip.MustParseAddr("2001:db8::1")}

	s := newTestScanner(staticSource(info), reachable())
	s.PreferIPv6 = true
	s.Resolver = fakeResolver{"fe80::1%eth0": "fe80::1%2"}

	got := s.Scan(ctx)
	if len(got) != 2 {
		t.Fatalf("Scan() returned %d candidates, want 2", len(got))
	}
	if got[0].Addr.String() != "fe80::1%2" {
		t.Errorf("zone not normalized: %s", got[0].Addr)
	}
	if id, ok := got[0].Addr.ScopeID(); !ok || id != 2 {
		t.Errorf("ScopeID() = %d, %v", id, ok)
	}
	if got[1].Addr.String() != "2001:db8::1" {
		t.Errorf("second candidate = %s", got[1].Addr)
	}

	// Normalization failure keeps the original zone.
	s.Resolver = fakeResolver{}
	got = s.Scan(ctx)
	if got[0].Addr.String() != "fe80::1%eth0" {
		t.Errorf("got %s, want fe80::1%%eth0", got[0].Addr)
	}
}

func TestWindowsWireless(t *testing.T) {
	src := staticSource(ifc("Wi-Fi", 1, "10.1.1.1"), ifc("Ethernet", 2, "10.2.2.2"))

	s := newTestScanner(src, reachable("10.1.1.1", "10.2.2.2"))
	s.GOOS = "windows"
	if got := s.FindBestLocalAddress(context.Background()); got.String() != "10.2.2.2" {
		t.Errorf("windows: got %s, want 10.2.2.2", got)
	}

	s.GOOS = "linux"
	if got := s.FindBestLocalAddress(context.Background()); got.String() != "10.1.1.1" {
		t.Errorf("linux: got %s, want 10.1.1.1", got)
	}
}

func TestPreferredInterface(t *testing.T) {
	s := newTestScanner(staticSource(ifc("eth0", 2, "10.0.0.2"), ifc("eth1", 3, "10.0.0.3")), reachable("10.0.0.2", "10.0.0.3"))
	s.PreferredInterface = "eth1"
	if got := s.FindBestLocalAddress(context.Background()); got.String() != "10.0.0.3" {
		t.Errorf("got %s, want 10.0.0.3", got)
	}

	s.PreferredInterface = "missing"
	if got := s.FindBestLocalAddress(context.Background()); got.String() != "10.0.0.2" {
		t.Errorf("got %s, want 10.0.0.2", got)
	}
}

func TestInterfaces(t *testing.T) {
	broken := ifc("eth7", 7)
	broken.Err = errors.New("permission denied")
	withMAC := ifc("eth0", 2, "10.0.0.2")
	withMAC.HardwareAddr = net.HardwareAddr{0x00, 0x1b, 0x21, 0x01, 0x02, 0x03}

	s := newTestScanner(staticSource(broken, withMAC, ifc("eth1", 3, "10.0.0.3")), reachable())
	s.Vendor = func(mac net.HardwareAddr) string {
		if strings.HasPrefix(mac.String(), "00:1b:21") {
			return "Intel"
		}
		return ""
	}

	infos, err := s.Interfaces()
	if err != nil {
		t.Fatalf("Interfaces() error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Interfaces() = %d entries, want 2", len(infos))
	}
	if infos[0].Name != "eth0" || infos[0].Vendor != "Intel" {
		t.Errorf("infos[0] = %+v", infos[0])
	}
	if infos[1].Vendor != "" {
		t.Errorf("infos[1].Vendor = %q, want empty", infos[1].Vendor)
	}
}

func TestScanSiteLocal(t *testing.T) {
	s := newTestScanner(staticSource(ifc("eth0", 2, "192.168.0.2", "198.51.100.2")), reachable())
	got := s.Scan(context.Background())
	if len(got) != 2 {
		t.Fatalf("Scan() = %d candidates, want 2", len(got))
	}
	if !got[0].SiteLocal || got[1].SiteLocal {
		t.Errorf("SiteLocal flags = %v, %v", got[0].SiteLocal, got[1].SiteLocal)
	}
	if got[0].Interface != "eth0" || got[0].Index != 2 {
		t.Errorf("candidate = %+v", got[0])
	}
}

func TestIsVirtual(t *testing.T) {
	tests := map[string]bool{
		"eth0":    false,
		"eth0:1":  true,
		"en0":     false,
		"bond0:a": true,
	}
	for name, want := range tests {
		if got := isVirtual(name); got != want {
			t.Errorf("isVirtual(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestSystemSource(t *testing.T) {
	infos, err := SystemSource()
	if err != nil {
		t.Skipf("interfaces unavailable: %v", err)
	}
	for _, info := range infos {
		for _, a := range info.Addrs {
			if a.Is4In6() {
				t.Errorf("%s: mapped address %s", info.Name, a)
			}
			if a.Is6() && a.IsLinkLocalUnicast() && a.Zone() != info.Name {
				t.Errorf("%s: link-local %s without interface zone", info.Name, a)
			}
		}
	}
}

func TestDebugLogger(t *testing.T) {
	var lines []string
	DebugLogger = func(format string, args ...interface{}) {
		lines = append(lines, format)
	}
	defer func() { DebugLogger = nil }()

	s := newTestScanner(func() ([]Info, error) { return nil, errors.New("boom") }, reachable())
	s.FindBestLocalAddress(context.Background())
	if len(lines) == 0 {
		t.Error("expected debug output")
	}
}

func BenchmarkScan(b *testing.B) {
	s := newTestScanner(staticSource(
		ifc("eth0", 2, "10.0.0.2", "203.0.113.2"),
		ifc("eth1", 3, "192.168.1.3"),
	), reachable())
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Scan(ctx)
	}
}

func TestRouteSource_Loopback(t *testing.T) {
	got, err := RouteSource(context.Background(), netip.MustParseAddr("127.0.0.1"))
	if err != nil {
		t.Skipf("no loopback route: %v", err)
	}
	if !got.IsLoopback() {
		t.Errorf("RouteSource(127.0.0.1) = %s, want a loopback address", got)
	}
}
