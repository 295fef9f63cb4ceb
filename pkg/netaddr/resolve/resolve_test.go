// Package resolve tests for bounded resolution.
package resolve

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func staticLookup(addrs ...string) LookupFunc {
	return func(ctx context.Context, host string) ([]net.IPAddr, error) {
		var res []net.IPAddr
		for _, a := range addrs {
			res = append(res, net.IPAddr{IP: net.ParseIP(a)})
		}
		return res, nil
	}
}

// blockingLookup blocks until its context ends and closes done on return.
func blockingLookup(done chan struct{}) LookupFunc {
	return func(ctx context.Context, host string) ([]net.IPAddr, error) {
		defer close(done)
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func TestNewResolver(t *testing.T) {
	r := NewResolver()
	if r == nil {
		t.Fatal("NewResolver returned nil")
	}
	if r.Timeout != DefaultTimeout {
		t.Errorf("Expected timeout %v, got %v", DefaultTimeout, r.Timeout)
	}
	if r.Concurrency != DefaultConcurrency {
		t.Errorf("Expected concurrency %d, got %d", DefaultConcurrency, r.Concurrency)
	}
	if DefaultTimeout != time.Second {
		t.Errorf("Expected a one second default, got %v", DefaultTimeout)
	}
}

func TestResolve_Literal(t *testing.T) {
	r := NewResolver()
	r.Lookup = func(ctx context.Context, host string) ([]net.IPAddr, error) {
		t.Fatalf("literal %q must not reach the lookup", host)
		return nil, nil
	}

	tests := []struct {
		in     string
		want   string
		family Family
	}{
		{"10.0.0.5", "10.0.0.5", IPv4},
		{" 192.168.1.1 ", "192.168.1.1", IPv4},
		{"::ffff:10.0.0.1", "10.0.0.1", IPv4},
		{"2001:db8::1", "2001:db8::1", IPv6},
		{"[2001:db8::1]", "2001:db8::1", IPv6},
		{"fe80::1%3", "fe80::1%3", IPv6},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			addr, err := r.Resolve(context.Background(), tt.in, 0)
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.in, err)
			}
			if addr.String() != tt.want {
				t.Errorf("Resolve(%q) = %s, want %s", tt.in, addr, tt.want)
			}
			if addr.Family() != tt.family {
				t.Errorf("Resolve(%q) family = %v, want %v", tt.in, addr.Family(), tt.family)
			}
		})
	}
}

func TestResolve_InvalidAddressIsNotTimeout(t *testing.T) {
	r := NewResolver()
	r.Lookup = blockingLookup(make(chan struct{}))

	for _, in := range []string{"256.256.256.256", "1.2.3", "1.2.3.4.5", ""} {
		t.Run(in, func(t *testing.T) {
			start := time.Now()
			_, err := r.Resolve(context.Background(), in, time.Second)
			if !errors.Is(err, ErrInvalidAddress) {
				t.Fatalf("expected ErrInvalidAddress, got %v", err)
			}
			if errors.Is(err, ErrResolutionTimeout) {
				t.Fatal("malformed input must not be reported as a timeout")
			}
			if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
				t.Errorf("malformed input took %v", elapsed)
			}
		})
	}
}

func TestResolve_TimeoutBoundsTheWait(t *testing.T) {
	done := make(chan struct{})
	r := NewResolver()
	r.TaskLifetime = 50 * time.Millisecond
	r.Lookup = blockingLookup(done)

	start := time.Now()
	_, err := r.Resolve(context.Background(), "stalled.example", 200*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrResolutionTimeout) {
		t.Fatalf("expected ErrResolutionTimeout, got %v", err)
	}
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Host != "stalled.example" {
		t.Errorf("expected *Error for stalled.example, got %#v", err)
	}
	if elapsed < 150*time.Millisecond || elapsed > 600*time.Millisecond {
		t.Errorf("expected the wait to end near 200ms, took %v", elapsed)
	}

	// The abandoned task ends on its own lifetime (at least the caller's wait).
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("background lookup was never released")
	}
}

func TestResolve_LongerWaitThanTaskLifetime(t *testing.T) {
	r := NewResolver()
	r.TaskLifetime = 20 * time.Millisecond
	r.Timeout = 20 * time.Millisecond
	r.Lookup = func(ctx context.Context, host string) ([]net.IPAddr, error) {
		select {
		case <-time.After(150 * time.Millisecond):
			return []net.IPAddr{{IP: net.ParseIP("10.1.2.3")}}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	addr, err := r.Resolve(context.Background(), "slow.example", 2*time.Second)
	if err != nil {
		t.Fatalf("expected the per-call wait to be honoured, got %v", err)
	}
	if addr.String() != "10.1.2.3" {
		t.Errorf("got %s, want 10.1.2.3", addr)
	}
}

func TestResolve_TimeoutBeyondTaskLifetime(t *testing.T) {
	tests := []struct {
		name     string
		lifetime time.Duration
		timeout  time.Duration
		wait     time.Duration
	}{
		{"wait longer than lifetime", 20 * time.Millisecond, 20 * time.Millisecond, 300 * time.Millisecond},
		{"lifetime equal to wait", 50 * time.Millisecond, 50 * time.Millisecond, 0},
		{"lifetime shorter than default timeout", 10 * time.Millisecond, 60 * time.Millisecond, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			r.TaskLifetime = tt.lifetime
			r.Timeout = tt.timeout
			r.Lookup = blockingLookup(make(chan struct{}))

			want := tt.wait
			if want <= 0 {
				want = tt.timeout
			}
			start := time.Now()
			_, err := r.Resolve(context.Background(), "hung.example", tt.wait)
			elapsed := time.Since(start)

			if !errors.Is(err, ErrResolutionTimeout) {
				t.Fatalf("expected ErrResolutionTimeout, got %v", err)
			}
			if errors.Is(err, ErrResolutionFailed) {
				t.Errorf("timeout reported as a resolution failure: %v", err)
			}
			if elapsed < want*3/4 {
				t.Errorf("wait ended after %v, expected about %v", elapsed, want)
			}
		})
	}
}

func TestResolve_ContextCancelled(t *testing.T) {
	r := NewResolver()
	r.TaskLifetime = 50 * time.Millisecond
	r.Lookup = blockingLookup(make(chan struct{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, "cancelled.example", time.Second)
	if !errors.Is(err, ErrResolutionFailed) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected a cancelled resolution failure, got %v", err)
	}
}

func TestResolve_LookupError(t *testing.T) {
	boom := errors.New("no such host")
	r := NewResolver()
	r.Lookup = func(ctx context.Context, host string) ([]net.IPAddr, error) {
		return nil, boom
	}

	_, err := r.Resolve(context.Background(), "missing.example", time.Second)
	if !errors.Is(err, ErrResolutionFailed) {
		t.Fatalf("expected ErrResolutionFailed, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected the lookup error to be wrapped, got %v", err)
	}
}

func TestResolve_EmptyResult(t *testing.T) {
	r := NewResolver()
	r.Lookup = staticLookup()

	if _, err := r.Resolve(context.Background(), "empty.example", time.Second); !errors.Is(err, ErrResolutionFailed) {
		t.Fatalf("expected ErrResolutionFailed, got %v", err)
	}
}

func TestResolve_FamilyPreference(t *testing.T) {
	r := NewResolver()
	r.Lookup = staticLookup("2001:db8::5", "10.0.0.5")

	addr, err := r.Resolve(context.Background(), "dual.example", time.Second)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if addr.String() != "10.0.0.5" {
		t.Errorf("expected IPv4 by default, got %s", addr)
	}

	r.PreferIPv6 = true
	addr, err = r.Resolve(context.Background(), "dual.example", time.Second)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if addr.String() != "2001:db8::5" {
		t.Errorf("expected IPv6 when preferred, got %s", addr)
	}

	all, err := r.ResolveAll(context.Background(), "dual.example", time.Second)
	if err != nil || len(all) != 2 {
		t.Fatalf("ResolveAll = %v, %v", all, err)
	}
}

func TestResolve_ZoneNormalization(t *testing.T) {
	r := NewResolver()
	r.Lookup = func(ctx context.Context, host string) ([]net.IPAddr, error) {
		return []net.IPAddr{{IP: net.ParseIP("fe80::1"), Zone: "eth7"}}, nil
	}
	r.ZoneIndex = func(name string) (int, error) {
		if name != "eth7" {
			return 0, errors.New("unknown interface")
		}
		return 7, nil
	}

	addr, err := r.Resolve(context.Background(), "fe80::1%eth7", time.Second)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	id, ok := addr.ScopeID()
	if !ok || id != 7 {
		t.Errorf("expected scope id 7, got %d (%v)", id, ok)
	}
	if addr.String() != "fe80::1%7" {
		t.Errorf("expected fe80::1%%7, got %s", addr)
	}
}

func TestResolve_UnknownZone(t *testing.T) {
	r := NewResolver()
	r.Lookup = func(ctx context.Context, host string) ([]net.IPAddr, error) {
		return []net.IPAddr{{IP: net.ParseIP("fe80::1"), Zone: "nope0"}}, nil
	}
	r.ZoneIndex = func(name string) (int, error) {
		return 0, errors.New("unknown interface")
	}

	if _, err := r.Resolve(context.Background(), "fe80::1%nope0", time.Second); !errors.Is(err, ErrResolutionFailed) {
		t.Fatalf("expected ErrResolutionFailed, got %v", err)
	}
}

func TestResolve_ConcurrentCallersShareOneLookup(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	r := NewResolver()
	r.Lookup = func(ctx context.Context, host string) ([]net.IPAddr, error) {
		calls.Add(1)
		<-release
		return []net.IPAddr{{IP: net.ParseIP("10.1.1.1")}}, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), "shared.example", 2*time.Second)
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected a single shared lookup, got %d", n)
	}
}

func TestResolve_ConcurrencyCap(t *testing.T) {
	var inFlight, peak atomic.Int32
	r := NewResolver()
	r.Concurrency = 2
	r.Lookup = func(ctx context.Context, host string) ([]net.IPAddr, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inFlight.Add(-1)
		return []net.IPAddr{{IP: net.ParseIP("10.2.2.2")}}, nil
	}

	hosts := []string{"a.example", "b.example", "c.example", "d.example", "e.example"}
	var wg sync.WaitGroup
	for _, h := range hosts {
		wg.Add(1)
		go func(h string) {
			defer wg.Done()
			if _, err := r.Resolve(context.Background(), h, 2*time.Second); err != nil {
				t.Errorf("%s: %v", h, err)
			}
		}(h)
	}
	wg.Wait()

	if p := peak.Load(); p > 2 {
		t.Errorf("expected at most 2 lookups in flight, saw %d", p)
	}
}

func TestAddress(t *testing.T) {
	var zero Address
	if zero.IsValid() || zero.String() != "" {
		t.Error("zero Address should be invalid and print empty")
	}

	a := MustParse("::ffff:192.168.0.1")
	if a.Family() != IPv4 || a.String() != "192.168.0.1" {
		t.Errorf("expected unmapped IPv4, got %s (%v)", a, a.Family())
	}
	if _, ok := a.ScopeID(); ok {
		t.Error("IPv4 address should have no scope id")
	}

	v6 := MustParse("fe80::1%eth0")
	if _, ok := v6.ScopeID(); ok {
		t.Error("named zone is not a numeric scope id")
	}
	if IPv4.String() != "IPv4" || IPv6.String() != "IPv6" || Family(0).String() != "unknown" {
		t.Error("unexpected Family strings")
	}
}

func TestDebugLogger(t *testing.T) {
	var logMessages []string
	originalLogger := DebugLogger

	DebugLogger = func(format string, args ...interface{}) {
		logMessages = append(logMessages, format)
	}
	defer func() { DebugLogger = originalLogger }()

	debugLog("test message %s", "arg")

	if len(logMessages) != 1 {
		t.Errorf("Expected 1 log message, got %d", len(logMessages))
	}
}

func TestDebugLogger_Nil(t *testing.T) {
	originalLogger := DebugLogger
	DebugLogger = nil
	defer func() { DebugLogger = originalLogger }()

	// Should not panic when DebugLogger is nil
	debugLog("test message %s", "arg")
}

func BenchmarkResolve_Literal(b *testing.B) {
	r := NewResolver()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = r.Resolve(ctx, "192.168.1.100", 0)
	}
}
