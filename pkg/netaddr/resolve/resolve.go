// Package resolve provides hostname resolution under a hard timeout.
//
// The operating system resolver can block for a long time when a DNS server
// is unreachable. Resolve issues the lookup on a background task and stops
// waiting once the timeout elapses; the task itself is not interrupted but
// ends on its own lifetime, concurrent lookups of the same name share one
// task, and the number of lookups in flight is capped.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTimeout is how long a caller waits for a lookup.
	DefaultTimeout = 1000 * time.Millisecond
	// DefaultTaskLifetime bounds a background lookup nobody waits for anymore.
	DefaultTaskLifetime = 30 * time.Second
	// DefaultConcurrency is the number of OS lookups allowed in flight.
	DefaultConcurrency = 16
)

// Errors
var (
	// ErrResolutionTimeout is returned when a lookup does not finish in time.
	ErrResolutionTimeout = errors.New("name resolution timed out")
	// ErrResolutionFailed is returned when the resolver reports an error.
	ErrResolutionFailed = errors.New("name resolution failed")
	// ErrInvalidAddress is returned for input that can be neither an IP literal nor a host name.
	ErrInvalidAddress = errors.New("invalid address")
)

// Error records a failed resolution and the host it was for.
type Error struct {
	Host string
	Err  error
}

func (e *Error) Error() string { return "resolve " + e.Host + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from resolver operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// LookupFunc performs the blocking forward lookup.
type LookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

// ZoneFunc maps an IPv6 zone name to its numeric interface index.
type ZoneFunc func(name string) (int, error)

// Resolver resolves host names with a bounded wait.
// A Resolver must not be copied after first use.
type Resolver struct {
	// Timeout is used when Resolve is called with a non-positive timeout.
	Timeout time.Duration
	// TaskLifetime bounds each background lookup.
	TaskLifetime time.Duration
	// Concurrency caps the number of lookups in flight.
	Concurrency int
	// PreferIPv6 picks IPv6 results over IPv4 when both are returned.
	PreferIPv6 bool
	// Lookup defaults to the system resolver.
	Lookup LookupFunc
	// ZoneIndex defaults to net.InterfaceByName.
	ZoneIndex ZoneFunc

	once  sync.Once
	sem   *semaphore.Weighted
	group singleflight.Group
}

// NewResolver creates a resolver with defaults.
func NewResolver() *Resolver {
	return &Resolver{
		Timeout:      DefaultTimeout,
		TaskLifetime: DefaultTaskLifetime,
		Concurrency:  DefaultConcurrency,
	}
}

// Resolve returns the preferred address for host. Literal IPs return
// immediately; anything else waits at most timeout (DefaultTimeout when
// timeout <= 0) or until ctx is done.
func (r *Resolver) Resolve(ctx context.Context, host string, timeout time.Duration) (Address, error) {
	addrs, err := r.ResolveAll(ctx, host, timeout)
	if err != nil {
		return Address{}, err
	}
	return r.pick(addrs), nil
}

// ResolveAll is like Resolve but returns every address in resolver order.
func (r *Resolver) ResolveAll(ctx context.Context, host string, timeout time.Duration) ([]Address, error) {
	host = strings.TrimSpace(host)
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}
	if host == "" {
		return nil, &Error{Host: host, Err: ErrInvalidAddress}
	}

	if ip, err := netip.ParseAddr(host); err == nil {
		if ip.Zone() == "" || isNumeric(ip.Zone()) {
			return []Address{AddressFrom(ip)}, nil
		}
		// Named zones need an interface lookup; that goes through the bounded path.
	} else if looksNumeric(host) {
		debugLog("%s: not a valid IP literal", host)
		return nil, &Error{Host: host, Err: ErrInvalidAddress}
	}

	if timeout <= 0 {
		timeout = r.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := r.group.DoChan(host, func() (interface{}, error) {
		return r.run(host, timeout)
	})

	select {
	case res := <-ch:
		// A result racing the caller's deadline loses to it.
		if waitCtx.Err() != nil {
			return nil, r.waitError(host, timeout, waitCtx.Err())
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]Address)), nil
	case <-waitCtx.Done():
		return nil, r.waitError(host, timeout, waitCtx.Err())
	}
}

func (r *Resolver) waitError(host string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		debugLog("%s: timed out after %v", host, timeout)
		return &Error{Host: host, Err: ErrResolutionTimeout}
	}
	return &Error{Host: host, Err: fmt.Errorf("%w: %w", ErrResolutionFailed, err)}
}

// run executes one shared lookup on its own lifetime, detached from any caller.
// The lifetime is never shorter than the wait of the caller that started it.
func (r *Resolver) run(host string, timeout time.Duration) ([]Address, error) {
	ctx, cancel := context.WithTimeout(context.Background(), max(r.lifetime(), timeout))
	defer cancel()

	sem := r.semaphore()
	if err := sem.Acquire(ctx, 1); err != nil {
		debugLog("%s: no lookup slot: %v", host, err)
		return nil, &Error{Host: host, Err: ErrResolutionTimeout}
	}
	defer sem.Release(1)

	start := time.Now()
	lookup := r.Lookup
	if lookup == nil {
		lookup = systemLookup
	}
	ipAddrs, err := lookup(ctx, host)
	if err != nil && ctx.Err() != nil {
		debugLog("%s: lookup outlived its task after %v: %v", host, time.Since(start), err)
		return nil, &Error{Host: host, Err: ErrResolutionTimeout}
	}
	if err != nil {
		debugLog("%s: lookup failed after %v: %v", host, time.Since(start), err)
		return nil, &Error{Host: host, Err: fmt.Errorf("%w: %w", ErrResolutionFailed, err)}
	}

	addrs := make([]Address, 0, len(ipAddrs))
	for _, ia := range ipAddrs {
		ip, ok := netip.AddrFromSlice(ia.IP)
		if !ok {
			continue
		}
		ip = ip.Unmap()
		if ip.Is6() && ia.Zone != "" {
			zone, err := r.normalizeZone(ia.Zone)
			if err != nil {
				debugLog("%s: zone %q: %v", host, ia.Zone, err)
				return nil, &Error{Host: host, Err: fmt.Errorf("%w: %w", ErrResolutionFailed, err)}
			}
			ip = ip.WithZone(zone)
		}
		addrs = append(addrs, AddressFrom(ip))
	}
	if len(addrs) == 0 {
		return nil, &Error{Host: host, Err: fmt.Errorf("%w: no addresses", ErrResolutionFailed)}
	}
	debugLog("%s -> %s (%v)", host, addrs[0], time.Since(start))
	return addrs, nil
}

func (r *Resolver) pick(addrs []Address) Address {
	want := IPv4
	if r.PreferIPv6 {
		want = IPv6
	}
	for _, a := range addrs {
		if a.Family() == want {
			return a
		}
	}
	return addrs[0]
}

func (r *Resolver) normalizeZone(zone string) (string, error) {
	if isNumeric(zone) {
		return zone, nil
	}
	zoneIndex := r.ZoneIndex
	if zoneIndex == nil {
		zoneIndex = interfaceIndex
	}
	idx, err := zoneIndex(zone)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(idx), nil
}

func (r *Resolver) semaphore() *semaphore.Weighted {
	r.once.Do(func() {
		n := r.Concurrency
		if n <= 0 {
			n = DefaultConcurrency
		}
		r.sem = semaphore.NewWeighted(int64(n))
	})
	return r.sem
}

func (r *Resolver) lifetime() time.Duration {
	lt := r.TaskLifetime
	if lt <= 0 {
		lt = DefaultTaskLifetime
	}
	return max(lt, r.Timeout)
}

func systemLookup(ctx context.Context, host string) ([]net.IPAddr, error) {
	if strings.ContainsRune(host, '%') {
		ipaddr, err := net.ResolveIPAddr("ip6", host)
		if err != nil {
			return nil, err
		}
		return []net.IPAddr{*ipaddr}, nil
	}
	return net.DefaultResolver.LookupIPAddr(ctx, host)
}

func interfaceIndex(name string) (int, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return 0, err
	}
	return ifi.Index, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// looksNumeric reports whether s is made only of digits and dots. Such a
// name can never be a valid host name, so a failed literal parse is final.
func looksNumeric(s string) bool {
	if !strings.Contains(s, ".") {
		return false
	}
	for _, c := range s {
		if c != '.' && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
