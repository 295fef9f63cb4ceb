// Package hostcache maps addresses to host names through reverse DNS, with
// an LRU cache in front of the lookups.
package hostcache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/miekg/dns"
)

const (
	// DefaultSize is the number of entries kept.
	DefaultSize = 1000
	// DefaultTimeout bounds a single reverse lookup.
	DefaultTimeout = 2 * time.Second
	// DefaultResolvConf is read for the nameservers used by PTR queries.
	DefaultResolvConf = "/etc/resolv.conf"
	// DefaultWorkers is the concurrency of HostNames.
	DefaultWorkers = 32
)

// Errors
var (
	ErrNoName = errors.New("no PTR record")
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from reverse lookups.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// LookupFunc returns the host name of a bare IP literal.
type LookupFunc func(ctx context.Context, ip string) (string, error)

// Cache resolves and remembers host names. It is safe for concurrent use.
type Cache struct {
	// Timeout bounds each lookup; zero means DefaultTimeout.
	Timeout time.Duration
	// Lookup defaults to a PTR query against the system nameservers.
	Lookup LookupFunc

	entries *lru.Cache[string, string]
}

// New creates a cache holding at most size entries. A size <= 0 means DefaultSize.
func New(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &Cache{
		Timeout: DefaultTimeout,
		entries: entries,
	}
}

// HostName returns the host name for address, which may carry a port
// ("10.0.0.1:80", "[::1]:80"). When the lookup fails the address itself is
// returned, and that result is cached too.
func (c *Cache) HostName(ctx context.Context, address string) string {
	host := StripPort(address)
	if host == "" {
		return address
	}
	if name, ok := c.entries.Get(host); ok {
		return name
	}

	name, err := c.lookup(ctx, host)
	if err != nil && ctx.Err() != nil {
		// The caller gave up; that says nothing about the address.
		debugLog("%s: reverse lookup abandoned: %v", host, ctx.Err())
		return host
	}
	if err != nil {
		debugLog("%s: reverse lookup failed: %v", host, err)
		name = host
	} else {
		debugLog("%s -> %s", host, name)
	}
	c.entries.Add(host, name)
	return name
}

// HostNames looks up several addresses concurrently with at most workers
// lookups in flight. Results are in input order.
func (c *Cache) HostNames(ctx context.Context, addresses []string, workers int) []string {
	if len(addresses) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]string, len(addresses))
	jobs := make(chan int, len(addresses))
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range jobs {
			results[idx] = c.HostName(ctx, addresses[idx])
		}
	}

	for i := 0; i < workers && i < len(addresses); i++ {
		wg.Add(1)
		go worker()
	}
	for i := range addresses {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// Get returns a cached name without looking anything up.
func (c *Cache) Get(address string) (string, bool) {
	return c.entries.Get(StripPort(address))
}

// Add stores a name for address.
func (c *Cache) Add(address, name string) {
	c.entries.Add(StripPort(address), name)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return c.entries.Len() }

// Purge drops every entry.
func (c *Cache) Purge() { c.entries.Purge() }

// lookup waits at most Timeout for the lookup function. The function keeps
// running in the background if it ignores the context.
func (c *Cache) lookup(ctx context.Context, host string) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	fn := c.Lookup
	if fn == nil {
		fn = LookupPTR
	}

	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		name, err := fn(lookupCtx, host)
		ch <- result{name, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", r.err
		}
		name := strings.TrimSuffix(r.name, ".")
		if name == "" {
			return "", ErrNoName
		}
		return name, nil
	case <-lookupCtx.Done():
		return "", lookupCtx.Err()
	}
}

// LookupPTR queries the nameservers from DefaultResolvConf for the PTR
// record of ip. Without a readable configuration it falls back to the
// system resolver.
func LookupPTR(ctx context.Context, ip string) (string, error) {
	conf, err := dns.ClientConfigFromFile(DefaultResolvConf)
	if err != nil || len(conf.Servers) == 0 {
		return lookupSystem(ctx, ip)
	}

	servers := make([]string, 0, len(conf.Servers))
	for _, server := range conf.Servers {
		servers = append(servers, net.JoinHostPort(server, conf.Port))
	}
	return QueryPTR(ctx, servers, ip)
}

// QueryPTR asks each server ("host:port") in turn for the PTR record of ip
// and returns the first answer.
func QueryPTR(ctx context.Context, servers []string, ip string) (string, error) {
	reverse, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", err
	}
	msg := new(dns.Msg)
	msg.SetQuestion(reverse, dns.TypePTR)

	client := new(dns.Client)
	var lastErr error = ErrNoName
	for _, server := range servers {
		resp, _, err := client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("%s: %s", server, dns.RcodeToString[resp.Rcode])
			continue
		}
		for _, rr := range resp.Answer {
			if ptr, ok := rr.(*dns.PTR); ok {
				return ptr.Ptr, nil
			}
		}
		return "", ErrNoName
	}
	return "", lastErr
}

func lookupSystem(ctx context.Context, ip string) (string, error) {
	names, err := net.DefaultResolver.LookupAddr(ctx, ip)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", ErrNoName
	}
	return names[0], nil
}

// StripPort removes a ":port" suffix. Bare IPv6 literals are left alone.
func StripPort(address string) string {
	address = strings.TrimSpace(address)
	if host, _, err := net.SplitHostPort(address); err == nil {
		return host
	}
	return strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")
}
