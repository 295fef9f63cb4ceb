package netaddr

import (
	"context"
	"sync"

	"github.com/marcuoli/go-netaddr/pkg/netaddr/resolve"
)

var (
	defaultMu      sync.Mutex
	defaultLocator *Locator
)

// Default returns the shared Locator, created from OptionsFromEnv on first
// use. The environment is read only once.
func Default() *Locator {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLocator == nil {
		defaultLocator = New(OptionsFromEnv())
	}
	return defaultLocator
}

// SetDefault replaces the shared Locator. Passing nil makes the next call to
// Default read the environment again.
func SetDefault(l *Locator) {
	defaultMu.Lock()
	defaultLocator = l
	defaultMu.Unlock()
}

// LocalAddress calls Default().LocalAddress.
func LocalAddress(ctx context.Context) resolve.Address {
	return Default().LocalAddress(ctx)
}

// LocalHost calls Default().LocalHost.
func LocalHost(ctx context.Context) string {
	return Default().LocalHost(ctx)
}

// Resolve calls Default().Resolve.
func Resolve(ctx context.Context, host string) (resolve.Address, error) {
	return Default().Resolve(ctx, host)
}

// IPByHost calls Default().IPByHost.
func IPByHost(ctx context.Context, host string) string {
	return Default().IPByHost(ctx, host)
}

// Match calls Default().Match.
func Match(ctx context.Context, hostPattern, host string, port int) (bool, error) {
	return Default().Match(ctx, hostPattern, host, port)
}

// HostName calls Default().HostName.
func HostName(ctx context.Context, address string) string {
	return Default().HostName(ctx, address)
}

// FilterLocalHost calls Default().FilterLocalHost.
func FilterLocalHost(ctx context.Context, host string) string {
	return Default().FilterLocalHost(ctx, host)
}
