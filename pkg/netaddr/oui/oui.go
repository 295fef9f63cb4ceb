// Package oui names the manufacturer of a hardware address using the IEEE
// OUI registry (oui.txt).
package oui

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/oui"
)

// DefaultPaths are the locations searched for oui.txt when no path is set.
var DefaultPaths = []string{
	"/usr/share/ieee-data/oui.txt",
	"/var/lib/ieee-data/oui.txt",
	"/usr/share/misc/oui.txt",
}

// Errors
var (
	ErrNoDatabase = errors.New("no OUI database found")
	ErrInvalidMAC = errors.New("invalid MAC address")
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from vendor lookups.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Vendor describes the registrant of a MAC prefix.
type Vendor struct {
	Manufacturer string
	Address      []string
	Country      string
	Prefix       string
}

// Registry loads the database on first use. It is safe for concurrent use.
type Registry struct {
	path string

	once sync.Once
	db   oui.OuiDB
	err  error
}

// New returns a registry reading path, or the first existing entry of
// DefaultPaths when path is empty.
func New(path string) *Registry {
	return &Registry{path: path}
}

func (r *Registry) load() error {
	r.once.Do(func() {
		path := r.path
		if path == "" {
			path = findDatabase()
		}
		if path == "" {
			r.err = ErrNoDatabase
			debugLog("no OUI database in %s", strings.Join(DefaultPaths, ", "))
			return
		}
		debugLog("loading OUI database from %s", path)
		db, err := oui.OpenStaticFile(path)
		if err != nil {
			r.err = fmt.Errorf("open OUI database %s: %w", path, err)
			return
		}
		r.db = db
	})
	return r.err
}

func findDatabase() string {
	for _, p := range DefaultPaths {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

// Loaded reports whether the database was read successfully.
func (r *Registry) Loaded() bool {
	return r.load() == nil
}

// Lookup returns the vendor of mac. An unknown prefix yields nil, nil.
func (r *Registry) Lookup(mac net.HardwareAddr) (*Vendor, error) {
	if len(mac) < 3 {
		return nil, ErrInvalidMAC
	}
	if err := r.load(); err != nil {
		return nil, err
	}

	entry, err := r.db.Query(mac.String())
	if err != nil {
		if errors.Is(err, oui.ErrNotFound) {
			debugLog("%s: vendor not found", mac)
			return nil, nil
		}
		return nil, fmt.Errorf("OUI lookup %s: %w", mac, err)
	}

	v := &Vendor{
		Manufacturer: entry.Manufacturer,
		Address:      entry.Address,
		Country:      entry.Country,
		Prefix:       entry.Prefix.String(),
	}
	debugLog("%s -> %s", mac, v.Manufacturer)
	return v, nil
}

// Name returns the manufacturer of mac, or "" when unknown or unavailable.
func (r *Registry) Name(mac net.HardwareAddr) string {
	v, err := r.Lookup(mac)
	if err != nil || v == nil {
		return ""
	}
	return v.Manufacturer
}

// ParseMAC accepts "00:11:22:33:44:55", "00-11-22-33-44-55", "0011.2233.4455"
// and "001122334455".
func ParseMAC(s string) (net.HardwareAddr, error) {
	hex := strings.ToLower(strings.TrimSpace(s))
	hex = strings.NewReplacer("-", "", ":", "", ".", "").Replace(hex)
	if len(hex) != 12 {
		return nil, ErrInvalidMAC
	}
	var b strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(hex[i : i+2])
	}
	mac, err := net.ParseMAC(b.String())
	if err != nil {
		return nil, ErrInvalidMAC
	}
	return mac, nil
}
