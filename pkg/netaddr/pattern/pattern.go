// Package pattern matches hosts against IP patterns.
//
// Two pattern families are supported, told apart by the presence of '/':
//
//   - CIDR: "10.0.0.0/8", "2001:db8::/32". No port is allowed.
//   - Segmented: an IPv4 or IPv6 address whose segments may be '*' or a
//     range "lo-hi" (decimal for IPv4, hex for IPv6), optionally followed by
//     a port: "192.168.1.*", "172.16-31.*.*:8080", "[234e:0:4567:0:0:0:3d:*]:80".
//
// A segmented pattern without '*' or '-' is treated as a host name and
// compared by resolved address, so "myhost" matches the address myhost
// resolves to.
package pattern

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/marcuoli/go-netaddr/pkg/netaddr/resolve"
)

// ErrMalformedPattern is returned for patterns that violate the segment rules.
var ErrMalformedPattern = errors.New("malformed host pattern")

// Error describes why a pattern was rejected.
type Error struct {
	Pattern string
	Reason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("host pattern %q: %s", e.Pattern, e.Reason)
}

func (e *Error) Unwrap() error { return ErrMalformedPattern }

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from pattern matching.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Resolver turns a host into an address. *resolve.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, host string, timeout time.Duration) (resolve.Address, error)
}

var defaultResolver = resolve.NewResolver()

type segmentKind int

const (
	segLiteral segmentKind = iota
	segAny
	segRange
)

type segment struct {
	kind   segmentKind
	text   string
	lo, hi uint64
}

// view is the pattern as read for one address family. The family decides
// how a ':' is interpreted, so the same text can yield different views.
type view struct {
	family    resolve.Family
	host      string
	hasPort   bool
	anyPort   bool
	badPort   bool
	port      int
	universal bool
	expr      bool
	segments  []segment
	err       error
}

// HostPattern is a parsed pattern. It is immutable and safe for concurrent use.
type HostPattern struct {
	raw    string
	cidr   bool
	prefix netip.Prefix
	v4, v6 view
}

// Parse parses a pattern. It fails when the text is malformed for every
// address family it could apply to.
func Parse(pattern string) (*HostPattern, error) {
	p := strings.TrimSpace(pattern)
	if p == "" {
		return nil, &Error{Pattern: pattern, Reason: "empty pattern"}
	}

	hp := &HostPattern{raw: p}
	if strings.Contains(p, "/") {
		prefix, err := netip.ParsePrefix(p)
		if err != nil {
			return nil, &Error{Pattern: p, Reason: "invalid CIDR: " + err.Error()}
		}
		hp.cidr = true
		hp.prefix = prefix.Masked()
		return hp, nil
	}

	hp.v4 = parseView(p, resolve.IPv4)
	hp.v6 = parseView(p, resolve.IPv6)
	// An IPv4 view with an unparsable port can never match, so it does not
	// keep an otherwise broken pattern alive.
	v4Usable := hp.v4.err == nil && !hp.v4.badPort
	if hp.v6.err != nil && !v4Usable {
		if hp.v4.err != nil && strings.Contains(p, ".") {
			return nil, hp.v4.err
		}
		return nil, hp.v6.err
	}
	return hp, nil
}

// MustParse is like Parse but panics on error.
func MustParse(pattern string) *HostPattern {
	hp, err := Parse(pattern)
	if err != nil {
		panic(err)
	}
	return hp
}

// String returns the trimmed source text.
func (hp *HostPattern) String() string { return hp.raw }

// IsCIDR reports whether the pattern is in CIDR form.
func (hp *HostPattern) IsCIDR() bool { return hp.cidr }

// Match reports whether hostOrAddr, resolved through r, matches the pattern
// on the given port. A nil r uses a shared default resolver. Any error means
// the host must be treated as not matching.
func (hp *HostPattern) Match(ctx context.Context, r Resolver, hostOrAddr string, port int) (bool, error) {
	if r == nil {
		r = defaultResolver
	}
	subject, err := r.Resolve(ctx, hostOrAddr, 0)
	if err != nil {
		return false, err
	}

	if hp.cidr {
		return hp.prefix.Contains(subject.Addr().WithZone("")), nil
	}

	v := &hp.v4
	if subject.Family() == resolve.IPv6 {
		v = &hp.v6
	}
	if v.err != nil {
		return false, v.err
	}
	if v.hasPort && !v.anyPort && (v.badPort || v.port != port) {
		return false, nil
	}
	if v.universal {
		return true, nil
	}

	text := segmentText(subject.Addr())
	if v.host == text {
		return true, nil
	}

	if !v.expr {
		want, err := r.Resolve(ctx, v.host, 0)
		if err != nil {
			debugLog("%s: pattern host %q did not resolve: %v", hp.raw, v.host, err)
			return false, err
		}
		return want.Addr() == subject.Addr(), nil
	}

	parts := strings.Split(text, separator(v.family))
	if len(parts) != len(v.segments) {
		return false, nil
	}
	for i, seg := range v.segments {
		if !seg.match(parts[i], radix(v.family)) {
			return false, nil
		}
	}
	return true, nil
}

// Match parses pattern and matches host and port against it.
func Match(ctx context.Context, r Resolver, pattern, host string, port int) (bool, error) {
	hp, err := Parse(pattern)
	if err != nil {
		return false, err
	}
	return hp.Match(ctx, r, host, port)
}

func parseView(p string, family resolve.Family) view {
	v := view{family: family}

	var port string
	switch {
	case strings.HasPrefix(p, "[") && strings.Contains(p, "]:"):
		end := strings.Index(p, "]:")
		v.host, port, v.hasPort = p[1:end], p[end+2:], true
	case strings.HasPrefix(p, "[") && strings.HasSuffix(p, "]"):
		v.host = p[1 : len(p)-1]
	case family == resolve.IPv4 && strings.Contains(p, ":"):
		i := strings.Index(p, ":")
		v.host, port, v.hasPort = p[:i], p[i+1:], true
	default:
		v.host = p
	}

	if v.hasPort {
		if port == "*" {
			v.anyPort = true
		} else if n, err := strconv.Atoi(port); err == nil && n >= 0 && n <= 65535 {
			v.port = n
		} else {
			// A literal IPv6 pattern read as IPv4 lands here; it can never match.
			v.badPort = true
		}
	}

	if v.host == "*" || v.host == "*.*.*.*" {
		v.universal = true
		return v
	}
	if v.host == "" {
		v.err = &Error{Pattern: p, Reason: "empty host"}
		return v
	}

	v.expr = strings.ContainsAny(v.host, "*-")
	if !v.expr {
		return v
	}

	sep, want := separator(family), 4
	if family == resolve.IPv6 {
		want = 8
		if strings.Contains(v.host, "::") {
			v.err = &Error{Pattern: p, Reason: "IPv6 pattern with wildcards must list all 8 segments, '::' is not allowed"}
			return v
		}
	}
	parts := strings.Split(v.host, sep)
	if len(parts) != want {
		v.err = &Error{Pattern: p, Reason: fmt.Sprintf("%v pattern with wildcards needs %d segments, got %d", family, want, len(parts))}
		return v
	}

	v.segments = make([]segment, len(parts))
	for i, s := range parts {
		seg, err := parseSegment(s, radix(family))
		if err != nil {
			v.err = &Error{Pattern: p, Reason: err.Error()}
			return v
		}
		v.segments[i] = seg
	}
	return v
}

func parseSegment(s string, base int) (segment, error) {
	switch {
	case s == "*":
		return segment{kind: segAny, text: s}, nil
	case strings.Contains(s, "-"):
		bounds := splitNonEmpty(s, '-')
		if len(bounds) != 2 {
			return segment{}, fmt.Errorf("wrong range format %q", s)
		}
		lo, err := strconv.ParseUint(bounds[0], base, 32)
		if err != nil {
			return segment{}, fmt.Errorf("wrong range bound %q", bounds[0])
		}
		hi, err := strconv.ParseUint(bounds[1], base, 32)
		if err != nil {
			return segment{}, fmt.Errorf("wrong range bound %q", bounds[1])
		}
		return segment{kind: segRange, text: s, lo: lo, hi: hi}, nil
	default:
		return segment{kind: segLiteral, text: s}, nil
	}
}

func (s segment) match(part string, base int) bool {
	switch s.kind {
	case segAny:
		return true
	case segRange:
		n, err := strconv.ParseUint(part, base, 32)
		return err == nil && n >= s.lo && n <= s.hi
	default:
		if s.text == part {
			return true
		}
		// Zero-padded IPv6 segments: "0" in the address equals any run of zeros.
		return part == "0" && (s.text == "00" || s.text == "000" || s.text == "0000")
	}
}

// segmentText renders addr the way segments are compared: dotted decimal for
// IPv4, eight lower-case hex groups without leading zeros for IPv6.
func segmentText(addr netip.Addr) string {
	if addr.Is4() {
		return addr.String()
	}
	b := addr.As16()
	groups := make([]string, 8)
	for i := range groups {
		groups[i] = strconv.FormatUint(uint64(b[2*i])<<8|uint64(b[2*i+1]), 16)
	}
	return strings.Join(groups, ":")
}

func separator(f resolve.Family) string {
	if f == resolve.IPv6 {
		return ":"
	}
	return "."
}

func radix(f resolve.Family) int {
	if f == resolve.IPv6 {
		return 16
	}
	return 10
}

func splitNonEmpty(s string, sep rune) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == sep })
}
