// Package weburl implements the browser's URL value type: an opaque,
// cloneable, totally orderable address with the flag bits the fetch
// pipeline and cache consult (spec.md §3 "URL").
package weburl

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Flags are the per-request bits carried alongside a URL.
type Flags uint16

const (
	// E2EReload bypasses the cache entirely (end-to-end reload).
	E2EReload Flags = 1 << iota
	// ReloadFromCache repushes a page from the cache without a round trip.
	ReloadFromCache
	// Post marks a POST request.
	Post
	// Get marks a GET request (mutually exclusive with Post in practice).
	Get
	// IgnoreScroll suppresses restoring a saved scroll position on load.
	IgnoreScroll
	// MultipartEnc requests multipart/form-data encoding for a POST body.
	MultipartEnc
	// SpamSafe marks a URL as ineligible for automatic redirect-following
	// into contexts that could leak a referrer (original_source/cookies.c
	// terminology, restored per SPEC_FULL.md §3).
	SpamSafe
	// Download marks a request that should be saved to disk rather than
	// rendered (spec.md §4.H references this flag without listing it
	// among the §3 bits it distills; restored here per SPEC_FULL.md §3
	// since §4.H needs it and nothing in the spec's Non-goals excludes
	// it — see DESIGN.md).
	Download
)

// Has reports whether all bits in want are set.
func (f Flags) Has(want Flags) bool { return f&want == want }

// URL is the browser's address value. Two URLs with the same fields but
// different Flags are still considered the same address by Equal/Compare;
// Flags are per-request routing information, not part of identity.
type URL struct {
	Scheme    string
	Authority string // user:pass@host:port, as written
	Host      string
	Port      string
	Path      string
	Query     string
	Fragment  string
	Flags     Flags
}

// Parse builds a URL value from raw text using the standard library parser
// (net/url is the only URL parser in the corpus and the ecosystem-idiomatic
// choice; see DESIGN.md).
func Parse(raw string) (URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URL{}, fmt.Errorf("parsing url %q: %w", raw, err)
	}
	host := u.Hostname()
	port := u.Port()
	return URL{
		Scheme:    u.Scheme,
		Authority: u.Host,
		Host:      host,
		Port:      port,
		Path:      u.EscapedPath(),
		Query:     u.RawQuery,
		Fragment:  u.Fragment,
	}, nil
}

// Clone returns an independent copy. URL contains only value fields, so
// this is a plain struct copy, but it is named and kept as a method for
// parity with the spec's "URL values are cloneable" invariant and to give
// ownership-transfer call sites an explicit, greppable clone point.
func (u URL) Clone() URL { return u }

// String renders the URL back to text, always including the fragment.
func (u URL) String() string {
	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteString("://")
	}
	b.WriteString(u.Authority)
	if u.Authority == "" && u.Host != "" {
		b.WriteString(u.Host)
		if u.Port != "" {
			b.WriteByte(':')
			b.WriteString(u.Port)
		}
	}
	b.WriteString(u.Path)
	if u.Query != "" {
		b.WriteByte('?')
		b.WriteString(u.Query)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.Fragment)
	}
	return b.String()
}

// sortKey is the ordered tuple Compare/Equal work from. Flags and
// Authority are excluded: Authority is a display form of Host+Port, and
// Flags are routing metadata, not identity (spec.md §3: "equality ignores
// fragment unless explicitly checked" implies identity is scheme/host/
// port/path/query, with fragment compared only on request).
func sortKey(u URL) [5]string {
	return [5]string{u.Scheme, u.Host, u.Port, u.Path, u.Query}
}

// Equal reports whether two URLs address the same resource, ignoring
// fragment, per spec.md §3.
func Equal(a, b URL) bool { return sortKey(a) == sortKey(b) }

// EqualWithFragment reports whether two URLs are identical including the
// fragment, for call sites that explicitly need fragment-sensitive
// comparison (spec.md §3: "unless explicitly checked").
func EqualWithFragment(a, b URL) bool {
	return Equal(a, b) && a.Fragment == b.Fragment
}

// Compare imposes a total order over URLs (scheme, host, port, path,
// query, then fragment as the final tiebreaker), needed by the cache's
// sorted entry list (spec.md §4.G "a sorted list of entries keyed by
// URL").
func Compare(a, b URL) int {
	ak, bk := sortKey(a), sortKey(b)
	for i := range ak {
		if c := strings.Compare(ak[i], bk[i]); c != 0 {
			return c
		}
	}
	return strings.Compare(a.Fragment, b.Fragment)
}

// registrableSuffix returns a coarse approximation of the registrable
// domain: the last two dot-separated labels of the host. The corpus has
// no public-suffix-list dependency, so this heuristic (sufficient for the
// same-organization checks in spec.md §4.E/§4.G) is implemented directly;
// see DESIGN.md for why no third-party library was pulled in for it.
func registrableSuffix(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// SameOrganization reports whether two URLs belong to the same
// registrable domain, the test spec.md §4.E/§4.G use to gate cookies and
// referrers to first-party contexts.
func SameOrganization(a, b URL) bool {
	if a.Host == "" || b.Host == "" {
		return false
	}
	return registrableSuffix(a.Host) == registrableSuffix(b.Host)
}

// HostPort renders host:port, defaulting the port from scheme when absent
// (used by transport backends building a Host header or dial address).
func (u URL) HostPort() string {
	if u.Port != "" {
		return u.Host + ":" + u.Port
	}
	return u.Host + ":" + DefaultPort(u.Scheme)
}

// DefaultPort returns the conventional port for a scheme, or "" if unknown.
func DefaultPort(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}

// PortNumber returns the numeric port, falling back to the scheme default.
func (u URL) PortNumber() (int, error) {
	p := u.Port
	if p == "" {
		p = DefaultPort(u.Scheme)
	}
	if p == "" {
		return 0, fmt.Errorf("no port for scheme %q", u.Scheme)
	}
	return strconv.Atoi(p)
}

// ResolveReference resolves ref (possibly relative) against base, the
// operation the cache's redirect/META-refresh handling needs.
func ResolveReference(base URL, ref string) (URL, error) {
	baseU, err := url.Parse(base.String())
	if err != nil {
		return URL{}, fmt.Errorf("re-parsing base %q: %w", base.String(), err)
	}
	refU, err := url.Parse(ref)
	if err != nil {
		return URL{}, fmt.Errorf("parsing reference %q: %w", ref, err)
	}
	resolved := baseU.ResolveReference(refU)
	return Parse(resolved.String())
}
