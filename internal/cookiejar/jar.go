package cookiejar

import (
	"strings"
	"sync"

	"github.com/duskbrowser/core/internal/weburl"
)

// entry is one stored cookie, keyed by host+name.
type entry struct {
	name, value string
	session     bool
}

// Jar is an in-memory cookie store gated by a Policy and, at the cache
// layer, by the first-party-only rule of spec.md §4.G (Set only applied
// when requester and target share an organization — callers enforce that
// check before calling Set; the Jar itself is policy-only, not origin-
// aware, matching the original's split between cache.c and cookies.c).
type Jar struct {
	mu      sync.Mutex
	policy  *Policy
	cookies map[string][]entry // host -> entries
}

// NewJar creates a Jar enforcing policy. A nil policy denies everything.
func NewJar(policy *Policy) *Jar {
	if policy == nil {
		policy = &Policy{rules: make(map[string]Action), def: Deny}
	}
	return &Jar{policy: policy, cookies: make(map[string][]entry)}
}

// Set offers one or more Set-Cookie header values for target's host to
// the jar. Cookies are dropped per-host according to the policy's
// resolved action; AcceptSession cookies are stored but flagged session-
// only (persistence across restarts is out of scope, so this flag is
// currently inert, kept for parity with spec.md §6's action set).
func (j *Jar) Set(target weburl.URL, setCookieHeaders []string) {
	action := j.policy.Resolve(target.Host)
	if action == Deny {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	for _, raw := range setCookieHeaders {
		name, value, ok := parseSetCookie(raw)
		if !ok {
			continue
		}
		j.cookies[target.Host] = upsert(j.cookies[target.Host], entry{
			name:    name,
			value:   value,
			session: action == AcceptSession,
		})
	}
}

// Get returns the Cookie header value to send for target, or "" if none.
func (j *Jar) Get(target weburl.URL) string {
	j.mu.Lock()
	defer j.mu.Unlock()
	entries := j.cookies[target.Host]
	if len(entries) == 0 {
		return ""
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, e.name+"="+e.value)
	}
	return strings.Join(parts, "; ")
}

func upsert(entries []entry, e entry) []entry {
	for i, existing := range entries {
		if existing.name == e.name {
			entries[i] = e
			return entries
		}
	}
	return append(entries, e)
}

// parseSetCookie extracts the name=value pair from a Set-Cookie header,
// ignoring attributes (Path, Domain, Expires, ...); attribute-scoped
// cookie matching is out of scope (spec.md §1 excludes cookie-jar
// persistence; this jar only needs enough fidelity to drive the policy
// gate in §4.G).
func parseSetCookie(raw string) (name, value string, ok bool) {
	first, _, _ := strings.Cut(raw, ";")
	first = strings.TrimSpace(first)
	name, value, ok = strings.Cut(first, "=")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(name), strings.TrimSpace(value), true
}
