// Package capi implements the broker of spec.md §4.H: the single entry
// point fetch requests pass through on their way to the cache, the HTTP
// transport, or a helper-process backend.
//
// Generalizes the teacher's internal/proxy.Handler.ServeHTTP dispatch
// (danielloader-oci-pull-through): where the teacher branched on request
// path shape (manifest vs. blob, tag vs. digest) to choose a storage key
// and an upstream call, Broker branches on URL scheme to choose between
// satisfying from cache, opening the HTTP transport, or invoking the
// helper-process transport, then always funnels bytes through the same
// cache.Feed sink the teacher funneled bytes through its tee-to-store
// writer.
package capi

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/duskbrowser/core/internal/cache"
	"github.com/duskbrowser/core/internal/chain"
	"github.com/duskbrowser/core/internal/registry"
	"github.com/duskbrowser/core/internal/transport"
	"github.com/duskbrowser/core/internal/weburl"
)

// CookieSource is the subset of internal/cookiejar.Jar the broker needs
// to attach a Cookie header to outgoing HTTP requests.
type CookieSource interface {
	Get(target weburl.URL) string
}

// HelperGate decides whether a helper-process scheme request is allowed
// to proceed: either user-initiated or originating from a page already
// served by a helper backend (spec.md §4.H: "prevents privilege
// escalation via crafted links"). Callers (the navigation stack) know
// which pushes were user gestures; the broker only enforces the gate.
type HelperGate func(requester weburl.URL) bool

// Broker is the fetch pipeline's single entry point (spec.md §4.H).
type Broker struct {
	Cache   *cache.Cache
	HTTP    *transport.HTTPBackend
	Helper  *transport.HelperBackend
	Cookies CookieSource

	HelperAddr string
	HelperKey  string

	RefererPolicy func(target, requester weburl.URL) transport.Referer
	HelperGate    HelperGate

	mu    sync.Mutex
	conns *registry.Registry[*connection]
	byURL map[string]registry.Key
}

type connection struct {
	url  weburl.URL
	link *chain.Link
}

// New creates a Broker wired to the given cache and transport backends.
func New(c *cache.Cache, http *transport.HTTPBackend, helper *transport.HelperBackend, cookies CookieSource) *Broker {
	return &Broker{
		Cache:   c,
		HTTP:    http,
		Helper:  helper,
		Cookies: cookies,
		conns:   registry.New[*connection](),
		byURL:   make(map[string]registry.Key),
	}
}

// Open dispatches a fetch for web (spec.md §4.H "On open(web, callback,
// data)"): cache hits (and about: URLs, which the cache pre-populates)
// are served directly; cache misses start a new chain through the
// appropriate transport backend.
func (b *Broker) Open(ctx context.Context, web, requester weburl.URL, isRoot bool, depth int, render cache.ClientCallback) (cache.ClientKey, error) {
	if web.Scheme == "about" {
		// "served from the cache's pre-injected entries" (spec.md §4.H).
		return b.Cache.Open(web, requester, isRoot, depth, render), nil
	}

	if _, ok := b.Cache.Lookup(web); ok && !web.Flags.Has(weburl.E2EReload) {
		return b.Cache.Open(web, requester, isRoot, depth, render), nil
	}

	key := b.Cache.Open(web, requester, isRoot, depth, render)

	if isHelperScheme(web.Scheme) {
		if b.HelperGate != nil && !b.HelperGate(requester) {
			b.Cache.Abort(web, "helper-process request blocked: not user-initiated")
			return key, fmt.Errorf("helper request to %q blocked: not user-initiated", web.String())
		}
		if err := b.startHelper(ctx, web); err != nil {
			return key, err
		}
		return key, nil
	}

	if err := b.startHTTP(ctx, web, requester); err != nil {
		return key, err
	}
	return key, nil
}

func (b *Broker) startHTTP(ctx context.Context, web, requester weburl.URL) error {
	link := chain.NewLink(0)
	link.SetForward(nil, 0, func(op chain.Op, branch int, data []byte) bool {
		b.Cache.Feed(web, op, data)
		return true
	})
	b.track(web, link)

	spec := transport.RequestSpec{
		Method: "GET",
		Target: web,
	}
	if web.Flags.Has(weburl.Post) {
		spec.Method = "POST"
	}
	if b.Cookies != nil && weburl.SameOrganization(requester, web) {
		spec.Cookie = b.Cookies.Get(web)
	}
	if b.RefererPolicy != nil {
		spec.Referer = transport.BuildReferer(b.RefererPolicy(web, requester), requester)
	}

	if err := b.HTTP.Fetch(ctx, spec, link); err != nil {
		b.untrack(web)
		slog.Debug("http fetch failed", "url", web.String(), "error", err)
		return fmt.Errorf("opening %q: %w", web.String(), err)
	}
	return nil
}

func (b *Broker) startHelper(ctx context.Context, web weburl.URL) error {
	link := chain.NewLink(0)
	link.SetForward(nil, 0, func(op chain.Op, branch int, data []byte) bool {
		b.Cache.Feed(web, op, data)
		return true
	})
	b.track(web, link)

	if err := b.Helper.Open(ctx, b.HelperAddr, b.HelperKey, web, link); err != nil {
		b.untrack(web)
		slog.Debug("helper open failed", "url", web.String(), "error", err)
		return fmt.Errorf("opening %q via helper: %w", web.String(), err)
	}
	return nil
}

// Abort terminates both directions of any in-flight chain for web and
// aborts its cache clients (spec.md §5 "abort(url)").
func (b *Broker) Abort(web weburl.URL) {
	b.mu.Lock()
	key, ok := b.byURL[entryKey(web)]
	b.mu.Unlock()
	if !ok {
		return
	}
	conn, ok := b.conns.Lookup(key)
	if ok {
		conn.link.AbortBoth(nil)
	}
	b.untrack(web)
	b.Cache.Abort(web, "aborted")
}

func (b *Broker) track(web weburl.URL, link *chain.Link) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := b.conns.Insert(&connection{url: web, link: link})
	b.byURL[entryKey(web)] = key
}

func (b *Broker) untrack(web weburl.URL) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := entryKey(web)
	if key, ok := b.byURL[k]; ok {
		b.conns.Remove(key)
		delete(b.byURL, k)
	}
}

func entryKey(u weburl.URL) string {
	u.Fragment = ""
	return u.String()
}

func isHelperScheme(scheme string) bool {
	switch scheme {
	case "http":
		return false
	default:
		return true // https and everything else, per spec.md §4.E/§1
	}
}
