// Package browser wires every fetch-pipeline component into one context
// (spec.md §5): a shared cache, broker, resolver, and I/O watcher, plus
// the single-goroutine event loop that drains the cache's delayed
// dispatch queue, the resize-idle queue, and deferred navigation-stack
// callbacks.
//
// Grounded on the teacher's main.go (danielloader-oci-pull-through):
// where that file built one http.Server from one Store and ran it on a
// single goroutine until a signal told it to stop, Browser.New builds
// the fetch pipeline's component graph from one config.Config, and Loop
// generalizes that single goroutine from "serve HTTP requests" to
// "drain three work queues" (spec.md §5's "event loop with three work
// queues").
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/duskbrowser/core/internal/cache"
	"github.com/duskbrowser/core/internal/capi"
	"github.com/duskbrowser/core/internal/config"
	"github.com/duskbrowser/core/internal/cookiejar"
	"github.com/duskbrowser/core/internal/iowatcher"
	"github.com/duskbrowser/core/internal/nav"
	"github.com/duskbrowser/core/internal/resolver"
	"github.com/duskbrowser/core/internal/transport"
	"github.com/duskbrowser/core/internal/weburl"
	"github.com/duskbrowser/core/internal/widget"
)

// Browser is one browser context: the set of components spec.md §5 says
// are shared across every window (cache, broker, resolver, watcher,
// cookie jar) plus the loop that drives them.
type Browser struct {
	Config config.Config

	Resolver *resolver.Resolver
	Watcher  *iowatcher.Watcher
	HTTP     *transport.HTTPBackend
	Helper   *transport.HelperBackend
	Cookies  *cookiejar.Jar
	Cache    *cache.Cache
	Broker   *capi.Broker

	Loop *Loop
}

// New builds a Browser context from cfg. A missing or unreadable cookie
// policy file is not fatal: spec.md §4.G's cookie interface degrades to
// ACCEPT-everything rather than refusing to start.
func New(cfg config.Config) (*Browser, error) {
	policy, err := loadCookiePolicy(cfg.CookiePolicyPath)
	if err != nil {
		slog.Warn("falling back to accept-all cookie policy", "path", cfg.CookiePolicyPath, "error", err)
		policy = nil
	}
	if policy == nil {
		// No usable policy file: DEFAULT ACCEPT with no other rules.
		policy, _ = cookiejar.ParsePolicy(strings.NewReader("DEFAULT ACCEPT\n"))
	}
	jar := cookiejar.NewJar(policy)

	res := resolver.New(cfg.ResolverWorkers)
	watcher := iowatcher.New()

	httpBackend := transport.NewHTTPBackend(res, watcher)
	if cfg.DialTimeout > 0 {
		httpBackend.DialTimeout = cfg.DialTimeout
	}
	helperBackend := transport.NewHelperBackend(nil)

	c := cache.New(jar, allowAllDomains, noopDispatcher)
	broker := capi.New(c, httpBackend, helperBackend, jar)
	broker.HelperAddr = cfg.HelperAddr
	broker.HelperKey = cfg.HelperKey
	broker.RefererPolicy = func(target, requester weburl.URL) transport.Referer {
		if weburl.SameOrganization(requester, target) {
			return transport.RefererFull
		}
		return transport.RefererSchemeAuthority
	}

	seedAboutPages(c)

	return &Browser{
		Config:   cfg,
		Resolver: res,
		Watcher:  watcher,
		HTTP:     httpBackend,
		Helper:   helperBackend,
		Cookies:  jar,
		Cache:    c,
		Broker:   broker,
		Loop:     NewLoop(c),
	}, nil
}

// aboutBlank is the built-in empty document spec.md §4.H's about: URLs
// resolve to when nothing more specific has been seeded.
const aboutBlank = "about:blank"

// seedAboutPages pre-injects the cache's built-in about: documents, per
// spec.md §4.H "about: URLs ... served from the cache's pre-injected
// entries". Grounded on a_Cache_init (original_source/src/cache.c:113),
// which injects "about:splash" into the cache at startup the same way,
// before any window exists to request it.
func seedAboutPages(c *cache.Cache) {
	blank, err := weburl.Parse(aboutBlank)
	if err != nil {
		slog.Error("seeding about pages", "url", aboutBlank, "error", err)
		return
	}
	c.Seed(blank, "text/html", nil)
}

func loadCookiePolicy(path string) (*cookiejar.Policy, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cookie policy %q: %w", path, err)
	}
	defer f.Close()

	policy, err := cookiejar.ParsePolicy(f)
	if err != nil {
		return nil, fmt.Errorf("parsing cookie policy %q: %w", path, err)
	}
	return policy, nil
}

// allowAllDomains is the default DomainPolicy: no site blocklist is part
// of this build (spec.md §1's GUI/rendering toolkit is out of scope, and
// with it the preferences UI that would populate one), so every redirect
// target is permitted.
func allowAllDomains(weburl.URL) bool { return true }

// noopDispatcher is the default TypeDispatcher: this core has no
// HTML/CSS/image renderer to hand content off to (spec.md §1 non-goals),
// so callers needing delivery always register an explicit ClientCallback
// with Cache.Open/Broker.Open instead of relying on type-based dispatch.
func noopDispatcher(string, bool) cache.ClientCallback { return nil }

// FetchResult summarizes a completed fetch for cmd/duskcore's CLI output
// (spec.md §6's reinterpreted CLI surface).
type FetchResult struct {
	Status         string // "ok", "not_found", "redirect_loop", "error"
	TypeNormalized string
	ByteCount      int
	RedirectChain  []string // each hop's URL, in order, root first
	Err            error
}

// Fetch drives one end-to-end root-URL fetch through the broker, running
// the event loop until the resulting cache entry closes, errors, or ctx
// is done.
//
// It drives one headless internal/nav.Stack per call (spec.md §4.I):
// cmd/duskcore has no window to own a long-lived one, but the push/
// expect/redirect-following bookkeeping is still real production code,
// not a test fake, so it is the stack's Push/ExpectDone that follows
// redirects here, through a navOpener that threads an incrementing depth
// into each hop's Broker.Open so the cache's own redirect-loop detection
// (internal/cache/header.go's MaxRedirectDepth) can fire.
//
// That detection keys off a freshly created cache entry, so a literal
// redirect back to a URL already in the chain never re-parses headers
// and never re-triggers it (the entry it would flag is already
// finished). navOpener bounds itself at MaxRedirectDepth hops too, the
// same backstop Cache_entry_search_with_redirect's hardcoded iteration
// cap gave the original implementation (original_source/src/cache.c's
// "i == 3" break) against exactly this case.
func (b *Browser) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	target, err := weburl.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", rawURL, err)
	}

	opener := &navOpener{b: b, ctx: ctx}
	opener.stack = nav.New(opener, nil, b.Loop)
	opener.stack.Push(target, target)

	if opener.err != nil {
		return nil, opener.err
	}
	return &opener.result, nil
}

// navOpener implements internal/nav.Opener for a single headless Fetch:
// each OpenURL call is one redirect hop, synchronously resolved (Go's
// call stack doing the waiting nav.Stack would otherwise need a live
// window and event loop for), driving the same stack.Push/ExpectDone
// machinery a real window's link clicks and redirects would.
type navOpener struct {
	b     *Browser
	ctx   context.Context
	stack *nav.Stack

	depth  int
	chain  []string
	result FetchResult
	err    error
}

// OpenURL resolves target (ignoring requester: every hop of a headless
// Fetch is self-referencing for cookie purposes, matching the direct-
// URL-entry case in spec.md §4.G's first-party check, not a link's
// actual referrer) and either commits it via ExpectDone or re-enters the
// stack with the redirect target.
func (o *navOpener) OpenURL(target, requester weburl.URL, offset int) {
	if o.depth >= cache.MaxRedirectDepth {
		o.result = FetchResult{Status: "redirect_loop", RedirectChain: o.chain}
		return
	}

	result, next, err := o.b.fetchOnce(o.ctx, target, o.depth)
	if err != nil {
		o.err = err
		return
	}
	o.chain = append(o.chain, target.String())
	o.depth++

	if next == nil {
		result.RedirectChain = o.chain
		o.result = *result
		o.stack.ExpectDone()
		return
	}
	// A redirect back to the URL still being expected is a new hop, not a
	// duplicate push, so drop the expect before pushing it.
	o.stack.CancelExpect()
	o.stack.Push(*next, target)
}

// fetchOnce opens target as a root client, at depth hops from the
// original navigation, and waits for its entry to settle; next is
// non-nil when the entry redirected and the caller should follow it.
// depth is threaded straight into Broker.Open so the cache's own
// MaxRedirectDepth counter (internal/cache/header.go) advances on every
// hop instead of staying pinned at 0, the only thing that lets
// RedirectLoop ever fire for this, Fetch's redirect-following loop.
func (b *Browser) fetchOnce(ctx context.Context, target weburl.URL, depth int) (*FetchResult, *weburl.URL, error) {
	done := make(chan struct{})
	var result FetchResult
	var next *weburl.URL

	callback := func(op cache.ClientOp, data []byte) {
		switch op {
		case cache.ClientClose:
			entry, ok := b.Cache.Lookup(target)
			if ok {
				result.TypeNormalized = entry.TypeNormalized
				result.ByteCount = len(entry.Data)
				switch {
				case entry.Flags.Has(cache.RedirectLoop):
					result.Status = "redirect_loop"
				case entry.Flags.Has(cache.NotFound):
					result.Status = "not_found"
				case entry.Flags.Has(cache.Redirect):
					result.Status = "redirect"
					if entry.Location != nil {
						loc := *entry.Location
						next = &loc
					}
				default:
					result.Status = "ok"
				}
			}
			close(done)
		case cache.ClientAbort:
			result.Err = fmt.Errorf("fetching %q: %s", target.String(), string(data))
			close(done)
		}
	}

	if _, err := b.Broker.Open(ctx, target, target, true, depth, callback); err != nil {
		return nil, nil, err
	}

	if err := b.Loop.RunUntil(ctx, done); err != nil {
		return nil, nil, err
	}
	if result.Err != nil {
		return nil, nil, result.Err
	}
	return &result, next, nil
}

// Loop is the single-goroutine driver of spec.md §5: one place that
// repeatedly drains the cache's delayed-dispatch queue, the widget
// resize-idle queue, and any deferred navigation-stack callback, instead
// of each component scheduling its own timer.
type Loop struct {
	cache    *cache.Cache
	resize   *widget.Queue
	deferred chan func()
}

// NewLoop creates a Loop bound to c. A Loop's Resize queue is created
// empty; callers with a widget tree attach it via SetResizeQueue.
func NewLoop(c *cache.Cache) *Loop {
	return &Loop{cache: c, deferred: make(chan func(), 64)}
}

// SetResizeQueue attaches the widget resize queue this loop drains each
// turn. Headless fetches (cmd/duskcore) never set one.
func (l *Loop) SetResizeQueue(q *widget.Queue) { l.resize = q }

// Defer implements internal/nav.Scheduler: fn runs on the loop's next
// drain, "lets CCC operations end before making the request"
// (original_source/src/nav.c's a_Timeout_add(0.0, ...) comment, quoted in
// internal/nav's package doc).
func (l *Loop) Defer(fn func()) { l.deferred <- fn }

// tickInterval bounds how long a drain waits for new work before
// re-checking the cache's dispatch queue; chain callbacks can deliver
// bytes to an entry at any time from a transport goroutine, so the loop
// cannot simply block on the deferred channel alone.
const tickInterval = 10 * time.Millisecond

// RunUntil drains the loop until done is closed or ctx is canceled.
func (l *Loop) RunUntil(ctx context.Context, done <-chan struct{}) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			l.drainOnce()
			return nil
		case fn := <-l.deferred:
			fn()
		case <-ticker.C:
			l.drainOnce()
		}
	}
}

func (l *Loop) drainOnce() {
	l.cache.ProcessQueue()
	if l.resize != nil {
		l.resize.Drain()
	}
}
