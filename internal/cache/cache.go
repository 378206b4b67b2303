package cache

import (
	"log/slog"
	"sync"

	"github.com/duskbrowser/core/internal/registry"
	"github.com/duskbrowser/core/internal/weburl"
)

// CookieJar is the subset of internal/cookiejar.Jar the cache depends on.
type CookieJar interface {
	Get(target weburl.URL) string
	Set(target weburl.URL, setCookieHeaders []string)
}

// DomainPolicy reports whether a redirect (or fetch) into target is
// permitted, gating the SpamSafe-style refusal of spec.md §4.G.
type DomainPolicy func(target weburl.URL) bool

// Cache is the shared content cache of spec.md §4.G. One Cache is shared
// by every window in a Browser context.
//
// Generalizes the teacher's internal/cache.Store: where the teacher held
// exactly one object keyed by a content digest, Cache holds many entries
// keyed by URL, each with its own client queue and decoder pipeline.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry // key: weburl identity string, ignoring fragment

	clients *registry.Registry[*Client]

	dispatcher   TypeDispatcher
	cookies      CookieJar
	domainPolicy DomainPolicy

	// HugeFileThreshold overrides the default huge-file Content-Length
	// threshold; 0 means use the package default.
	HugeFileThreshold int64

	delayed []*Client // delayed-dispatch queue, drained on the next event-loop turn
}

// New creates an empty Cache.
func New(cookies CookieJar, domainPolicy DomainPolicy, dispatcher TypeDispatcher) *Cache {
	return &Cache{
		entries:      make(map[string]*Entry),
		clients:      registry.New[*Client](),
		cookies:      cookies,
		domainPolicy: domainPolicy,
		dispatcher:   dispatcher,
	}
}

func entryKey(u weburl.URL) string {
	u.Fragment = ""
	return u.String()
}

// Open registers a new client for web (spec.md §4.G "Open semantics").
// depth is the recursive-redirect count leading to this open, 0 for a
// fresh navigation; the broker increments it when following a redirect.
// render may be nil, in which case the cache's TypeDispatcher assigns a
// callback once the content type is known.
func (c *Cache) Open(web weburl.URL, requester weburl.URL, isRoot bool, depth int, render ClientCallback) ClientKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := entryKey(web)

	if web.Flags.Has(weburl.E2EReload) {
		delete(c.entries, key)
	}

	entry, existed := c.entries[key]
	if !existed {
		entry = newEntry(web)
		entry.redirectDepth = depth
		entry.firstRequester = requester
		c.entries[key] = entry
	}

	client := &Client{entry: entry, isRoot: isRoot, requester: requester, callback: render}
	client.key = c.clients.Insert(client)
	entry.clients = append(entry.clients, client)

	if existed && len(entry.Data) > 0 {
		// "enqueue the new client and schedule a delayed dispatch of the
		// already-available bytes" (spec.md §4.G).
		c.delayed = append(c.delayed, client)
	}

	slog.Debug("cache open", "url", web.String(), "existed", existed, "root", isRoot)
	return client.key
}

// Lookup returns the entry for web, if any, mainly for callers (the
// broker) deciding whether a fetch still needs to be started.
func (c *Cache) Lookup(web weburl.URL) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[entryKey(web)]
	return e, ok
}

// StopClient dequeues a client (spec.md §5 "stop_client(key)"). It
// reports whether this was the entry's last client, so the caller can
// abort the backing transport.
func (c *Cache) StopClient(key ClientKey) (lastOnEntry bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, ok := c.clients.Lookup(key)
	if !ok {
		return false
	}
	c.clients.Remove(key)

	entry := client.entry
	entry.lock()
	c.unrefData(entry, client)
	entry.clients = removeClient(entry.clients, client)
	lastOnEntry = len(entry.clients) == 0
	entry.unlock()
	return lastOnEntry
}

// Seed pre-injects full page content directly into the cache, bypassing
// any transport, for spec.md §4.H "about: URLs ... served from the
// cache's pre-injected entries". Grounded on the original's
// Cache_entry_inject (original_source/src/cache.c:264), "used for
// about:splash. May be used for about:cache too": an existing entry for
// web is reused if present (a re-Seed overwrites it), otherwise one is
// created; the entry is marked as if a transport had already delivered
// it in full, so Open's ordinary dispatch path serves it with no fetch.
func (c *Cache) Seed(web weburl.URL, contentType string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := entryKey(web)
	entry, existed := c.entries[key]
	if !existed {
		entry = newEntry(web)
		c.entries[key] = entry
	}

	entry.lock()
	entry.TypeHeader = contentType
	entry.TypeNormalized = contentType
	entry.Data = append([]byte(nil), body...)
	entry.ExpectedSize = int64(len(body))
	entry.TransferSize = int64(len(body))
	entry.Flags |= GotHeader | GotLength | GotContentType | GotData
	if len(body) > 0 {
		entry.Flags &^= IsEmpty
	}
	entry.unlock()
}

func removeClient(clients []*Client, target *Client) []*Client {
	out := clients[:0]
	for _, c := range clients {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}

// Abort delivers ClientAbort to every client of web and removes the
// entry, per spec.md §5 "abort(url) propagates ... forward to all of
// that URL's clients as Abort".
func (c *Cache) Abort(web weburl.URL, reason string) {
	c.mu.Lock()
	key := entryKey(web)
	entry, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	for _, client := range entry.clients {
		client.callback(ClientAbort, []byte(reason))
	}
}
