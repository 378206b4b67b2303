// Package resolver implements the DNS resolver interface of spec.md §4.D:
// async hostname→address resolution with a per-host cache, one-query-per-
// host coalescing, and a bounded worker pool.
package resolver

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Status reports the outcome of a resolution.
type Status int

const (
	// OK means addresses is non-empty and valid.
	OK Status = iota
	// Error means resolution failed; addresses is empty.
	Error
)

// Callback receives the one-shot result of a Resolve call, synchronously
// on a cache hit or asynchronously once a worker completes, per spec.md
// §4.D.
type Callback func(status Status, addresses []string)

// lookupFunc performs the actual hostname lookup; swappable for tests.
type lookupFunc func(ctx context.Context, host string) ([]string, error)

// Resolver coalesces concurrent lookups for the same hostname with
// golang.org/x/sync/singleflight (pulled from the pack's own dependency
// surface — see SPEC_FULL.md §4.D) and bounds concurrent background
// resolution to workers, queuing excess requests FIFO via the semaphore's
// buffered channel.
type Resolver struct {
	lookup lookupFunc
	group  singleflight.Group
	sem    chan struct{}
	ttl    time.Duration
	mu     sync.Mutex
	cache  map[string]cacheEntry
}

type cacheEntry struct {
	addresses []string
	expiresAt time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTTL overrides the per-host cache TTL (default 60s).
func WithTTL(d time.Duration) Option {
	return func(r *Resolver) { r.ttl = d }
}

// WithLookupFunc overrides the lookup implementation (for tests).
func WithLookupFunc(f lookupFunc) Option {
	return func(r *Resolver) { r.lookup = f }
}

// New creates a Resolver with the given worker pool size.
func New(workers int, opts ...Option) *Resolver {
	if workers < 1 {
		workers = 1
	}
	r := &Resolver{
		lookup: defaultLookup,
		sem:    make(chan struct{}, workers),
		ttl:    60 * time.Second,
		cache:  make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve calls cb(status, addresses) exactly once: synchronously on a
// cache hit, or asynchronously after a worker finishes. Concurrent
// Resolve calls for the same hostname share a single underlying lookup
// (spec.md §4.D: "exactly one resolution is performed; all waiting
// callbacks are invoked from the result").
func (r *Resolver) Resolve(ctx context.Context, hostname string, cb Callback) {
	if addrs, ok := r.cacheLookup(hostname); ok {
		cb(OK, addrs)
		return
	}

	go func() {
		// Acquire a worker slot. Requests beyond the pool wait in FIFO
		// order for a worker (spec.md §4.D), modeled by blocking on the
		// buffered semaphore channel, which Go's runtime serves FIFO-ish
		// via its internal channel wait queue.
		select {
		case r.sem <- struct{}{}:
		case <-ctx.Done():
			cb(Error, nil)
			return
		}
		defer func() { <-r.sem }()

		// A lookup that finished while this request waited for a slot
		// has already filled the cache.
		if addrs, ok := r.cacheLookup(hostname); ok {
			cb(OK, addrs)
			return
		}

		v, err, _ := r.group.Do(hostname, func() (any, error) {
			return r.lookup(ctx, hostname)
		})
		if err != nil {
			// On program exit, pending callbacks may be dropped per
			// spec.md §5; a canceled context is treated as such a drop.
			if ctx.Err() != nil {
				return
			}
			cb(Error, nil)
			return
		}
		addrs := v.([]string)
		r.cacheStore(hostname, addrs)
		cb(OK, addrs)
	}()
}

func (r *Resolver) cacheLookup(hostname string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.cache[hostname]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.addresses, true
}

func (r *Resolver) cacheStore(hostname string, addrs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[hostname] = cacheEntry{addresses: addrs, expiresAt: time.Now().Add(r.ttl)}
}

// defaultLookup resolves via the standard library's net.DefaultResolver.
func defaultLookup(ctx context.Context, host string) ([]string, error) {
	return net.DefaultResolver.LookupHost(ctx, host)
}
