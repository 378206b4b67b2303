package capi

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/duskbrowser/core/internal/cache"
	"github.com/duskbrowser/core/internal/iowatcher"
	"github.com/duskbrowser/core/internal/resolver"
	"github.com/duskbrowser/core/internal/transport"
	"github.com/duskbrowser/core/internal/weburl"
)

func mustURL(t *testing.T, raw string) weburl.URL {
	t.Helper()
	u, err := weburl.Parse(raw)
	if err != nil {
		t.Fatalf("Parse(%q): %v", raw, err)
	}
	return u
}

func TestOpenHTTPServesThroughToCache(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		bufio.NewReader(conn).ReadString('\n')
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 2\r\n\r\nhi"))
	}()

	host, port, _ := net.SplitHostPort(ln.Addr().String())
	res := resolver.New(1, resolver.WithLookupFunc(func(ctx context.Context, h string) ([]string, error) {
		return []string{host}, nil
	}))
	watcher := iowatcher.New()
	httpBackend := &transport.HTTPBackend{
		Resolver: res,
		Watcher:  watcher,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, address)
		},
		DialTimeout: 2 * time.Second,
	}

	c := cache.New(nil, nil, nil)
	broker := New(c, httpBackend, nil, nil)

	target := weburl.URL{Scheme: "http", Host: "example.internal", Port: port, Path: "/"}

	done := make(chan struct{})
	var got strings.Builder
	_, err = broker.Open(context.Background(), target, weburl.URL{}, true, 0, func(op cache.ClientOp, data []byte) {
		if op == cache.ClientSend {
			got.Write(data)
		}
		if op == cache.ClientClose {
			close(done)
		}
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		c.ProcessQueue()
		select {
		case <-done:
			if got.String() != "hi" {
				t.Fatalf("got %q, want %q", got.String(), "hi")
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for dispatch")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestOpenAboutServesFromCacheOnly(t *testing.T) {
	// No HTTP or helper backend wired: if Open ever tried to start a
	// transport for an about: URL, it would nil-pointer-dereference.
	c := cache.New(nil, nil, nil)
	broker := New(c, nil, nil, nil)

	about := mustURL(t, "about:blank")
	c.Seed(about, "text/html", []byte("<html></html>"))

	var started, closed bool
	var got strings.Builder
	_, err := broker.Open(context.Background(), about, weburl.URL{}, true, 0, func(op cache.ClientOp, data []byte) {
		switch op {
		case cache.ClientStart:
			started = true
		case cache.ClientSend:
			got.Write(data)
		case cache.ClientClose:
			closed = true
		}
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	c.ProcessQueue()

	if !started {
		t.Fatal("expected ClientStart, about: URL was never dispatched")
	}
	if !closed {
		t.Fatal("expected ClientClose, pre-injected entry never finished")
	}
	if got.String() != "<html></html>" {
		t.Fatalf("got %q, want %q", got.String(), "<html></html>")
	}
}

func TestOpenAboutUnseededNeverDispatches(t *testing.T) {
	c := cache.New(nil, nil, nil)
	broker := New(c, nil, nil, nil)

	about := mustURL(t, "about:nonexistent")
	var started bool
	_, err := broker.Open(context.Background(), about, weburl.URL{}, true, 0, func(op cache.ClientOp, data []byte) {
		if op == cache.ClientStart {
			started = true
		}
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	c.ProcessQueue()

	if started {
		t.Fatal("unseeded about: URL dispatched without any pre-injected content")
	}
}

func TestHelperGateBlocksNonUserInitiated(t *testing.T) {
	c := cache.New(nil, nil, nil)
	broker := New(c, nil, transport.NewHelperBackend(nil), nil)
	broker.HelperGate = func(requester weburl.URL) bool { return false }

	target := mustURL(t, "mailto:someone@example.com")
	_, err := broker.Open(context.Background(), target, weburl.URL{}, true, 0, func(cache.ClientOp, []byte) {})
	if err == nil {
		t.Fatal("expected helper gate to block the request")
	}
}
