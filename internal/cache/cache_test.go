package cache

import (
	"testing"

	"github.com/duskbrowser/core/internal/chain"
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

func TestPlainGetDeliversBodyAndCloses(t *testing.T) {
	c := New(nil, nil, nil)
	target := mustURL(t, "http://example.com/index.html")

	var events []ClientOp
	var got []byte
	c.Open(target, weburl.URL{}, true, 0, func(op ClientOp, data []byte) {
		events = append(events, op)
		if op == ClientSend {
			got = append(got, data...)
		}
	})

	c.Feed(target, chain.Send, []byte("HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 5\r\n\r\nhello"))
	c.Feed(target, chain.End, nil)
	c.ProcessQueue()

	if string(got) != "hello" {
		t.Fatalf("got body %q, want %q", got, "hello")
	}
	if len(events) < 2 || events[0] != ClientStart || events[len(events)-1] != ClientClose {
		t.Fatalf("unexpected event sequence: %v", events)
	}
}

func TestRedirectFiresOnceForRootClient(t *testing.T) {
	c := New(nil, func(weburl.URL) bool { return true }, nil)
	target := mustURL(t, "http://example.com/old")

	var redirectTo string
	redirectCount := 0
	c.Open(target, weburl.URL{}, true, 0, func(op ClientOp, data []byte) {
		if op == ClientRedirect {
			redirectCount++
			redirectTo = string(data)
		}
	})

	c.Feed(target, chain.Send, []byte("HTTP/1.1 302 Found\r\nLocation: /new\r\n\r\n"))
	c.Feed(target, chain.End, nil)
	c.ProcessQueue()
	c.ProcessQueue() // second turn must not re-fire

	if redirectCount != 1 {
		t.Fatalf("redirect fired %d times, want 1", redirectCount)
	}
	if redirectTo != "http://example.com/new" {
		t.Fatalf("redirect target = %q", redirectTo)
	}
}

func TestRedirectLoopDetected(t *testing.T) {
	c := New(nil, func(weburl.URL) bool { return true }, nil)
	target := mustURL(t, "http://example.com/loop")

	var aborted bool
	c.Open(target, weburl.URL{}, true, MaxRedirectDepth, func(op ClientOp, data []byte) {
		if op == ClientAbort {
			aborted = true
		}
	})

	c.Feed(target, chain.Send, []byte("HTTP/1.1 302 Found\r\nLocation: /loop2\r\n\r\n"))
	c.Feed(target, chain.End, nil) // no Content-Type: End's sniff sets GotContentType
	c.ProcessQueue()

	if !aborted {
		t.Fatal("expected redirect-loop entry to abort its root client")
	}
}

func TestChunkedBodyDecodedBeforeDispatch(t *testing.T) {
	c := New(nil, nil, nil)
	target := mustURL(t, "http://example.com/chunked")

	var got []byte
	c.Open(target, weburl.URL{}, true, 0, func(op ClientOp, data []byte) {
		if op == ClientSend {
			got = append(got, data...)
		}
	})

	c.Feed(target, chain.Send, []byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n"))
	c.Feed(target, chain.Send, []byte("5\r\nhello\r\n0\r\n\r\n"))
	c.Feed(target, chain.End, nil)
	c.ProcessQueue()

	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

type stubJar struct {
	sets int
}

func (s *stubJar) Get(weburl.URL) string    { return "" }
func (s *stubJar) Set(weburl.URL, []string) { s.sets++ }

func TestSetCookieOnlyAppliedFirstParty(t *testing.T) {
	jar := &stubJar{}
	c := New(jar, nil, nil)
	target := mustURL(t, "http://example.com/page")
	thirdPartyRequester := mustURL(t, "http://other.org/page")

	c.Open(target, thirdPartyRequester, true, 0, func(ClientOp, []byte) {})
	c.Feed(target, chain.Send, []byte("HTTP/1.1 200 OK\r\nSet-Cookie: sid=1\r\n\r\n"))

	if jar.sets != 0 {
		t.Fatalf("third-party Set-Cookie should be dropped, got %d sets", jar.sets)
	}

	target2 := mustURL(t, "http://example.com/page2")
	firstPartyRequester := mustURL(t, "http://example.com/other")
	c.Open(target2, firstPartyRequester, true, 0, func(ClientOp, []byte) {})
	c.Feed(target2, chain.Send, []byte("HTTP/1.1 200 OK\r\nSet-Cookie: sid=1\r\n\r\n"))

	if jar.sets != 1 {
		t.Fatalf("first-party Set-Cookie should be applied, got %d sets", jar.sets)
	}
}
