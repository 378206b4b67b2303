package transport

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/duskbrowser/core/internal/chain"
	"github.com/duskbrowser/core/internal/iowatcher"
	"github.com/duskbrowser/core/internal/resolver"
	"github.com/duskbrowser/core/internal/weburl"
)

func TestHTTPBackendFetchStreamsResponse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	const body = "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"
	serverDone := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reqLine, _ := bufio.NewReader(conn).ReadString('\n')
		serverDone <- reqLine
		conn.Write([]byte(body))
	}()

	host, port, _ := net.SplitHostPort(ln.Addr().String())

	res := resolver.New(2, resolver.WithLookupFunc(func(ctx context.Context, h string) ([]string, error) {
		return []string{host}, nil
	}))
	watcher := iowatcher.New()
	backend := &HTTPBackend{
		Resolver: res,
		Watcher:  watcher,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, address)
		},
		DialTimeout: 2 * time.Second,
	}

	target := weburl.URL{Scheme: "http", Host: "example.internal", Port: port, Path: "/"}
	link := chain.NewLink(1)

	var got strings.Builder
	endCh := make(chan struct{})
	link.SetForward(nil, 0, func(op chain.Op, branch int, data []byte) bool {
		switch op {
		case chain.Send:
			got.Write(data)
		case chain.End:
			close(endCh)
		case chain.Abort:
			t.Errorf("unexpected abort: %s", data)
			close(endCh)
		}
		return true
	})

	if err := backend.Fetch(context.Background(), RequestSpec{Method: "GET", Target: target}, link); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	select {
	case <-endCh:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for response")
	}

	if !strings.Contains(got.String(), "hello") {
		t.Errorf("got response %q, want it to contain %q", got.String(), "hello")
	}

	select {
	case reqLine := <-serverDone:
		if !strings.HasPrefix(reqLine, "GET / HTTP/1.1") {
			t.Errorf("unexpected request line: %q", reqLine)
		}
	default:
		t.Error("server never received a request")
	}
}
