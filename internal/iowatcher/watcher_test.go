package iowatcher

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/duskbrowser/core/internal/chain"
)

func TestReadLoopForwardsDataThenEnd(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	var mu sync.Mutex
	var got []byte
	ended := make(chan struct{})

	link := chain.NewLink(1)
	link.SetForward(nil, 0, func(op chain.Op, _ int, data []byte) bool {
		switch op {
		case chain.Send:
			mu.Lock()
			got = append(got, data...)
			mu.Unlock()
		case chain.End:
			close(ended)
		}
		return true
	})

	w := New()
	w.WatchRead(server, link)

	client.Write([]byte("hello"))
	client.Close()

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for End")
	}

	mu.Lock()
	defer mu.Unlock()
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestCloseRemovesRegistration(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	link := chain.NewLink(1)
	link.SetForward(nil, 0, func(chain.Op, int, []byte) bool { return true })

	w := New()
	key := w.WatchRead(server, link)

	if err := w.Close(key); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// second close should be a no-op, not an error
	if err := w.Close(key); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
