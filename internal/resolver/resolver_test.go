package resolver

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCoalescesConcurrentLookups(t *testing.T) {
	var calls int32
	block := make(chan struct{})

	r := New(4, WithLookupFunc(func(ctx context.Context, host string) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		<-block
		return []string{"1.2.3.4"}, nil
	}))

	const n = 10
	var wg sync.WaitGroup
	results := make([]Status, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			done := make(chan struct{})
			r.Resolve(context.Background(), "example.test", func(status Status, addrs []string) {
				results[i] = status
				close(done)
			})
			<-done
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 underlying lookup, got %d", got)
	}
	for i, s := range results {
		if s != OK {
			t.Fatalf("result %d: expected OK, got %v", i, s)
		}
	}
}

func TestCacheHitIsSynchronous(t *testing.T) {
	var calls int32
	r := New(1, WithLookupFunc(func(ctx context.Context, host string) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return []string{"1.2.3.4"}, nil
	}))

	done := make(chan struct{})
	r.Resolve(context.Background(), "example.test", func(Status, []string) { close(done) })
	<-done

	called := false
	r.Resolve(context.Background(), "example.test", func(status Status, addrs []string) {
		called = true
		if status != OK || len(addrs) != 1 {
			t.Fatalf("unexpected cached result: %v %v", status, addrs)
		}
	})
	if !called {
		t.Fatal("expected cache hit to invoke callback synchronously")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected cache hit to avoid a second lookup, got %d calls", got)
	}
}

func TestErrorReportsStatus(t *testing.T) {
	r := New(1, WithLookupFunc(func(ctx context.Context, host string) ([]string, error) {
		return nil, context.DeadlineExceeded
	}))

	done := make(chan struct{})
	var status Status
	r.Resolve(context.Background(), "nowhere.test", func(s Status, addrs []string) {
		status = s
		close(done)
	})
	<-done
	if status != Error {
		t.Fatalf("expected Error status, got %v", status)
	}
}
