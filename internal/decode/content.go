package decode

import (
	"bytes"
	"compress/gzip"
	"io"
	"sync"
)

// Gzip decodes a gzip content-encoded stream. There is no third-party
// gzip transducer anywhere in the corpus, and compress/gzip is itself the
// ecosystem-idiomatic choice for this concern (see DESIGN.md), so this is
// built directly on the standard library.
//
// gzip.Reader is pull-based (it wants a blocking io.Reader), but the cache
// feeds decoders push-style as bytes arrive. Gzip bridges the two with an
// io.Pipe and a background goroutine, the same push-to-pull shape as the
// teacher's stream.TeeToStore (internal/stream/tee.go in the teacher
// repo): a writer goroutine (here, Process/Finalize) feeds the pipe, and
// a reader goroutine drains the gzip.Reader into a buffer that Process
// hands back.
type Gzip struct {
	pw *io.PipeWriter

	mu        sync.Mutex
	out       bytes.Buffer
	err       error
	exhausted bool
	done      chan struct{}
}

// NewGzip creates a streaming gzip content decoder.
func NewGzip() *Gzip {
	pr, pw := io.Pipe()
	g := &Gzip{pw: pw, done: make(chan struct{})}

	go func() {
		defer close(g.done)
		gz, err := gzip.NewReader(pr)
		if err != nil {
			g.fail(err)
			io.Copy(io.Discard, pr)
			return
		}
		buf := make([]byte, 32*1024)
		for {
			n, err := gz.Read(buf)
			if n > 0 {
				g.mu.Lock()
				g.out.Write(buf[:n])
				g.mu.Unlock()
			}
			if err != nil {
				if err != io.EOF {
					// Window 32 KiB is gzip's native window; recoverable
					// on stream end, error on an invalid block, per
					// spec.md §4.F.
					g.fail(err)
				}
				io.Copy(io.Discard, pr)
				return
			}
		}
	}()

	return g
}

func (g *Gzip) fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
	g.exhausted = true
}

// Process feeds compressed bytes in and returns any inflated bytes ready
// so far.
func (g *Gzip) Process(data []byte) []byte {
	if g.Exhausted() {
		return nil
	}
	if _, err := g.pw.Write(data); err != nil {
		g.fail(err)
		return g.drain()
	}
	return g.drain()
}

// Finalize closes the input side and waits for the reader goroutine to
// drain, returning any final bytes.
func (g *Gzip) Finalize() []byte {
	g.pw.Close()
	<-g.done
	return g.drain()
}

// Exhausted reports whether the stream entered an unrecoverable state.
func (g *Gzip) Exhausted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.exhausted
}

func (g *Gzip) drain() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.out.Len() == 0 {
		return nil
	}
	b := append([]byte(nil), g.out.Bytes()...)
	g.out.Reset()
	return b
}
