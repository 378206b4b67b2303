package decode

import (
	"bytes"
	"strconv"
	"strings"
)

type chunkState int

const (
	stateSize chunkState = iota
	stateData
	stateDataCRLF
	stateTrailer
	stateDone
)

// Chunked decodes HTTP/1.1 chunked transfer encoding: hex chunk lengths,
// CRLF framing, a final zero-length chunk terminates, and any trailing
// headers are discarded (spec.md §4.F).
type Chunked struct {
	buf       []byte
	state     chunkState
	remaining int
	exhausted bool
}

// NewChunked creates a Chunked transfer decoder.
func NewChunked() *Chunked { return &Chunked{} }

// Process feeds in more framed bytes and returns any decoded data bytes
// available so far.
func (c *Chunked) Process(data []byte) []byte {
	if c.exhausted {
		return nil
	}
	c.buf = append(c.buf, data...)
	return c.parse()
}

// Finalize flushes any remaining decodable bytes. Well-formed input leaves
// nothing to flush; malformed/truncated input marks the decoder exhausted
// rather than erroring, per spec.md §4.F.
func (c *Chunked) Finalize() []byte {
	out := c.parse()
	if c.state != stateDone {
		c.exhausted = true
	}
	return out
}

// Exhausted reports whether the decoder hit an unrecoverable framing
// error and will produce no further bytes.
func (c *Chunked) Exhausted() bool { return c.exhausted }

func (c *Chunked) parse() []byte {
	var out []byte
	for {
		switch c.state {
		case stateSize:
			idx := indexCRLF(c.buf)
			if idx < 0 {
				return out
			}
			line := c.buf[:idx]
			c.buf = c.buf[idx+2:]
			sizeField := line
			if i := bytes.IndexByte(line, ';'); i >= 0 {
				sizeField = line[:i]
			}
			n, err := strconv.ParseInt(strings.TrimSpace(string(sizeField)), 16, 64)
			if err != nil || n < 0 {
				c.exhausted = true
				return out
			}
			if n == 0 {
				c.state = stateTrailer
			} else {
				c.remaining = int(n)
				c.state = stateData
			}

		case stateData:
			if len(c.buf) == 0 {
				return out
			}
			take := c.remaining
			if take > len(c.buf) {
				take = len(c.buf)
			}
			out = append(out, c.buf[:take]...)
			c.buf = c.buf[take:]
			c.remaining -= take
			if c.remaining > 0 {
				return out
			}
			c.state = stateDataCRLF

		case stateDataCRLF:
			if len(c.buf) < 2 {
				return out
			}
			c.buf = c.buf[2:]
			c.state = stateSize

		case stateTrailer:
			idx := indexCRLF(c.buf)
			if idx < 0 {
				return out
			}
			line := c.buf[:idx]
			c.buf = c.buf[idx+2:]
			if len(line) == 0 {
				c.state = stateDone
				return out
			}
			// trailing header line: discarded per spec.md §4.F

		case stateDone:
			return out
		}
	}
}

func indexCRLF(b []byte) int {
	return bytes.Index(b, []byte("\r\n"))
}
