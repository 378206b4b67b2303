package decode

import (
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Charset decodes a named charset to UTF-8, replacing undecodable bytes
// with U+FFFD (spec.md §4.F). golang.org/x/text is already an indirect
// dependency of the teacher's go.mod; this promotes it to direct use, the
// ecosystem-standard way to do charset transcoding in Go (see
// SPEC_FULL.md §4.F / DESIGN.md).
type Charset struct {
	tr        transform.Transformer // nil means identity (already UTF-8)
	leftover  []byte
	exhausted bool
}

// NewCharset resolves name (an HTML/HTTP charset label, e.g. "iso-8859-1",
// "shift_jis") to a decoder. "utf-8" (and an empty name) resolve to the
// identity transform.
func NewCharset(name string) (*Charset, error) {
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return &Charset{}, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, err
	}
	return &Charset{tr: enc.NewDecoder()}, nil
}

// Process decodes data, returning whatever complete UTF-8 output is
// available; a trailing partial multi-byte sequence is buffered until the
// next call or Finalize.
func (c *Charset) Process(data []byte) []byte {
	return c.transform(data, false)
}

// Finalize flushes any buffered input at end of stream.
func (c *Charset) Finalize() []byte {
	return c.transform(nil, true)
}

// Exhausted reports whether the decoder hit an unrecoverable error.
func (c *Charset) Exhausted() bool { return c.exhausted }

func (c *Charset) transform(data []byte, atEOF bool) []byte {
	if c.exhausted {
		return nil
	}
	if c.tr == nil {
		return data
	}

	src := append(c.leftover, data...)
	dst := make([]byte, len(src)*4+64)
	var out []byte
	pos := 0

	for {
		nDst, nSrc, err := c.tr.Transform(dst, src[pos:], atEOF)
		out = append(out, dst[:nDst]...)
		pos += nSrc

		switch err {
		case nil:
			c.leftover = nil
			return out
		case transform.ErrShortDst:
			dst = make([]byte, len(dst)*2)
		case transform.ErrShortSrc:
			c.leftover = append([]byte(nil), src[pos:]...)
			return out
		default:
			// Most x/text decoders replace unmappable bytes with U+FFFD
			// rather than erroring; a genuine error here means the
			// decoder is in an unrecoverable state (spec.md §4.F).
			c.exhausted = true
			c.leftover = nil
			return out
		}
	}
}
