package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/duskbrowser/core/internal/chain"
	"github.com/duskbrowser/core/internal/weburl"
)

// KV is one attribute of a dpip tag, kept as a slice (not a map) so the
// wire encoding is order-stable, matching the attribute order the
// dialogues in spec.md §6 show.
type KV struct {
	Key, Value string
}

// Tag is one parsed dpip command: `<name key='value' key='value' '>`.
type Tag struct {
	Name  string
	Attrs []KV
}

// Get returns the value of attr, or "" if absent.
func (t Tag) Get(attr string) string {
	for _, kv := range t.Attrs {
		if kv.Key == attr {
			return kv.Value
		}
	}
	return ""
}

func escapeValue(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}

func unescapeValue(s string) string {
	return strings.ReplaceAll(s, `\'`, "'")
}

// EncodeTag renders name and attrs as a dpip command string (spec.md §6).
func EncodeTag(name string, attrs ...KV) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(name)
	for _, kv := range attrs {
		b.WriteByte(' ')
		b.WriteString(kv.Key)
		b.WriteString("='")
		b.WriteString(escapeValue(kv.Value))
		b.WriteByte('\'')
	}
	b.WriteString(" '>")
	return b.String()
}

// tagDecoder tokenizes a dpip stream: tags are identified by the "'>"
// closer preceded by whitespace, per spec.md §6's tokenizer rule.
type tagDecoder struct {
	r   *bufio.Reader
	buf []byte
}

func newTagDecoder(r io.Reader) *tagDecoder {
	return &tagDecoder{r: bufio.NewReader(r)}
}

// nextTag reads and parses one tag, growing its internal buffer until it
// observes the " '>" closing delimiter.
func (d *tagDecoder) nextTag() (Tag, error) {
	for {
		if idx := strings.Index(string(d.buf), " '>"); idx >= 0 {
			raw := d.buf[:idx+3]
			d.buf = d.buf[idx+3:]
			return parseTag(string(raw))
		}
		chunk := make([]byte, 4096)
		n, err := d.r.Read(chunk)
		if n > 0 {
			d.buf = append(d.buf, chunk[:n]...)
		}
		if err != nil {
			return Tag{}, err
		}
	}
}

func parseTag(raw string) (Tag, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "<") || !strings.HasSuffix(raw, "'>") {
		return Tag{}, fmt.Errorf("malformed dpip tag: %q", raw)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(raw, "<"), "'>")
	body = strings.TrimSpace(body)

	fields := splitAttrs(body)
	if len(fields) == 0 {
		return Tag{}, fmt.Errorf("empty dpip tag: %q", raw)
	}
	tag := Tag{Name: fields[0]}
	for _, f := range fields[1:] {
		eq := strings.Index(f, "='")
		if eq < 0 {
			continue
		}
		key := f[:eq]
		val := strings.TrimSuffix(f[eq+2:], "'")
		tag.Attrs = append(tag.Attrs, KV{Key: key, Value: unescapeValue(val)})
	}
	return tag, nil
}

// splitAttrs splits "name key='v 1' key2='v2'" on the spaces that separate
// attributes, respecting quoted values that may contain spaces.
func splitAttrs(body string) []string {
	var fields []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\'' && (i == 0 || body[i-1] != '\\'):
			inQuote = !inQuote
			cur.WriteByte(c)
		case c == ' ' && !inQuote:
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}

// HelperBackend speaks the dpip framed protocol to a local helper daemon
// for schemes the core does not fetch natively — HTTPS included, since
// modern TLS is explicitly delegated (spec.md §1 non-goals). Grounded on
// the same read/forward shape as internal/iowatcher, since the daemon
// connection needs the same "one burst, forward through the chain"
// handling once past the tag-framed header.
type HelperBackend struct {
	Dial Dialer

	// HandshakeAttempts and HandshakeInterval implement the retry policy
	// of spec.md §5: up to 12 attempts at 250ms.
	HandshakeAttempts int
	HandshakeInterval time.Duration
}

// NewHelperBackend creates a HelperBackend with the spec's default
// handshake retry policy.
func NewHelperBackend(dial Dialer) *HelperBackend {
	return &HelperBackend{
		Dial:              dial,
		HandshakeAttempts: 12,
		HandshakeInterval: 250 * time.Millisecond,
	}
}

// Open connects to the helper daemon at addr, sends an open_url command
// for target authenticated with key, and forwards the response on link:
// each recognized command tag (send_status_message, chat, dialog,
// start_send_page, reload_request) is forwarded as a chain.Send carrying
// its re-encoded tag text, and once start_send_page arrives the remainder
// of the connection is forwarded as raw page bytes until EOF (chain.End)
// or error (chain.Abort).
func (b *HelperBackend) Open(ctx context.Context, addr, key string, target weburl.URL, link *chain.Link) error {
	conn, err := b.dialWithRetry(ctx, addr)
	if err != nil {
		link.SendForward(chain.Abort, []byte(err.Error()))
		return fmt.Errorf("connecting to helper daemon at %q: %w", addr, err)
	}

	cmd := EncodeTag("open_url", KV{Key: "url", Value: target.String()}, KV{Key: "key", Value: key})
	if _, err := conn.Write([]byte(cmd)); err != nil {
		conn.Close()
		link.SendForward(chain.Abort, []byte(err.Error()))
		return fmt.Errorf("sending open_url: %w", err)
	}

	link.SendForward(chain.Start, nil)
	go b.pump(conn, link)
	return nil
}

func (b *HelperBackend) dialWithRetry(ctx context.Context, addr string) (net.Conn, error) {
	attempts := b.HandshakeAttempts
	if attempts < 1 {
		attempts = 12
	}
	interval := b.HandshakeInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, err := b.Dial(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("helper daemon handshake failed after %d attempts: %w", attempts, lastErr)
}

func (b *HelperBackend) pump(conn net.Conn, link *chain.Link) {
	defer conn.Close()
	dec := newTagDecoder(conn)

	for {
		tag, err := dec.nextTag()
		if err != nil {
			if err == io.EOF {
				link.SendForward(chain.End, nil)
			} else {
				link.SendForward(chain.Abort, []byte(err.Error()))
			}
			return
		}
		link.SendForward(chain.Send, []byte(EncodeTag(tag.Name, tag.Attrs...)))
		if tag.Name == "start_send_page" {
			break
		}
	}

	buf := make([]byte, 32*1024)
	if n := len(dec.buf); n > 0 {
		link.SendForward(chain.Send, append([]byte(nil), dec.buf...))
	}
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			link.SendForward(chain.Send, chunk)
		}
		if err != nil {
			if err == io.EOF {
				link.SendForward(chain.End, nil)
			} else {
				link.SendForward(chain.Abort, []byte(err.Error()))
			}
			return
		}
	}
}
