package cache

import (
	"bufio"
	"bytes"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/duskbrowser/core/internal/decode"
	"github.com/duskbrowser/core/internal/weburl"
)

// headerDelimiter is the blank line that ends an HTTP response header
// block (spec.md §4.G "Header parsing").
var headerDelimiter = []byte("\r\n\r\n")

// MaxRedirectDepth matches spec.md §4.G "≥5 recursive redirects".
const MaxRedirectDepth = 5

// hugeFileThreshold is the default Content-Length above which spec.md
// §4.G treats an entry as a huge-file download offer rather than a normal
// render.
const hugeFileThreshold = 256 * 1024 * 1024

// feedHeader accumulates raw bytes into e.headerBuf until the header
// block is complete, then parses it. It returns the body bytes that
// followed the header block in this same chunk, if any, plus whether the
// header is now complete.
//
// Parsing is done with net/http.ReadResponse: there is no third-party
// HTTP response parser anywhere in the corpus, and net/http's own parser
// is the ecosystem-standard way to parse a raw HTTP/1.1 response (see
// DESIGN.md).
func (c *Cache) feedHeader(e *Entry, chunk []byte) (body []byte, complete bool) {
	e.headerBuf = append(e.headerBuf, chunk...)

	idx := bytes.Index(e.headerBuf, headerDelimiter)
	if idx < 0 {
		return nil, false
	}

	headerBlock := e.headerBuf[:idx+len(headerDelimiter)]
	rest := append([]byte(nil), e.headerBuf[idx+len(headerDelimiter):]...)

	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(headerBlock)), nil)
	if err != nil {
		e.Flags |= NotFound
		e.Flags |= GotHeader | GotContentType
		return nil, true
	}

	if resp.StatusCode == http.StatusContinue {
		// "A 100 Continue status resets the header buffer" (spec.md §4.G).
		e.headerBuf = rest
		return nil, false
	}

	if len(resp.TransferEncoding) > 0 && bytes.Contains(bytes.ToLower(headerBlock), []byte("\r\ncontent-length:")) {
		// ReadResponse drops Content-Length once Transfer-Encoding is set;
		// only the raw header block still shows that one was sent.
		slog.Warn("ignoring Content-Length on a response with Transfer-Encoding", "url", e.URL.String())
	}

	e.Header = resp.Header
	e.Flags |= GotHeader
	e.headerBuf = nil

	c.applyStatus(e, resp)
	c.applyTransferEncoding(e, resp)
	c.applyContentEncoding(e, resp)
	c.applyContentLength(e, resp)
	c.applyContentType(e, resp)
	c.applySetCookie(e, resp)

	return rest, true
}

func (c *Cache) applyStatus(e *Entry, resp *http.Response) {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		e.Flags |= NotFound
	case resp.StatusCode == http.StatusUnauthorized:
		e.Auth = append(e.Auth, resp.Header.Values("Www-Authenticate")...)
	case resp.StatusCode/100 == 3:
		c.applyRedirect(e, resp)
	}
}

func (c *Cache) applyRedirect(e *Entry, resp *http.Response) {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return
	}
	target, err := weburl.ResolveReference(e.URL, loc)
	if err != nil {
		return
	}

	if c.domainPolicy != nil && !c.domainPolicy(target) {
		return // "refused if the domain policy denies it"
	}
	if isHelperScheme(target.Scheme) && !isHelperScheme(e.URL.Scheme) &&
		(e.URL.Flags.Has(weburl.Post) || e.URL.Flags.Has(weburl.MultipartEnc)) {
		return // refused: redirect into helper scheme from a body-method request
	}

	e.Location = &target
	e.Flags |= Redirect
	switch resp.StatusCode {
	case http.StatusMovedPermanently:
		e.Flags |= ForceRedirect
	case http.StatusFound:
		e.Flags |= TempRedirect
	}
	if e.redirectDepth >= MaxRedirectDepth {
		e.Flags |= RedirectLoop
	}
}

func isHelperScheme(scheme string) bool {
	switch scheme {
	case "http", "https", "about":
		return false
	default:
		return true
	}
}

func (c *Cache) applyTransferEncoding(e *Entry, resp *http.Response) {
	te := strings.ToLower(resp.Header.Get("Transfer-Encoding"))
	if te == "" && len(resp.TransferEncoding) > 0 {
		// ReadResponse moves Transfer-Encoding out of Header.
		te = strings.ToLower(resp.TransferEncoding[0])
	}
	switch te {
	case "", "identity":
		e.TransferDecoder = decode.Identity()
	case "chunked":
		e.TransferDecoder = decode.NewChunked()
		if resp.Header.Get("Content-Length") != "" {
			// "when present and non-identity, any Content-Length is
			// ignored with a warning" (spec.md §4.G); feedHeader logs the
			// warning.
			resp.Header.Del("Content-Length")
		}
	default:
		e.TransferDecoder = decode.Identity()
	}
}

func (c *Cache) applyContentEncoding(e *Entry, resp *http.Response) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		e.ContentDecoder = decode.NewGzip()
	default:
		e.ContentDecoder = decode.Identity()
	}
}

func (c *Cache) applyContentLength(e *Entry, resp *http.Response) {
	cl := resp.Header.Get("Content-Length")
	if cl == "" {
		return
	}
	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil {
		return
	}
	e.ExpectedSize = n
	e.Flags |= GotLength
	if n > c.hugeFileThreshold() {
		e.Flags |= HugeFile
	}
}

func (c *Cache) applyContentType(e *Entry, resp *http.Response) {
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		return
	}
	e.TypeHeader = ct
	e.Flags |= GotContentType

	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return
	}
	e.TypeNormalized = mediaType

	if charset, ok := params["charset"]; ok && !strings.EqualFold(charset, "utf-8") {
		if dec, err := decode.NewCharset(charset); err == nil {
			e.CharsetDecoder = dec
		}
	}
}

func (c *Cache) applySetCookie(e *Entry, resp *http.Response) {
	lines := resp.Header.Values("Set-Cookie")
	if len(lines) == 0 || c.cookies == nil {
		return
	}
	// "offered to the cookie interface only when the original requester is
	// same-organization as the response URL" (spec.md §4.G, first-party
	// only policy). Called under e.mu via feedHeader, so e.firstRequester
	// is read directly rather than through lock/unlock.
	requester := e.firstRequester
	if requester.Host != "" && !weburl.SameOrganization(requester, e.URL) {
		return
	}
	c.cookies.Set(e.URL, lines)
}

func (c *Cache) hugeFileThreshold() int64 {
	if c.HugeFileThreshold > 0 {
		return c.HugeFileThreshold
	}
	return hugeFileThreshold
}
