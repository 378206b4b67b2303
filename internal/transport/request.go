// Package transport builds outgoing HTTP requests and drives the
// helper-process ("dpip") protocol for schemes the core does not speak
// natively. It is the fetch pipeline's one point of contact with the
// network (spec.md §4.E).
package transport

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/duskbrowser/core/internal/weburl"
)

// Referer selects how much of the requesting page's URL is disclosed.
type Referer int

const (
	RefererNone Referer = iota
	RefererSchemeAuthority
	RefererFull
)

// RequestSpec describes one outgoing HTTP request. It intentionally
// mirrors the ingredients spec.md §6 lists for the built request, not a
// generic http.Request, since the header order the spec fixes is part of
// the wire contract under test (spec.md §8).
type RequestSpec struct {
	Method         string // "GET" or "POST"
	Target         weburl.URL
	Proxied        bool   // request line carries the absolute URI
	AcceptLanguage string // optional
	Authorization  string // optional
	ProxyAuth      string // optional, only sent when Proxied
	Referer        string // optional, precomputed by the caller per Policy
	UserAgent      string
	ContentType    string // optional, POST only
	Body           []byte // optional, POST only
	Cookie         string // optional, "" means no Cookie header
}

// defaultUserAgent matches the style of a small, honest UA string; the
// exact string is not spec-mandated beyond "User-Agent" appearing once.
const defaultUserAgent = "duskcore/1.0"

// Write serializes spec onto w in the exact header order spec.md §6
// requires: start-line; Connection; Accept-Charset; Accept-Encoding;
// Accept-Language?; Authorization?; Host; Proxy-Authorization?; Referer?;
// User-Agent; Content-Length? + Content-Type?; Cookie?; blank line; body?.
func Write(w io.Writer, spec RequestSpec) error {
	bw := bufio.NewWriter(w)

	requestURI := spec.Target.Path
	if requestURI == "" {
		requestURI = "/"
	}
	if spec.Target.Query != "" {
		requestURI += "?" + spec.Target.Query
	}
	if spec.Proxied {
		requestURI = spec.Target.String()
	}

	if _, err := fmt.Fprintf(bw, "%s %s HTTP/1.1\r\n", spec.Method, requestURI); err != nil {
		return err
	}

	writeHeader(bw, "Connection", "close")
	writeHeader(bw, "Accept-Charset", "utf-8,*;q=0.8")
	writeHeader(bw, "Accept-Encoding", "gzip")
	if spec.AcceptLanguage != "" {
		writeHeader(bw, "Accept-Language", spec.AcceptLanguage)
	}
	if spec.Authorization != "" {
		writeHeader(bw, "Authorization", spec.Authorization)
	}
	writeHeader(bw, "Host", spec.Target.HostPort())
	if spec.Proxied && spec.ProxyAuth != "" {
		writeHeader(bw, "Proxy-Authorization", spec.ProxyAuth)
	}
	if spec.Referer != "" {
		writeHeader(bw, "Referer", spec.Referer)
	}
	ua := spec.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	writeHeader(bw, "User-Agent", ua)
	if spec.Method == "POST" {
		writeHeader(bw, "Content-Length", fmt.Sprintf("%d", len(spec.Body)))
		if spec.ContentType != "" {
			writeHeader(bw, "Content-Type", spec.ContentType)
		}
	}
	if spec.Cookie != "" {
		writeHeader(bw, "Cookie", spec.Cookie)
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}
	if spec.Method == "POST" && len(spec.Body) > 0 {
		if _, err := bw.Write(spec.Body); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeHeader(bw *bufio.Writer, key, value string) {
	bw.WriteString(key)
	bw.WriteString(": ")
	bw.WriteString(value)
	bw.WriteString("\r\n")
}

// BuildReferer computes the Referer header value for policy given the page
// that initiated the navigation to target. policy RefererNone yields "".
func BuildReferer(policy Referer, from weburl.URL) string {
	switch policy {
	case RefererFull:
		u := from
		u.Fragment = ""
		return u.String()
	case RefererSchemeAuthority:
		return from.Scheme + "://" + from.HostPort() + "/"
	default:
		return ""
	}
}

// MultipartBoundary is the boundary token used when ContentType encodes
// multipart/form-data bodies built elsewhere (spec.md §4.E).
func MultipartBoundary(seed string) string {
	return "----duskcoreBoundary" + strings.TrimSpace(seed)
}
