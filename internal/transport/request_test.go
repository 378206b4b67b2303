package transport

import (
	"bytes"
	"strings"
	"testing"

	"github.com/duskbrowser/core/internal/weburl"
)

func TestWriteHeaderOrder(t *testing.T) {
	target, err := weburl.Parse("http://example.com/index.html?q=1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	spec := RequestSpec{
		Method:         "GET",
		Target:         target,
		AcceptLanguage: "en-US",
		Referer:        "http://example.com/",
		Cookie:         "sid=abc",
	}

	var buf bytes.Buffer
	if err := Write(&buf, spec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	lines := strings.Split(buf.String(), "\r\n")
	want := []string{
		"GET /index.html?q=1 HTTP/1.1",
		"Connection: close",
		"Accept-Charset: utf-8,*;q=0.8",
		"Accept-Encoding: gzip",
		"Accept-Language: en-US",
		"Host: example.com:80",
		"Referer: http://example.com/",
		"User-Agent: duskcore/1.0",
		"Cookie: sid=abc",
		"",
		"",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%q", len(lines), len(want), buf.String())
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d: got %q, want %q", i, lines[i], w)
		}
	}
}

func TestWritePostIncludesContentLengthAndType(t *testing.T) {
	target, _ := weburl.Parse("http://example.com/submit")
	spec := RequestSpec{
		Method:      "POST",
		Target:      target,
		ContentType: "application/x-www-form-urlencoded",
		Body:        []byte("a=1&b=2"),
	}

	var buf bytes.Buffer
	if err := Write(&buf, spec); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Content-Length: 7\r\n") {
		t.Errorf("missing Content-Length:\n%s", out)
	}
	if !strings.Contains(out, "Content-Type: application/x-www-form-urlencoded\r\n") {
		t.Errorf("missing Content-Type:\n%s", out)
	}
	if !strings.HasSuffix(out, "a=1&b=2") {
		t.Errorf("missing body:\n%s", out)
	}
}

func TestBuildReferer(t *testing.T) {
	from, _ := weburl.Parse("https://a.example.com/page?x=1#frag")

	if got := BuildReferer(RefererNone, from); got != "" {
		t.Errorf("RefererNone: got %q, want empty", got)
	}
	if got, want := BuildReferer(RefererSchemeAuthority, from), "https://a.example.com:443/"; got != want {
		t.Errorf("RefererSchemeAuthority: got %q, want %q", got, want)
	}
	if got, want := BuildReferer(RefererFull, from), "https://a.example.com/page?x=1"; got != want {
		t.Errorf("RefererFull: got %q, want %q (fragment must be stripped)", got, want)
	}
}
