package cookiejar

import (
	"strings"
	"testing"

	"github.com/duskbrowser/core/internal/weburl"
)

func TestPolicyLongestSuffixMatch(t *testing.T) {
	p, err := ParsePolicy(strings.NewReader(`
# comment
DEFAULT DENY
.example.test ACCEPT
sub.example.test ACCEPT_SESSION
`))
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}

	if a := p.Resolve("other.test"); a != Deny {
		t.Fatalf("expected DEFAULT DENY, got %v", a)
	}
	if a := p.Resolve("foo.example.test"); a != Accept {
		t.Fatalf("expected ACCEPT via suffix, got %v", a)
	}
	if a := p.Resolve("sub.example.test"); a != AcceptSession {
		t.Fatalf("expected exact-match ACCEPT_SESSION to win over suffix, got %v", a)
	}
}

func TestJarSetAndGet(t *testing.T) {
	p, _ := ParsePolicy(strings.NewReader("DEFAULT ACCEPT\n"))
	jar := NewJar(p)

	u, _ := weburl.Parse("http://a.test/")
	jar.Set(u, []string{"session=abc; Path=/; HttpOnly"})

	got := jar.Get(u)
	if got != "session=abc" {
		t.Fatalf("got %q, want %q", got, "session=abc")
	}
}

func TestJarDeniesByPolicy(t *testing.T) {
	p, _ := ParsePolicy(strings.NewReader("DEFAULT DENY\n"))
	jar := NewJar(p)

	u, _ := weburl.Parse("http://a.test/")
	jar.Set(u, []string{"session=abc"})

	if got := jar.Get(u); got != "" {
		t.Fatalf("expected no cookie sent under DENY policy, got %q", got)
	}
}
