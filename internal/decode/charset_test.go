package decode

import "testing"

func TestCharsetIdentityForUTF8(t *testing.T) {
	dec, err := NewCharset("utf-8")
	if err != nil {
		t.Fatalf("NewCharset: %v", err)
	}
	in := []byte("héllo wörld")
	out := dec.Process(in)
	out = append(out, dec.Finalize()...)
	if string(out) != string(in) {
		t.Fatalf("got %q, want %q", out, in)
	}
}

func TestCharsetLatin1ToUTF8(t *testing.T) {
	dec, err := NewCharset("iso-8859-1")
	if err != nil {
		t.Fatalf("NewCharset: %v", err)
	}
	// 0xE9 in Latin-1 is é (U+00E9).
	out := dec.Process([]byte{'c', 0xE9})
	out = append(out, dec.Finalize()...)
	if string(out) != "cé" {
		t.Fatalf("got %q, want %q", out, "cé")
	}
}

func TestCharsetUnknownNameErrors(t *testing.T) {
	if _, err := NewCharset("not-a-real-charset"); err == nil {
		t.Fatal("expected error for unknown charset name")
	}
}
