package probe

import (
	"testing"
)

func TestTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		excerpt string
		want    string
	}{
		{name: "simple", excerpt: "<html><head><title>Not Found</title></head>", want: "Not Found"},
		{name: "collapses whitespace", excerpt: "<title>\n  404 \t Page  Missing\n</title>", want: "404 Page Missing"},
		{name: "decodes entities", excerpt: "<title>TERRA &amp; CONQUEST</title>", want: "TERRA & CONQUEST"},
		{name: "uppercase tag", excerpt: "<TITLE>Gone</TITLE>", want: "Gone"},
		{name: "truncated title", excerpt: "<html><title>Not Fou", want: ""},
		{name: "no title", excerpt: "<h2>TERRA: CONQUEST</h2>", want: ""},
		{name: "binary", excerpt: "\x1f\x8b\x08\x00\x00", want: ""},
		{name: "empty", excerpt: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Title([]byte(tt.excerpt)); got != tt.want {
				t.Errorf("Title(%q) = %q, want %q", tt.excerpt, got, tt.want)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	t.Run("known digest", func(t *testing.T) {
		t.Parallel()
		// SHA3-256 of the empty input.
		const want = "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a"
		if got := Fingerprint(nil); got != want {
			t.Errorf("Fingerprint(nil) = %s, want %s", got, want)
		}
	})

	t.Run("differs per content", func(t *testing.T) {
		t.Parallel()
		if Fingerprint([]byte("a")) == Fingerprint([]byte("b")) {
			t.Error("expected different fingerprints")
		}
	})

	t.Run("stable", func(t *testing.T) {
		t.Parallel()
		if Fingerprint([]byte("page")) != Fingerprint([]byte("page")) {
			t.Error("expected identical fingerprints")
		}
	})
}
