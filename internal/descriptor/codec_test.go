package descriptor

import (
	"strings"
	"testing"
)

func testDescriptors() map[string]Descriptor {
	return map[string]Descriptor{
		"resize":            NewResize("a.png", 100, 80, 75),
		"resize nested dir": NewResize("images/photos/holiday.jpg", 1920, 1080, 80),
		"blur":              NewBlur("a.png", 20, 20, 100, 100, 15),
		"blur wide viewport": NewBlur("imgs/foo.png", 10, 10, 100, 50, 8),
		"leading slash trimmed": NewResize("/banner.webp", 640, 480, 60),
	}
}

func TestQueryRoundTrip(t *testing.T) {
	t.Parallel()
	for name, d := range testDescriptors() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			qs := d.EncodeQuery()
			got, err := DecodeQuery(qs)
			if err != nil {
				t.Fatalf("DecodeQuery(%q) failed: %v", qs, err)
			}
			if got != d {
				t.Errorf("round trip mismatch: want %+v, got %+v", d, got)
			}
		})
	}
}

func TestEncodeQueryDeterministic(t *testing.T) {
	t.Parallel()
	d := NewBlur("imgs/foo.png", 10, 10, 100, 50, 8)
	first := d.EncodeQuery()
	for range 10 {
		if got := d.EncodeQuery(); got != first {
			t.Fatalf("encoding not stable: %q then %q", first, got)
		}
	}
}

func TestFilePathRoundTrip(t *testing.T) {
	t.Parallel()
	for name, d := range testDescriptors() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p := d.FilePath()
			got, err := FromFilePath(p)
			if err != nil {
				t.Fatalf("FromFilePath(%q) failed: %v", p, err)
			}
			if got != d {
				t.Errorf("round trip mismatch: want %+v, got %+v", d, got)
			}
		})
	}
}

func TestFilePathShape(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		descriptor Descriptor
		wantSuffix string
	}{
		{"resize keeps source name", NewResize("a.png", 100, 80, 75), "a.png.webp"},
		{"blur gets svg extension", NewBlur("a.png", 20, 20, 100, 100, 15), "a.png.svg"},
		{"nested source dir preserved", NewResize("images/b.jpg", 10, 10, 50), "images/b.jpg.webp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := tt.descriptor.FilePath()
			if !strings.HasPrefix(p, "cache/image/") {
				t.Errorf("path %q missing cache/image/ prefix", p)
			}
			if !strings.HasSuffix(p, tt.wantSuffix) {
				t.Errorf("path %q missing suffix %q", p, tt.wantSuffix)
			}
		})
	}
}

func TestFromFilePathTolerance(t *testing.T) {
	t.Parallel()
	// None of these encode a descriptor; all must report no-match without panicking.
	paths := []string{
		"",
		"/",
		"cache/image",
		"cache/image/not-base64!!!/a.png.webp",
		"cache/image/YWJjZA==/a.png.webp", // decodes to "abcd", not a query
		"../../etc/passwd",
		strings.Repeat("a/", 100),
	}

	for _, p := range paths {
		if _, err := FromFilePath(p); err != ErrNoMatch {
			t.Errorf("FromFilePath(%q): want ErrNoMatch, got %v", p, err)
		}
	}
}

func TestDecodeQueryRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		qs   string
	}{
		{"empty", ""},
		{"missing source", "r%5Bw%5D=100&r%5Bh%5D=80&r%5Bq%5D=75"},
		{"missing resize field", "src=a.png&r%5Bw%5D=100"},
		{"non-numeric field", "src=a.png&r%5Bw%5D=wide&r%5Bh%5D=80&r%5Bq%5D=75"},
		{"no operation", "src=a.png"},
		{"bad escape", "src=%zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := DecodeQuery(tt.qs); err != ErrNoMatch {
				t.Errorf("DecodeQuery(%q): want ErrNoMatch, got %v", tt.qs, err)
			}
		})
	}
}

func TestFromURL(t *testing.T) {
	t.Parallel()
	d := NewResize("a.png", 100, 80, 75)
	u := d.URL("/cache/image")

	if !strings.HasPrefix(u, "/cache/image?") {
		t.Fatalf("URL %q missing handler path prefix", u)
	}

	got, err := FromURL(u)
	if err != nil {
		t.Fatalf("FromURL(%q) failed: %v", u, err)
	}
	if got != d {
		t.Errorf("URL round trip mismatch: want %+v, got %+v", d, got)
	}
}
