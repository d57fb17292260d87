package cache

import (
	"log/slog"
	"os"
	"testing"
	"testing/synctest"
	"time"

	"imgopt/internal/descriptor"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBlurPutGet(t *testing.T) {
	t.Parallel()

	b := NewBlur(0, testLogger())
	d := descriptor.DefaultBlur("a.png")

	if _, ok := b.Get(d); ok {
		t.Fatal("Get hit on empty cache")
	}

	b.Put(d, "<svg>one</svg>")
	if svg, ok := b.Get(d); !ok || svg != "<svg>one</svg>" {
		t.Errorf("Get: want <svg>one</svg>/true, got %q/%v", svg, ok)
	}

	// Distinct descriptors are distinct entries.
	other := descriptor.DefaultBlur("b.png")
	if _, ok := b.Get(other); ok {
		t.Error("Get hit for a different descriptor")
	}

	b.Put(d, "<svg>two</svg>")
	if svg, _ := b.Get(d); svg != "<svg>two</svg>" {
		t.Errorf("Put did not overwrite: %q", svg)
	}
}

func TestBlurTTL(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := NewBlur(10*time.Second, testLogger())
		d := descriptor.DefaultBlur("a.png")
		b.Put(d, "<svg/>")

		time.Sleep(5 * time.Second)
		if _, ok := b.Get(d); !ok {
			t.Fatal("entry expired before its TTL")
		}

		time.Sleep(6 * time.Second)
		if _, ok := b.Get(d); ok {
			t.Fatal("entry survived past its TTL")
		}

		// The expiring read evicts; the entry is gone, not just hidden.
		if b.Len() != 0 {
			t.Errorf("expired entry still resident: len=%d", b.Len())
		}
	})
}

func TestBlurTTLDisabled(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := NewBlur(0, testLogger())
		d := descriptor.DefaultBlur("a.png")
		b.Put(d, "<svg/>")

		time.Sleep(24 * time.Hour)
		if _, ok := b.Get(d); !ok {
			t.Error("entry expired with TTL disabled")
		}
	})
}

func TestBlurExpiryIsLazy(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := NewBlur(time.Second, testLogger())
		d := descriptor.DefaultBlur("a.png")
		b.Put(d, "<svg/>")

		// Long past the TTL, the entry is still resident until a read
		// discovers it.
		time.Sleep(time.Hour)
		if b.Len() != 1 {
			t.Fatalf("entry swept without a read: len=%d", b.Len())
		}

		if _, ok := b.Get(d); ok {
			t.Fatal("expired entry returned")
		}
		if b.Len() != 0 {
			t.Errorf("read did not evict: len=%d", b.Len())
		}
	})
}

func TestBlurPreload(t *testing.T) {
	t.Parallel()

	disk := NewDisk(t.TempDir())
	blurDesc := descriptor.DefaultBlur("images/a.png")
	resizeDesc := descriptor.NewResize("images/a.png", 100, 80, 75)

	if err := disk.Write(blurDesc.FilePath(), []byte("<svg>placeholder</svg>")); err != nil {
		t.Fatal(err)
	}
	// A webp variant in the tree must not be preloaded.
	if err := disk.Write(resizeDesc.FilePath(), []byte("webp")); err != nil {
		t.Fatal(err)
	}
	// Foreign svg whose path decodes to nothing is skipped, not fatal.
	if err := disk.Write("cache/image/garbage/foo.svg", []byte("<svg/>")); err != nil {
		t.Fatal(err)
	}

	b := NewBlur(time.Hour, testLogger())
	if err := b.Preload(disk); err != nil {
		t.Fatalf("Preload: %v", err)
	}

	if svg, ok := b.Get(blurDesc); !ok || svg != "<svg>placeholder</svg>" {
		t.Errorf("preloaded entry: want hit, got %q/%v", svg, ok)
	}
	if b.Len() != 1 {
		t.Errorf("want exactly 1 preloaded entry, got %d", b.Len())
	}
}

func TestBlurPreloadMissingTree(t *testing.T) {
	t.Parallel()

	b := NewBlur(time.Hour, testLogger())
	if err := b.Preload(NewDisk(t.TempDir())); err != nil {
		t.Fatalf("Preload on empty root: %v", err)
	}
	if b.Len() != 0 {
		t.Errorf("phantom entries after empty preload: %d", b.Len())
	}
}
