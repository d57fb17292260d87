package cache

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"imgopt/internal/descriptor"
)

// entry pairs the SVG markup with its insertion time for TTL checks.
type entry struct {
	svg       string
	createdAt time.Time
}

// Blur caches placeholder SVGs in memory, keyed by descriptor. Expiry is
// lazy: an entry past its TTL is evicted by the read that finds it, never
// by a background sweep. Payloads are small, so an entry that is never
// read again simply stays resident for the life of the process.
type Blur struct {
	entries sync.Map // descriptor.Descriptor -> entry
	ttl     time.Duration
	logger  *slog.Logger
}

// NewBlur creates a placeholder cache. ttl <= 0 disables expiry.
func NewBlur(ttl time.Duration, logger *slog.Logger) *Blur {
	return &Blur{ttl: ttl, logger: logger}
}

// Get returns the SVG for d if present and unexpired. An expired entry is
// removed as a side effect of the read that discovers it.
func (b *Blur) Get(d descriptor.Descriptor) (string, bool) {
	v, ok := b.entries.Load(d)
	if !ok {
		return "", false
	}

	e := v.(entry)
	if b.ttl > 0 && time.Since(e.createdAt) > b.ttl {
		b.entries.Delete(d)
		return "", false
	}
	return e.svg, true
}

// Put inserts or overwrites the SVG for d, restarting its age clock.
func (b *Blur) Put(d descriptor.Descriptor, svg string) {
	b.entries.Store(d, entry{svg: svg, createdAt: time.Now()})
}

// Len counts resident entries, expired or not.
func (b *Blur) Len() int {
	n := 0
	b.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Preload walks the disk cache for previously generated .svg placeholders
// and inserts every one whose path decodes back to a descriptor. Entries
// are aged from now, not file mtime: a cheap warm start in exchange for
// the TTL clock restarting on every boot. A missing cache tree is a no-op.
func (b *Blur) Preload(disk *Disk) error {
	root := disk.Abs(descriptor.CacheDir)
	if _, err := os.Stat(root); err != nil {
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".svg") {
			return nil
		}

		desc, err := descriptor.FromFilePath(filepath.ToSlash(path))
		if err != nil {
			// Foreign file in the cache tree; skip it.
			return nil
		}

		svg, err := os.ReadFile(path)
		if err != nil {
			b.logger.Error("failed to read placeholder during preload", "path", path, "err", err)
			return nil
		}

		b.Put(desc, string(svg))
		return nil
	})
}
