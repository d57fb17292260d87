// Package cache holds the two variant caches: generated files on local
// disk, addressed by descriptor-derived paths, and blur placeholder SVGs
// in memory with lazy TTL expiry.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

// Disk stores variant files under a root directory. There is no index:
// the descriptor codec derives each path, so a filesystem existence probe
// is the cache lookup.
type Disk struct {
	root string
}

func NewDisk(root string) *Disk {
	return &Disk{root: root}
}

// Root returns the cache root directory.
func (d *Disk) Root() string { return d.root }

// Abs resolves a cache-relative path to an absolute one under the root.
func (d *Disk) Abs(rel string) string {
	return filepath.Join(d.root, filepath.FromSlash(rel))
}

// Exists reports whether a variant file is present.
func (d *Disk) Exists(rel string) bool {
	_, err := os.Stat(d.Abs(rel))
	return err == nil
}

// Write persists variant bytes, creating parent directories as needed.
// A second write for the same path replaces the previous content; with
// dedup upstream that only happens when a caller retries after a crash.
func (d *Disk) Write(rel string, data []byte) error {
	abs := d.Abs(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

// Read returns the stored bytes for a variant.
func (d *Disk) Read(rel string) ([]byte, error) {
	data, err := os.ReadFile(d.Abs(rel))
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}
	return data, nil
}
