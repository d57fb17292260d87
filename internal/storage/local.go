package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// LocalStore serves source images from a directory on the local filesystem.
// os.OpenInRoot keeps traversal attempts ("../../etc/passwd") inside basePath.
type LocalStore struct {
	basePath string
}

func NewLocalStore(basePath string) *LocalStore {
	return &LocalStore{basePath: basePath}
}

func (l *LocalStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.OpenInRoot(l.basePath, filepath.Clean(path))
}

// Exists reports whether the file exists and can be opened.
func (l *LocalStore) Exists(_ context.Context, path string) bool {
	f, err := os.OpenInRoot(l.basePath, filepath.Clean(path))
	if err != nil {
		return false
	}

	defer f.Close() // overkill to consider errors if only checking existence
	return true
}
