package storage

import (
	"context"
	"io"
)

// Provider abstracts where original source images live. The optimizer only
// ever reads sources; generated variants always land on the local disk cache.
type Provider interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) bool
}
