// Package photostore keeps the original, uncompressed photo uploads.
package photostore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get and Delete for unknown keys.
var ErrNotFound = errors.New("photo not found")

type PhotoStore interface {
	Save(ctx context.Context, prefix, mimeType string, r io.Reader) (storageKey string, err error)
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, storageKey string) error
	// List returns every stored key.
	List(ctx context.Context) ([]string, error)
}
