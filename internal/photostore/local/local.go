// Package local stores photos as files in one directory. All access goes
// through an os.Root, so keys cannot name files outside it.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/vbonduro/inspectreport/internal/photostore"
)

const tmpPrefix = ".upload-"

var extByMIME = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type Store struct {
	root *os.Root
}

// New opens dir as the photo directory, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create photo directory: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open photo directory: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Close() error {
	return s.root.Close()
}

// Save writes r under a temporary name and renames it into place, so Get
// never sees a partial photo.
func (s *Store) Save(_ context.Context, prefix, mimeType string, r io.Reader) (string, error) {
	ext, ok := extByMIME[mimeType]
	if !ok {
		ext = ".jpg"
	}
	id := uuid.NewString()
	key := prefix + "_" + id + ext
	tmp := tmpPrefix + id

	f, err := s.root.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create photo file: %w", err)
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = s.root.Rename(tmp, key)
	}
	if err != nil {
		if rerr := s.root.Remove(tmp); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			slog.Error("failed to remove partial photo", "file", tmp, "error", rerr)
		}
		return "", fmt.Errorf("failed to write photo: %w", err)
	}
	return key, nil
}

func (s *Store) Get(_ context.Context, storageKey string) (io.ReadCloser, string, error) {
	if err := checkKey(storageKey); err != nil {
		return nil, "", err
	}
	f, err := s.root.Open(storageKey)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", photostore.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open photo: %w", err)
	}
	return f, mimeFromKey(storageKey), nil
}

func (s *Store) Delete(_ context.Context, storageKey string) error {
	if err := checkKey(storageKey); err != nil {
		return err
	}
	err := s.root.Remove(storageKey)
	if errors.Is(err, fs.ErrNotExist) {
		return photostore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	return nil
}

// List returns the keys of all completed uploads in name order.
func (s *Store) List(_ context.Context) ([]string, error) {
	entries, err := fs.ReadDir(s.root.FS(), ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), tmpPrefix) {
			keys = append(keys, e.Name())
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// checkKey rejects anything but a bare file name. os.Root already refuses
// to leave the directory; this also keeps keys out of subdirectories.
func checkKey(storageKey string) error {
	if storageKey == "" || path.Base(storageKey) != storageKey || strings.ContainsRune(storageKey, '\\') {
		return fmt.Errorf("invalid photo key %q", storageKey)
	}
	return nil
}

func mimeFromKey(storageKey string) string {
	ext := strings.ToLower(path.Ext(storageKey))
	for mimeType, e := range extByMIME {
		if e == ext {
			return mimeType
		}
	}
	return "image/jpeg"
}
