// Package storage holds uploaded verification documents. The local
// disk implementation mirrors the uploads/ layout the rest of the
// deployment expects; anything that can save a stream behind a stable
// URL satisfies the interface.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/eduverify/backend/internal/apperr"
)

// BlobStore persists document payloads and returns a retrievable URL.
type BlobStore interface {
	Save(ctx context.Context, tenantID uuid.UUID, fileName string, r io.Reader) (string, error)
	Remove(ctx context.Context, url string) error
}

// LocalStore writes documents under a base directory, one subdirectory
// per tenant.
type LocalStore struct {
	BaseDir string
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{BaseDir: baseDir}, nil
}

// Save writes the stream to disk. The key combines a slugged file name
// with a timestamp so resubmissions never collide with the documents
// they supersede.
func (s *LocalStore) Save(ctx context.Context, tenantID uuid.UUID, fileName string, r io.Reader) (string, error) {
	dir := filepath.Join(s.BaseDir, tenantID.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperr.Storage("create tenant directory", err)
	}

	ext := filepath.Ext(fileName)
	base := slug.Make(fileName[:len(fileName)-len(ext)])
	if base == "" {
		base = "document"
	}
	key := fmt.Sprintf("%s_%d%s", base, time.Now().UnixNano(), ext)
	path := filepath.Join(dir, key)

	f, err := os.Create(path)
	if err != nil {
		return "", apperr.Storage("create file", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", apperr.Storage("write file", err)
	}
	return filepath.ToSlash(path), nil
}

// Remove deletes a previously saved document. Missing files are not an
// error; the caller may be cleaning up after a partial failure.
func (s *LocalStore) Remove(ctx context.Context, url string) error {
	if err := os.Remove(filepath.FromSlash(url)); err != nil && !os.IsNotExist(err) {
		return apperr.Storage("remove file", err)
	}
	return nil
}
