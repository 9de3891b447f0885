// Package fs provides the storage backends for the flat file namespace:
// a local directory, a process-memory store, or an S3-compatible bucket.
package fs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Errors returned by every Backend. Implementations wrap them with context,
// so callers should test with errors.Is.
var (
	ErrNotFound           = errors.New("file not found")
	ErrBackendUnavailable = errors.New("storage backend unavailable")
	ErrWrite              = errors.New("unable to write file")
	ErrInvalidName        = errors.New("invalid filename")
)

// FileEntry holds the metadata of one name in the namespace.
type FileEntry struct {
	Name      string    `json:"name"`
	Path      string    `json:"path,omitempty"`
	IsDir     bool      `json:"isDirectory"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"birthtime"`
	ModTime   time.Time `json:"mtime"`
	MimeType  string    `json:"mimetype,omitempty"`
}

// Backend abstracts the storage medium so the HTTP layer and the command
// dispatcher never need to know which one is active.
//
// Create overwrites silently. Update requires the name to exist in every
// implementation and fails with ErrNotFound otherwise. Writes replace the
// whole object; concurrent writers to one name resolve last-writer-wins.
type Backend interface {
	Name() string
	List(ctx context.Context) ([]FileEntry, error)
	Read(ctx context.Context, name string) ([]byte, error)
	Create(ctx context.Context, name string, content []byte) error
	Update(ctx context.Context, name string, content []byte) error
	Delete(ctx context.Context, name string) error
	AddUploaded(ctx context.Context, name string, content []byte, mimeType string) error
}

// ValidateName reports whether name can address an entry of the flat
// namespace. Parent segments and path separators are rejected.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: filename is required", ErrInvalidName)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Names returns the names of the given entries in order.
func Names(entries []FileEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}
