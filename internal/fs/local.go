package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// TempPrefix marks the scratch files LocalFS writes before renaming them
// into place. They never appear in listings.
const TempPrefix = ".filedesk-"

// LocalFS implements Backend on a single local directory.
type LocalFS struct {
	root string
}

// NewLocalFS creates a LocalFS rooted at the given directory, creating it
// if needed.
func NewLocalFS(root string) (*LocalFS, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return &LocalFS{root: absRoot}, nil
}

// Root returns the absolute directory backing the namespace.
func (l *LocalFS) Root() string {
	return l.root
}

// Name identifies the backend in logs and health output.
func (l *LocalFS) Name() string {
	return "filesystem"
}

func (l *LocalFS) abs(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(l.root, name), nil
}

// List returns the entries of the root directory. Subdirectories are
// reported as-is but never descended into.
func (l *LocalFS) List(_ context.Context) ([]FileEntry, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to scan directory: %v", ErrBackendUnavailable, err)
	}

	result := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), TempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		result = append(result, FileEntry{
			Name:      e.Name(),
			Path:      filepath.Join(l.root, e.Name()),
			IsDir:     e.IsDir(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
			ModTime:   info.ModTime(),
		})
	}
	return result, nil
}

// Read returns the content of the named file.
func (l *LocalFS) Read(_ context.Context, name string) ([]byte, error) {
	p, err := l.abs(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, l.statErr(name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, name)
	}
	content, err := os.ReadFile(p)
	if err != nil {
		return nil, l.statErr(name, err)
	}
	return content, nil
}

// Create writes content under name, replacing any existing file.
func (l *LocalFS) Create(_ context.Context, name string, content []byte) error {
	p, err := l.abs(name)
	if err != nil {
		return err
	}
	return l.write(p, name, content)
}

// Update replaces the content of an existing file. Unlike Create it never
// brings a new name into the namespace.
func (l *LocalFS) Update(_ context.Context, name string, content []byte) error {
	p, err := l.abs(name)
	if err != nil {
		return err
	}
	info, err := os.Stat(p)
	if err != nil {
		return l.statErr(name, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrNotFound, name)
	}
	return l.write(p, name, content)
}

// Delete removes the named file.
func (l *LocalFS) Delete(_ context.Context, name string) error {
	p, err := l.abs(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("%w: unable to delete %s: %v", ErrWrite, name, err)
	}
	logrus.WithField("name", name).Debug("file deleted")
	return nil
}

// AddUploaded stores an uploaded file. The MIME type is not persisted on disk.
func (l *LocalFS) AddUploaded(_ context.Context, name string, content []byte, _ string) error {
	p, err := l.abs(name)
	if err != nil {
		return err
	}
	return l.write(p, name, content)
}

// write replaces target atomically: the content goes to a scratch file in
// the same directory which is then renamed over the target.
func (l *LocalFS) write(target, name string, content []byte) error {
	tmp, err := os.CreateTemp(l.root, TempPrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, name, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %s: %v", ErrWrite, name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %s: %v", ErrWrite, name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("%w: %s: %v", ErrWrite, name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return fmt.Errorf("%w: %s: %v", ErrWrite, name, err)
	}

	logrus.WithFields(logrus.Fields{
		"name": name,
		"size": humanize.Bytes(uint64(len(content))),
	}).Debug("file written")
	return nil
}

func (l *LocalFS) statErr(name string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return fmt.Errorf("%w: unable to read %s: %v", ErrBackendUnavailable, name, err)
}
