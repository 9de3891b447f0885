package fs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memoryFile struct {
	content   []byte
	mimeType  string
	createdAt time.Time
	modTime   time.Time
}

// MemoryStore holds file contents in process memory. Its lifetime is owned
// by whoever constructs it; tests build one per case.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]memoryFile
	now   func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string]memoryFile),
		now:   time.Now,
	}
}

// Len returns the number of stored files.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// MemoryFS implements Backend on top of a MemoryStore.
type MemoryFS struct {
	store *MemoryStore
}

// NewMemoryFS creates a MemoryFS over the given store.
func NewMemoryFS(store *MemoryStore) *MemoryFS {
	return &MemoryFS{store: store}
}

// Name identifies the backend in logs and health output.
func (m *MemoryFS) Name() string {
	return "memory"
}

// List returns all stored files sorted by name.
func (m *MemoryFS) List(_ context.Context) ([]FileEntry, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	entries := make([]FileEntry, 0, len(m.store.files))
	for name, f := range m.store.files {
		entries = append(entries, FileEntry{
			Name:      name,
			Path:      "/uploads/" + name,
			Size:      int64(len(f.content)),
			CreatedAt: f.createdAt,
			ModTime:   f.modTime,
			MimeType:  f.mimeType,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Read returns a copy of the named file's content.
func (m *MemoryFS) Read(_ context.Context, name string) ([]byte, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	f, ok := m.store.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return append([]byte(nil), f.content...), nil
}

// Create stores content under name, replacing any existing entry.
func (m *MemoryFS) Create(_ context.Context, name string, content []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	now := m.store.now()
	m.store.files[name] = memoryFile{
		content:   append([]byte(nil), content...),
		createdAt: now,
		modTime:   now,
	}
	return nil
}

// Update replaces the content of an existing entry, keeping its creation
// time and MIME type.
func (m *MemoryFS) Update(_ context.Context, name string, content []byte) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	existing, ok := m.store.files[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	existing.content = append([]byte(nil), content...)
	existing.modTime = m.store.now()
	m.store.files[name] = existing
	return nil
}

// Delete removes the named entry.
func (m *MemoryFS) Delete(_ context.Context, name string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	if _, ok := m.store.files[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(m.store.files, name)
	return nil
}

// AddUploaded stores an uploaded file together with its MIME type.
func (m *MemoryFS) AddUploaded(_ context.Context, name string, content []byte, mimeType string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	now := m.store.now()
	m.store.files[name] = memoryFile{
		content:   append([]byte(nil), content...),
		mimeType:  mimeType,
		createdAt: now,
		modTime:   now,
	}
	return nil
}
