package fs

import (
	"context"
	"fmt"

	"github.com/CageChen/filedesk/internal/config"
)

// New returns the one Backend this process serves, as decided by
// cfg.ActiveBackend. The memory store is only used by the memory backend.
func New(ctx context.Context, cfg *config.Config, store *MemoryStore) (Backend, error) {
	switch kind := cfg.ActiveBackend(); kind {
	case config.BackendFilesystem:
		local, err := NewLocalFS(cfg.UploadsDir)
		if err != nil {
			return nil, err
		}
		return local, nil
	case config.BackendMemory:
		if store == nil {
			store = NewMemoryStore()
		}
		return NewMemoryFS(store), nil
	case config.BackendObject:
		oc := cfg.ObjectStore
		object, err := NewObjectFS(ctx, ObjectOptions{
			Endpoint: oc.Endpoint,
			Bucket:   oc.Bucket,
			Access:   oc.AccessKey,
			Secret:   oc.SecretKey,
			Region:   oc.Region,
			UseSSL:   oc.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return object, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", kind)
	}
}
