package domain

import "context"

// KeyValueStore persists string blobs under fixed keys across process restarts.
// Load reports found=false with a nil error when a key was never written.
// Implementations wrap I/O failures with ErrStorageUnavailable.
type KeyValueStore interface {
	Load(ctx context.Context, key string) (value string, found bool, err error)
	Save(ctx context.Context, key, value string) error
	Close() error
}
