package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// FileStore keeps one file per key. Writes go through renameio (temp file,
// fsync, rename) so a crash never leaves a partially written snapshot.
type FileStore struct {
	dir string
}

// NewFileStore stores files under dir, creating it if needed
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store requires a directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, unavailable("create store directory", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".json")
}

func (s *FileStore) Load(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("read file", err)
	}
	return string(data), true, nil
}

func (s *FileStore) Save(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := renameio.WriteFile(s.path(key), []byte(value), 0600); err != nil {
		return unavailable("write file", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
