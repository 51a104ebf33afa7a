package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketLedger = []byte("ledger")

// BoltStore implements domain.KeyValueStore using BoltDB.
// With an empty base directory it runs memory-only (no persistence).
type BoltStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string]string
}

// NewBoltStore opens {baseDir}/{hash(scope)}/playtally.db. The scope (usually the
// remote endpoint) keeps ledgers for different backends apart.
func NewBoltStore(baseDir, scope string) (*BoltStore, error) {
	if baseDir == "" {
		// Memory-only mode (no persistence)
		return &BoltStore{cache: make(map[string]string)}, nil
	}

	dir := baseDir
	if scope != "" {
		dir = filepath.Join(baseDir, hashScope(scope))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, unavailable("create store directory", err)
	}

	dbPath := filepath.Join(dir, "playtally.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, unavailable("open bolt db", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLedger)
		return err
	})
	if err != nil {
		db.Close()
		return nil, unavailable("create bucket", err)
	}

	return &BoltStore{db: db, cache: make(map[string]string)}, nil
}

func hashScope(scope string) string {
	normalized := strings.TrimRight(strings.ToLower(scope), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

// Path returns the database file path ("" in memory-only mode)
func (s *BoltStore) Path() string {
	if s.db == nil {
		return ""
	}
	return s.db.Path()
}

func (s *BoltStore) Load(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	// Check memory cache first
	s.mu.RLock()
	if v, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return v, true, nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return "", false, nil
	}

	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLedger)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return "", false, unavailable("bolt view", err)
	}
	if data == nil {
		return "", false, nil
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[key] = string(data)
	s.mu.Unlock()

	return string(data), true, nil
}

func (s *BoltStore) Save(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.db != nil {
		// Write through before touching the cache so a failed write is not served later
		err := s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketLedger).Put([]byte(key), []byte(value))
		})
		if err != nil {
			return unavailable("bolt put", err)
		}
	}

	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()
	return nil
}

func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// String describes the store for logs
func (s *BoltStore) String() string {
	if p := s.Path(); p != "" {
		return fmt.Sprintf("bolt(%s)", p)
	}
	return "memory"
}
