// Package store provides the durable key-value backends the ledger persists to.
package store

import (
	"fmt"

	"github.com/mmcdole/playtally/internal/config"
	"github.com/mmcdole/playtally/internal/domain"
)

// Driver names accepted in storage.driver
const (
	DriverBolt   = "bolt"
	DriverBadger = "badger"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Open creates the configured backend. scope partitions bolt stores per remote endpoint.
func Open(cfg config.StorageConfig, scope string) (domain.KeyValueStore, error) {
	var (
		s   domain.KeyValueStore
		err error
	)
	switch cfg.Driver {
	case DriverBolt, "":
		s, err = wrap(NewBoltStore(cfg.Path, scope))
	case DriverBadger:
		s, err = wrap(NewBadgerStore(cfg.Path))
	case DriverFile:
		s, err = wrap(NewFileStore(cfg.Path))
	case DriverSQLite:
		s, err = wrap(NewSQLiteStore(cfg.Path))
	case DriverRedis:
		s, err = wrap(NewRedisStore(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		}))
	case DriverMemory:
		s, err = wrap(NewBoltStore("", ""))
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// wrap keeps a typed nil from leaking into the interface on error
func wrap[S domain.KeyValueStore](s S, err error) (domain.KeyValueStore, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// unavailable wraps a backend failure with domain.ErrStorageUnavailable
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageUnavailable, op, err)
}
