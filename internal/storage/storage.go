// Package storage opens the key-value backends that hold emulator state and
// frames the values written to them.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LeJamon/shalltest/internal/storage/database"
	"github.com/LeJamon/shalltest/internal/storage/database/bbolt"
	"github.com/LeJamon/shalltest/internal/storage/database/leveldb"
	"github.com/LeJamon/shalltest/internal/storage/database/memory"
	"github.com/LeJamon/shalltest/internal/storage/database/pebble"
)

// Backend names accepted by Open.
const (
	BackendMemory  = "memory"
	BackendPebble  = "pebble"
	BackendLevelDB = "leveldb"
	BackendBBolt   = "bbolt"
)

var (
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")
	// ErrMissingPath is returned when a persistent backend has no path.
	ErrMissingPath = errors.New("storage path is required")
)

// Config selects and tunes the state backend.
type Config struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" yaml:"path"`

	// CacheSize is the number of entries in the read cache. Zero selects
	// database.DefaultCacheSize; a negative value disables the cache.
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size"`

	Compression          string `mapstructure:"compression" yaml:"compression"`
	CompressionThreshold int    `mapstructure:"compression_threshold" yaml:"compression_threshold"`
}

// DefaultConfig returns an in-memory configuration with lz4 compression.
func DefaultConfig() Config {
	return Config{
		Backend:              BackendMemory,
		Compression:          "lz4",
		CompressionThreshold: DefaultCompressionThreshold,
	}
}

// Backends lists the supported backend names.
func Backends() []string {
	return []string{BackendMemory, BackendPebble, BackendLevelDB, BackendBBolt}
}

// Open creates the backend described by cfg, wrapped in a read cache unless
// disabled.
func Open(cfg Config) (database.DB, error) {
	db, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize < 0 {
		return db, nil
	}
	cached, err := database.NewCached(db, cfg.CacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create read cache: %w", err)
	}
	return cached, nil
}

func openBackend(cfg Config) (database.DB, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = BackendMemory
	}

	if backend == BackendMemory {
		return memory.New(), nil
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w for backend %s", ErrMissingPath, backend)
	}

	switch backend {
	case BackendPebble:
		return pebble.Open(cfg.Path)
	case BackendLevelDB:
		return leveldb.Open(cfg.Path)
	case BackendBBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		return bbolt.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
