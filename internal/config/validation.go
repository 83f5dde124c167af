package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/LeJamon/shalltest/internal/crypto"
	"github.com/LeJamon/shalltest/internal/storage"
	"github.com/LeJamon/shalltest/internal/storage/compression"
	"github.com/LeJamon/shalltest/internal/storage/txlog"
	"go.uber.org/zap/zapcore"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid config")

func invalid(section, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, section, fmt.Sprintf(format, args...))
}

// Validate checks every section and joins the errors found.
func (c *Config) Validate() error {
	return errors.Join(
		c.validateEmulator(),
		c.validateStorage(),
		c.validateTxLog(),
		c.validateRPC(),
		c.validateLog(),
	)
}

func (c *Config) validateEmulator() error {
	e := c.Emulator
	if e.ServiceAccount == "" {
		return invalid("emulator", "service_account cannot be empty")
	}
	if _, err := crypto.ParseKeyType(e.KeyType); err != nil {
		return invalid("emulator", "key_type: %v", err)
	}
	if e.ComputeLimit == 0 {
		return invalid("emulator", "compute_limit must be positive")
	}
	if e.BlockTime < 0 {
		return invalid("emulator", "block_time cannot be negative")
	}
	if e.SubscriberBuffer < 0 {
		return invalid("emulator", "subscriber_buffer cannot be negative")
	}
	return nil
}

func (c *Config) validateStorage() error {
	s := c.Storage
	backend := s.Backend
	if backend == "" {
		backend = storage.BackendMemory
	}
	if !slices.Contains(storage.Backends(), backend) {
		return invalid("storage", "unknown backend %q (supported: %v)", s.Backend, storage.Backends())
	}
	if backend != storage.BackendMemory && s.Path == "" {
		return invalid("storage", "path is required for backend %s", backend)
	}
	if s.Compression != "" && !compression.IsAvailable(s.Compression) {
		return invalid("storage", "unknown compression %q (supported: %v)", s.Compression, compression.Available())
	}
	if s.CompressionThreshold < 0 {
		return invalid("storage", "compression_threshold cannot be negative")
	}
	return nil
}

func (c *Config) validateTxLog() error {
	switch c.TxLog.Backend {
	case "", txlog.BackendMemory:
		return nil
	case txlog.BackendSQLite, txlog.BackendPostgres:
		if c.TxLog.DSN == "" {
			return invalid("txlog", "dsn is required for backend %s", c.TxLog.Backend)
		}
		return nil
	default:
		return invalid("txlog", "unknown backend %q", c.TxLog.Backend)
	}
}

func (c *Config) validateRPC() error {
	r := c.RPC
	if r.Addr == "" {
		return invalid("rpc", "addr cannot be empty")
	}
	if r.RateLimit < 0 {
		return invalid("rpc", "rate_limit cannot be negative")
	}
	if r.Burst < 0 {
		return invalid("rpc", "burst cannot be negative")
	}
	if r.Timeout < 0 {
		return invalid("rpc", "timeout cannot be negative")
	}
	return nil
}

func (c *Config) validateLog() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return invalid("log", "level: %v", err)
	}
	switch c.Log.Format {
	case "", LogFormatConsole, LogFormatJSON:
		return nil
	default:
		return invalid("log", "unknown format %q", c.Log.Format)
	}
}
