// Package txlog records sealed transactions so their results can be fetched
// after the fact.
package txlog

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no record has the requested ID.
	ErrNotFound = errors.New("transaction not found")
	// ErrDuplicate is returned when appending a record whose ID is taken.
	ErrDuplicate = errors.New("duplicate transaction id")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transaction log is closed")
	// ErrUnknownBackend is returned by Open for an unsupported backend.
	ErrUnknownBackend = errors.New("unknown transaction log backend")
)

// Record is one sealed transaction. Payload holds the full encoded result;
// the other fields are indexed copies used for lookup and listing.
type Record struct {
	ID           string
	BlockHeight  uint64
	Timestamp    time.Time
	Code         string
	Payer        string
	StatusCode   int
	ErrorMessage string
	Payload      []byte
}

// Failed reports whether the transaction was sealed with an error.
func (r Record) Failed() bool {
	return r.StatusCode != 0
}

// ListOptions filters List. Zero values mean no filtering.
type ListOptions struct {
	Payer      string
	FromHeight uint64
	Limit      int
}

// Log is an append-only store of sealed transactions.
type Log interface {
	Append(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	// List returns matching records in ascending block height order.
	List(ctx context.Context, opts ListOptions) ([]Record, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config selects the transaction log backend.
type Config struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
}

// Open creates the log described by cfg.
func Open(ctx context.Context, cfg Config) (Log, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendSQLite, BackendPostgres:
		return OpenSQL(ctx, cfg.Backend, cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
