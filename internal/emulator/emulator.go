// Package emulator implements an in-process ledger that executes registered
// transaction and script handlers against per-account storage.
//
// An Emulator is an explicit handle: create it with New, call Start before
// use and Stop when done, or use Run to scope its lifetime to a function.
package emulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LeJamon/shalltest/internal/crypto"
	"github.com/LeJamon/shalltest/internal/storage"
	"github.com/LeJamon/shalltest/internal/storage/database"
	"github.com/LeJamon/shalltest/internal/storage/txlog"
	"go.uber.org/zap"
)

const (
	DefaultServiceAccount   = "service"
	DefaultComputeLimit     = 9999
	DefaultBlockTime        = time.Second
	DefaultSubscriberBuffer = 64
)

// Config configures an Emulator.
type Config struct {
	ServiceAccount     string        `mapstructure:"service_account"`
	KeyType            string        `mapstructure:"key_type"`
	AutoCreateAccounts bool          `mapstructure:"auto_create_accounts"`
	RequireSignatures  bool          `mapstructure:"require_signatures"`
	ComputeLimit       uint64        `mapstructure:"compute_limit"`
	BlockTime          time.Duration `mapstructure:"block_time"`
	SubscriberBuffer   int           `mapstructure:"subscriber_buffer"`

	Storage storage.Config `mapstructure:"-"`
	TxLog   txlog.Config   `mapstructure:"-"`
}

// DefaultConfig returns an in-memory emulator configuration.
func DefaultConfig() Config {
	return Config{
		ServiceAccount:     DefaultServiceAccount,
		KeyType:            crypto.KeyTypeSecp256k1.String(),
		AutoCreateAccounts: true,
		ComputeLimit:       DefaultComputeLimit,
		BlockTime:          DefaultBlockTime,
		SubscriberBuffer:   DefaultSubscriberBuffer,
		Storage:            storage.DefaultConfig(),
		TxLog:              txlog.Config{Backend: txlog.BackendMemory},
	}
}

// Option customizes an Emulator.
type Option func(*Emulator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Emulator) { e.logger = logger }
}

// WithRegistry replaces the standard handler registry.
func WithRegistry(r *Registry) Option {
	return func(e *Emulator) { e.registry = r }
}

// WithClock sets the block clock. Clocks with an Advance method are moved
// forward by the block time on every sealed block.
func WithClock(c Clock) Option {
	return func(e *Emulator) { e.clock = c }
}

// WithDatabase makes the emulator use db instead of opening Config.Storage.
// The caller keeps ownership: Stop does not close it.
func WithDatabase(db database.DB) Option {
	return func(e *Emulator) { e.extDB = db }
}

// WithTxLog makes the emulator use log instead of opening Config.TxLog.
// The caller keeps ownership: Stop does not close it.
func WithTxLog(log txlog.Log) Option {
	return func(e *Emulator) { e.extLog = log }
}

// Emulator is an in-process ledger.
type Emulator struct {
	cfg      Config
	logger   *zap.Logger
	registry *Registry
	clock    Clock
	keyType  crypto.KeyType
	extDB    database.DB
	extLog   txlog.Log

	mu       sync.RWMutex
	running  bool
	state    *state
	txlog    txlog.Log
	accounts map[crypto.Address]*Account
	byName   map[string]*Account
	height   uint64
	seq      uint64

	subMu   sync.Mutex
	subs    map[int]chan *TransactionResult
	nextSub int
}

// New creates a stopped emulator.
func New(cfg Config, opts ...Option) (*Emulator, error) {
	keyType, err := crypto.ParseKeyType(cfg.KeyType)
	if err != nil {
		return nil, err
	}
	if cfg.ServiceAccount == "" {
		cfg.ServiceAccount = DefaultServiceAccount
	}
	if err := validateAccountName(cfg.ServiceAccount); err != nil {
		return nil, fmt.Errorf("service account: %w", err)
	}
	if cfg.ComputeLimit == 0 {
		cfg.ComputeLimit = DefaultComputeLimit
	}
	if cfg.BlockTime < 0 {
		return nil, fmt.Errorf("block time must not be negative, got %s", cfg.BlockTime)
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = DefaultSubscriberBuffer
	}

	e := &Emulator{
		cfg:     cfg,
		keyType: keyType,
		subs:    make(map[int]chan *TransactionResult),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.registry == nil {
		e.registry = StandardRegistry()
	}
	if e.clock == nil {
		e.clock = NewManualClock()
	}
	return e, nil
}

// Config returns the emulator configuration.
func (e *Emulator) Config() Config {
	return e.cfg
}

// Registry returns the handler registry.
func (e *Emulator) Registry() *Registry {
	return e.registry
}

// Start opens storage, loads existing accounts and creates the service
// account if needed.
func (e *Emulator) Start(ctx context.Context) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}

	db := e.extDB
	if db == nil {
		if db, err = storage.Open(e.cfg.Storage); err != nil {
			return fmt.Errorf("open state storage: %w", err)
		}
		defer func() {
			if err != nil {
				db.Close()
			}
		}()
	}
	codec, err := storage.NewCodec(e.cfg.Storage.Compression, e.cfg.Storage.CompressionThreshold)
	if err != nil {
		return err
	}

	log := e.extLog
	if log == nil {
		if log, err = txlog.Open(ctx, e.cfg.TxLog); err != nil {
			return fmt.Errorf("open transaction log: %w", err)
		}
		defer func() {
			if err != nil {
				log.Close()
			}
		}()
	}

	e.state = &state{db: db, codec: codec}
	e.txlog = log
	e.accounts = make(map[crypto.Address]*Account)
	e.byName = make(map[string]*Account)

	if err := e.loadAccountsLocked(ctx); err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	if e.height, err = e.state.height(ctx); err != nil {
		return fmt.Errorf("load block height: %w", err)
	}
	if _, ok := e.byName[e.cfg.ServiceAccount]; !ok {
		if _, err := e.createAccountLocked(ctx, e.cfg.ServiceAccount); err != nil {
			return fmt.Errorf("create service account: %w", err)
		}
	}

	e.running = true
	e.logger.Info("emulator started",
		zap.String("storage", e.cfg.Storage.Backend),
		zap.String("compression", codec.Compressor()),
		zap.String("txlog", e.cfg.TxLog.Backend),
		zap.Uint64("height", e.height),
		zap.Int("accounts", len(e.accounts)),
		zap.Stringer("service", e.byName[e.cfg.ServiceAccount].Address),
	)
	return nil
}

// Stop closes subscriptions and any storage the emulator opened itself.
// Stopping a stopped emulator is a no-op.
func (e *Emulator) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}
	e.running = false

	e.subMu.Lock()
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	e.subMu.Unlock()

	var errs []error
	if e.extDB == nil {
		errs = append(errs, e.state.db.Close())
	}
	if e.extLog == nil {
		errs = append(errs, e.txlog.Close())
	}
	e.logger.Info("emulator stopped", zap.Uint64("height", e.height))
	return errors.Join(errs...)
}

// IsRunning reports whether the emulator has been started and not stopped.
func (e *Emulator) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Height returns the height of the latest sealed block.
func (e *Emulator) Height() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.height
}

// Now returns the current block clock time.
func (e *Emulator) Now() time.Time {
	return e.clock.Now()
}

// Run starts an emulator, calls fn with it and stops it afterwards.
func Run(ctx context.Context, cfg Config, fn func(*Emulator) error, opts ...Option) (err error) {
	e, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	if err := e.Start(ctx); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, e.Stop())
	}()
	return fn(e)
}
