package interaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/LeJamon/shalltest/internal/crypto"
	"github.com/LeJamon/shalltest/internal/emulator"
)

// ErrResolve marks failures to turn an account name into an address before a
// transaction could be sent.
var ErrResolve = errors.New("resolve account")

// Inspector resolves accounts and reads their storage.
type Inspector interface {
	GetAccountAddress(ctx context.Context, name string) (crypto.Address, error)
	GetStoragePaths(ctx context.Context, addr crypto.Address) ([]string, error)
	GetStorageValue(ctx context.Context, addr crypto.Address, path string) (any, error)
}

// Client is the execution service interactions run against. Both the
// in-process emulator and the JSON-RPC client implement it.
type Client interface {
	Inspector
	SendTransaction(ctx context.Context, tx emulator.Transaction) (*emulator.TransactionResult, error)
	ExecuteScript(ctx context.Context, script emulator.Script) (any, error)
}

var _ Client = (*emulator.Emulator)(nil)

// TxConfig describes a transaction by account names. Payer and Signers accept
// registered names or literal addresses; an empty payer means the service
// account.
type TxConfig struct {
	Code         string
	Args         []any
	Payer        string
	Signers      []string
	ComputeLimit uint64
}

// ScriptConfig describes a script execution.
type ScriptConfig struct {
	Code         string
	Args         []any
	ComputeLimit uint64
}

// ResolveAccount returns the address of a name or literal address.
func ResolveAccount(ctx context.Context, in Inspector, account string) (crypto.Address, error) {
	addr, err := in.GetAccountAddress(ctx, account)
	if err != nil {
		return crypto.EmptyAddress, fmt.Errorf("%w %q: %w", ErrResolve, account, err)
	}
	return addr, nil
}

func (cfg TxConfig) build(ctx context.Context, c Client) (emulator.Transaction, error) {
	tx := emulator.Transaction{
		Code:         cfg.Code,
		Args:         cfg.Args,
		ComputeLimit: cfg.ComputeLimit,
	}
	if cfg.Payer != "" {
		payer, err := ResolveAccount(ctx, c, cfg.Payer)
		if err != nil {
			return tx, err
		}
		tx.Payer = payer
	}
	for _, name := range cfg.Signers {
		addr, err := ResolveAccount(ctx, c, name)
		if err != nil {
			return tx, err
		}
		tx.Signers = append(tx.Signers, addr)
	}
	return tx, nil
}

// SendTransaction returns a deferred interaction sending the transaction
// described by cfg. Names are resolved when the interaction runs. A sealed
// transaction that failed settles as a failure wrapping
// *emulator.TransactionError.
func SendTransaction(c Client, cfg TxConfig) Func {
	return func(ctx context.Context) Outcome {
		tx, err := cfg.build(ctx, c)
		if err != nil {
			return Failure(err)
		}
		res, err := c.SendTransaction(ctx, tx)
		if err != nil {
			return Failure(err)
		}
		if res.Failed() {
			return Failure(&emulator.TransactionError{Result: res})
		}
		return Success(res)
	}
}

// ExecuteScript returns a deferred interaction executing the script
// described by cfg.
func ExecuteScript(c Client, cfg ScriptConfig) Func {
	return func(ctx context.Context) Outcome {
		return FromResult(c.ExecuteScript(ctx, emulator.Script{
			Code:         cfg.Code,
			Args:         cfg.Args,
			ComputeLimit: cfg.ComputeLimit,
		}))
	}
}
