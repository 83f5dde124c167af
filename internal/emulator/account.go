package emulator

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/LeJamon/shalltest/internal/crypto"
	"github.com/LeJamon/shalltest/internal/storage/database"
	"github.com/LeJamon/shalltest/internal/value"
	"go.uber.org/zap"
)

var accountNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

// Account is an emulator-managed account. Keys are derived from the account
// name, so the same name always maps to the same address.
type Account struct {
	Name    string
	Address crypto.Address
	keys    *crypto.KeyPair
}

// PublicKey returns the account's public key.
func (a *Account) PublicKey() []byte {
	return a.keys.PublicKey
}

// KeyType returns the account's key algorithm.
func (a *Account) KeyType() crypto.KeyType {
	return a.keys.Type
}

// Sign signs msg with the account key.
func (a *Account) Sign(msg []byte) ([]byte, error) {
	return a.keys.Sign(msg)
}

// SignTransaction appends the account's signature over tx's signing payload.
func (a *Account) SignTransaction(tx *Transaction) error {
	payload, err := tx.SigningPayload()
	if err != nil {
		return err
	}
	sig, err := a.Sign(payload)
	if err != nil {
		return err
	}
	tx.Signatures = append(tx.Signatures, Signature{Address: a.Address, Signature: sig})
	return nil
}

func newAccount(name string, keyType crypto.KeyType) (*Account, error) {
	keys, err := crypto.DeriveKeyPair(crypto.SeedFromName(name), keyType)
	if err != nil {
		return nil, err
	}
	return &Account{Name: name, Address: keys.Address(), keys: keys}, nil
}

func validateAccountName(name string) error {
	if !accountNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidAccountName, name)
	}
	return nil
}

// CreateAccount creates a new named account.
func (e *Emulator) CreateAccount(ctx context.Context, name string) (*Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil, ErrNotRunning
	}
	if _, exists := e.byName[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, name)
	}
	return e.createAccountLocked(ctx, name)
}

func (e *Emulator) createAccountLocked(ctx context.Context, name string) (*Account, error) {
	if err := validateAccountName(name); err != nil {
		return nil, err
	}

	acct, err := newAccount(name, e.keyType)
	if err != nil {
		return nil, err
	}
	if other, taken := e.accounts[acct.Address]; taken {
		return nil, fmt.Errorf("%w: address %s already belongs to %s", ErrAccountExists, acct.Address, other.Name)
	}

	record, err := value.Encode(map[string]any{
		"name":    name,
		"keyType": acct.KeyType().String(),
	})
	if err != nil {
		return nil, err
	}
	err = e.state.db.Batch(ctx, []database.BatchOperation{
		database.Put(accountKey(acct.Address), record),
		database.Put(nameKey(name), acct.Address[:]),
	})
	if err != nil {
		return nil, fmt.Errorf("store account %s: %w", name, err)
	}

	e.accounts[acct.Address] = acct
	e.byName[name] = acct
	e.logger.Debug("account created",
		zap.String("name", name),
		zap.Stringer("address", acct.Address),
		zap.Stringer("keyType", acct.KeyType()),
	)
	return acct, nil
}

func (e *Emulator) loadAccountsLocked(ctx context.Context) error {
	prefix := []byte(accountPrefix)
	it, err := e.state.db.Iterator(ctx, prefix, database.PrefixEnd(prefix))
	if err != nil {
		return err
	}
	defer it.Close()

	for it.Next() {
		rec, err := value.Decode(it.Value())
		if err != nil {
			return fmt.Errorf("decode account %s: %w", it.Key(), err)
		}
		fields, ok := rec.(map[string]any)
		if !ok {
			return fmt.Errorf("decode account %s: unexpected record %T", it.Key(), rec)
		}
		name, _ := fields["name"].(string)
		keyTypeName, _ := fields["keyType"].(string)
		keyType, err := crypto.ParseKeyType(keyTypeName)
		if err != nil {
			return err
		}
		acct, err := newAccount(name, keyType)
		if err != nil {
			return err
		}
		e.accounts[acct.Address] = acct
		e.byName[name] = acct
	}
	return it.Error()
}

// GetAccountAddress resolves an account name to its address. A literal
// address is returned as is. Unknown names are created on first use when
// AutoCreateAccounts is set.
func (e *Emulator) GetAccountAddress(ctx context.Context, name string) (crypto.Address, error) {
	if crypto.IsAddress(name) {
		return crypto.ParseAddress(name)
	}

	e.mu.RLock()
	running := e.running
	acct, ok := e.byName[name]
	e.mu.RUnlock()
	if !running {
		return crypto.EmptyAddress, ErrNotRunning
	}
	if ok {
		return acct.Address, nil
	}
	if !e.cfg.AutoCreateAccounts {
		return crypto.EmptyAddress, fmt.Errorf("%w: %s", ErrUnknownAccount, name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return crypto.EmptyAddress, ErrNotRunning
	}
	if acct, ok := e.byName[name]; ok {
		return acct.Address, nil
	}
	acct, err := e.createAccountLocked(ctx, name)
	if err != nil {
		return crypto.EmptyAddress, err
	}
	return acct.Address, nil
}

// Account returns the account with the given address.
func (e *Emulator) Account(addr crypto.Address) (*Account, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	acct, ok := e.accounts[addr]
	return acct, ok
}

// AccountByName returns the account registered under name.
func (e *Emulator) AccountByName(name string) (*Account, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	acct, ok := e.byName[name]
	return acct, ok
}

// Accounts returns every account sorted by name.
func (e *Emulator) Accounts() []*Account {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*Account, 0, len(e.byName))
	for _, acct := range e.byName {
		out = append(out, acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ServiceAccount returns the account created at startup that is allowed to
// mint tokens.
func (e *Emulator) ServiceAccount() *Account {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.byName[e.cfg.ServiceAccount]
}
