package emulator

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/LeJamon/shalltest/internal/crypto"
	"github.com/LeJamon/shalltest/internal/value"
	"go.uber.org/zap"
)

// readContext is the read-only surface shared by transactions and scripts.
type readContext struct {
	view      *view
	height    uint64
	timestamp time.Time
	service   crypto.Address
	logger    *zap.Logger
}

// BlockHeight is the height of the block the code runs in.
func (c *readContext) BlockHeight() uint64 { return c.height }

// Timestamp is the timestamp of the block the code runs in.
func (c *readContext) Timestamp() time.Time { return c.timestamp }

// ServiceAddress is the address of the service account.
func (c *readContext) ServiceAddress() crypto.Address { return c.service }

// Logger returns the emulator logger.
func (c *readContext) Logger() *zap.Logger { return c.logger }

// Load returns the value stored at p in the account at addr.
func (c *readContext) Load(addr crypto.Address, p Path) (any, error) {
	return c.view.load(addr, p)
}

// Exists reports whether a value is stored at p.
func (c *readContext) Exists(addr crypto.Address, p Path) (bool, error) {
	_, err := c.view.load(addr, p)
	if errors.Is(err, ErrPathNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Paths lists the storage paths in use by the account at addr.
func (c *readContext) Paths(addr crypto.Address) ([]string, error) {
	return c.view.paths(addr)
}

// ScriptContext is handed to script handlers. Scripts cannot write.
type ScriptContext struct {
	readContext
}

// TxContext is handed to transaction handlers.
type TxContext struct {
	readContext
	id      string
	payer   crypto.Address
	signers []crypto.Address
	events  []Event
}

// ID is the transaction ID.
func (c *TxContext) ID() string { return c.id }

// Payer is the account paying for the transaction.
func (c *TxContext) Payer() crypto.Address { return c.payer }

// Signers are the accounts that authorized the transaction.
func (c *TxContext) Signers() []crypto.Address { return slices.Clone(c.signers) }

// Signer is the first authorizer.
func (c *TxContext) Signer() crypto.Address { return c.signers[0] }

// IsSigner reports whether addr authorized the transaction.
func (c *TxContext) IsSigner(addr crypto.Address) bool {
	return slices.Contains(c.signers, addr)
}

func (c *TxContext) authorize(addr crypto.Address) error {
	if !c.IsSigner(addr) {
		return fmt.Errorf("%w: %s", ErrNotAuthorized, addr)
	}
	return nil
}

// Save stores v at p in the account at addr, replacing any previous value.
// addr must have signed the transaction.
func (c *TxContext) Save(addr crypto.Address, p Path, v any) error {
	if err := c.authorize(addr); err != nil {
		return err
	}
	return c.view.save(addr, p, v)
}

// Remove deletes and returns the value at p. addr must have signed the
// transaction.
func (c *TxContext) Remove(addr crypto.Address, p Path) (any, error) {
	if err := c.authorize(addr); err != nil {
		return nil, err
	}
	return c.view.remove(addr, p)
}

// Link publishes target under the public path link, allowing other
// transactions to update target through UpdateLinked.
func (c *TxContext) Link(addr crypto.Address, link, target Path) error {
	if link.Domain != DomainPublic {
		return fmt.Errorf("%w: links must live in the public domain, got %s", ErrInvalidPath, link)
	}
	return c.Save(addr, link, map[string]any{"target": target.String()})
}

// UpdateLinked replaces the value behind the public link of an account that
// need not have signed the transaction. fn receives the current value and
// returns the new one.
func (c *TxContext) UpdateLinked(owner crypto.Address, link Path, fn func(current any) (any, error)) error {
	raw, err := c.view.load(owner, link)
	if err != nil {
		return err
	}
	target, err := linkTarget(raw)
	if err != nil {
		return err
	}
	current, err := c.view.load(owner, target)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	return c.view.save(owner, target, next)
}

func linkTarget(raw any) (Path, error) {
	fields, ok := raw.(map[string]any)
	if !ok {
		return Path{}, fmt.Errorf("%w: value is not a link", ErrInvalidPath)
	}
	s, _ := fields["target"].(string)
	return ParsePath(s)
}

// Emit records an event on the transaction result. Events are discarded if
// the transaction fails.
func (c *TxContext) Emit(typ string, payload map[string]any) error {
	if err := c.view.begin(); err != nil {
		return err
	}
	normalized, _ := value.Normalize(payload).(map[string]any)
	c.events = append(c.events, Event{
		Type:          typ,
		TransactionID: c.id,
		Index:         len(c.events),
		Payload:       normalized,
	})
	return nil
}
