package emulator

import (
	"fmt"
	"sort"
	"sync"
)

// TransactionHandler executes a transaction. Returning an error (or
// panicking) reverts every storage change made through ctx.
type TransactionHandler func(ctx *TxContext, args []any) error

// ScriptHandler executes a read-only script and returns its value.
type ScriptHandler func(ctx *ScriptContext, args []any) (any, error)

// Registry maps code names to transaction and script handlers.
// It provides thread-safe registration and lookup of handlers.
type Registry struct {
	mu           sync.RWMutex
	transactions map[string]TransactionHandler
	scripts      map[string]ScriptHandler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		transactions: make(map[string]TransactionHandler),
		scripts:      make(map[string]ScriptHandler),
	}
}

// RegisterTransaction adds a transaction handler.
// Returns an error if a handler is already registered under that name.
func (r *Registry) RegisterTransaction(name string, h TransactionHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transactions[name]; exists {
		return fmt.Errorf("transaction handler already registered: %s", name)
	}
	r.transactions[name] = h
	return nil
}

// RegisterScript adds a script handler.
// Returns an error if a handler is already registered under that name.
func (r *Registry) RegisterScript(name string, h ScriptHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.scripts[name]; exists {
		return fmt.Errorf("script handler already registered: %s", name)
	}
	r.scripts[name] = h
	return nil
}

// MustRegisterTransaction adds a transaction handler and panics if
// registration fails.
func (r *Registry) MustRegisterTransaction(name string, h TransactionHandler) {
	if err := r.RegisterTransaction(name, h); err != nil {
		panic(err)
	}
}

// MustRegisterScript adds a script handler and panics if registration fails.
func (r *Registry) MustRegisterScript(name string, h ScriptHandler) {
	if err := r.RegisterScript(name, h); err != nil {
		panic(err)
	}
}

// Transaction returns the transaction handler registered under name, or nil.
func (r *Registry) Transaction(name string) TransactionHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.transactions[name]
}

// Script returns the script handler registered under name, or nil.
func (r *Registry) Script(name string) ScriptHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scripts[name]
}

// TransactionNames returns the registered transaction names, sorted.
func (r *Registry) TransactionNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.transactions)
}

// ScriptNames returns the registered script names, sorted.
func (r *Registry) ScriptNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.scripts)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
