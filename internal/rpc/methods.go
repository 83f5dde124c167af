package rpc

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/LeJamon/shalltest/internal/crypto"
	"github.com/LeJamon/shalltest/internal/emulator"
	"github.com/LeJamon/shalltest/internal/storage/txlog"
)

// MethodHandler handles one RPC method.
type MethodHandler func(ctx context.Context, params json.RawMessage) (map[string]any, *Error)

// MethodRegistry maps method names to handlers.
type MethodRegistry struct {
	methods map[string]MethodHandler
}

func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{
		methods: make(map[string]MethodHandler),
	}
}

func (r *MethodRegistry) Register(name string, handler MethodHandler) {
	r.methods[name] = handler
}

func (r *MethodRegistry) Get(name string) (MethodHandler, bool) {
	handler, exists := r.methods[name]
	return handler, exists
}

// List returns the registered method names in sorted order.
func (r *MethodRegistry) List() []string {
	methods := make([]string, 0, len(r.methods))
	for name := range r.methods {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	return methods
}

func (s *Server) registerMethods() {
	s.registry.Register("server_info", s.serverInfo)
	s.registry.Register("create_account", s.createAccount)
	s.registry.Register("get_account_address", s.getAccountAddress)
	s.registry.Register("get_storage_paths", s.getStoragePaths)
	s.registry.Register("get_storage_value", s.getStorageValue)
	s.registry.Register("send_transaction", s.sendTransaction)
	s.registry.Register("execute_script", s.executeScript)
	s.registry.Register("get_transaction_result", s.getTransactionResult)
	s.registry.Register("list_transactions", s.listTransactions)
}

func (s *Server) serverInfo(ctx context.Context, _ json.RawMessage) (map[string]any, *Error) {
	info := map[string]any{
		"running":      s.emu.IsRunning(),
		"height":       s.emu.Height(),
		"time":         s.emu.Now(),
		"methods":      s.registry.List(),
		"transactions": s.emu.Registry().TransactionNames(),
		"scripts":      s.emu.Registry().ScriptNames(),
	}
	if svc := s.emu.ServiceAccount(); svc != nil {
		info["service_account"] = svc.Address
	}
	return info, nil
}

type nameParams struct {
	Name string `json:"name"`
}

func accountInfo(acct *emulator.Account) map[string]any {
	return map[string]any{
		"name":       acct.Name,
		"address":    acct.Address,
		"public_key": acct.PublicKey(),
		"key_type":   acct.KeyType().String(),
	}
}

func (s *Server) createAccount(ctx context.Context, params json.RawMessage) (map[string]any, *Error) {
	var p nameParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	acct, err := s.emu.CreateAccount(ctx, p.Name)
	if err != nil {
		return nil, toError(err)
	}
	return accountInfo(acct), nil
}

func (s *Server) getAccountAddress(ctx context.Context, params json.RawMessage) (map[string]any, *Error) {
	var p nameParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, errInvalidParams("missing name")
	}
	addr, err := s.emu.GetAccountAddress(ctx, p.Name)
	if err != nil {
		return nil, toError(err)
	}
	return map[string]any{"address": addr}, nil
}

type storageParams struct {
	Address string `json:"address"`
	Path    string `json:"path"`
}

func (s *Server) getStoragePaths(ctx context.Context, params json.RawMessage) (map[string]any, *Error) {
	var p storageParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	addr, err := crypto.ParseAddress(p.Address)
	if err != nil {
		return nil, toError(err)
	}
	paths, err := s.emu.GetStoragePaths(ctx, addr)
	if err != nil {
		return nil, toError(err)
	}
	return map[string]any{"address": addr, "paths": paths}, nil
}

func (s *Server) getStorageValue(ctx context.Context, params json.RawMessage) (map[string]any, *Error) {
	var p storageParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	addr, err := crypto.ParseAddress(p.Address)
	if err != nil {
		return nil, toError(err)
	}
	v, err := s.emu.GetStorageValue(ctx, addr, p.Path)
	if err != nil {
		return nil, toError(err)
	}
	return map[string]any{"address": addr, "path": p.Path, "value": v}, nil
}

func (s *Server) sendTransaction(ctx context.Context, params json.RawMessage) (map[string]any, *Error) {
	var tx emulator.Transaction
	if err := decodeParams(params, &tx); err != nil {
		return nil, err
	}
	res, err := s.emu.SendTransaction(ctx, tx)
	if err != nil {
		return nil, toError(err)
	}
	return map[string]any{"transaction": res}, nil
}

func (s *Server) executeScript(ctx context.Context, params json.RawMessage) (map[string]any, *Error) {
	var script emulator.Script
	if err := decodeParams(params, &script); err != nil {
		return nil, err
	}
	v, err := s.emu.ExecuteScript(ctx, script)
	if err != nil {
		return nil, toError(err)
	}
	return map[string]any{"value": v}, nil
}

type idParams struct {
	ID string `json:"id"`
}

func (s *Server) getTransactionResult(ctx context.Context, params json.RawMessage) (map[string]any, *Error) {
	var p idParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	res, err := s.emu.GetTransactionResult(ctx, p.ID)
	if err != nil {
		return nil, toError(err)
	}
	return map[string]any{"transaction": res}, nil
}

type listParams struct {
	Payer      string `json:"payer"`
	FromHeight uint64 `json:"from_height"`
	Limit      int    `json:"limit"`
}

func (s *Server) listTransactions(ctx context.Context, params json.RawMessage) (map[string]any, *Error) {
	var p listParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	results, err := s.emu.Transactions(ctx, txlog.ListOptions{
		Payer:      p.Payer,
		FromHeight: p.FromHeight,
		Limit:      p.Limit,
	})
	if err != nil {
		return nil, toError(err)
	}
	return map[string]any{"transactions": results}, nil
}
