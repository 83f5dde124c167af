package emulator

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/LeJamon/shalltest/internal/crypto"
	"github.com/LeJamon/shalltest/internal/storage/database"
	"github.com/LeJamon/shalltest/internal/storage/txlog"
	"github.com/LeJamon/shalltest/internal/value"
	"go.uber.org/zap"
)

// Transaction invokes a registered transaction handler.
type Transaction struct {
	Code string `json:"code"`
	Args []any  `json:"args"`
	// Payer defaults to the service account.
	Payer crypto.Address `json:"payer"`
	// Signers default to the payer.
	Signers      []crypto.Address `json:"signers,omitempty"`
	ComputeLimit uint64           `json:"computeLimit,omitempty"`
	Signatures   []Signature      `json:"signatures,omitempty"`
}

// Signature is an account's signature over a transaction's signing payload.
type Signature struct {
	Address   crypto.Address `json:"address"`
	Signature []byte         `json:"signature"`
}

// SigningPayload returns the canonical bytes accounts sign.
func (tx *Transaction) SigningPayload() ([]byte, error) {
	return value.Encode(map[string]any{
		"code":         tx.Code,
		"args":         tx.Args,
		"payer":        tx.Payer,
		"signers":      tx.Signers,
		"computeLimit": tx.ComputeLimit,
	})
}

// Script invokes a registered script handler.
type Script struct {
	Code         string `json:"code"`
	Args         []any  `json:"args"`
	ComputeLimit uint64 `json:"computeLimit,omitempty"`
}

func normalizeArgs(args []any) []any {
	if len(args) == 0 {
		return []any{}
	}
	return value.Normalize(args).([]any)
}

// authorizeLocked fills in the default payer and signers and checks that
// every required account exists and signed.
func (e *Emulator) authorizeLocked(tx *Transaction) (crypto.Address, []crypto.Address, error) {
	payload, err := tx.SigningPayload()
	if err != nil {
		return crypto.EmptyAddress, nil, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}

	payer := tx.Payer
	if payer.IsZero() {
		payer = e.byName[e.cfg.ServiceAccount].Address
	}
	signers := slices.Clone(tx.Signers)
	if len(signers) == 0 {
		signers = []crypto.Address{payer}
	}

	required := slices.Clone(signers)
	if !slices.Contains(required, payer) {
		required = append(required, payer)
	}

	sigs := make(map[crypto.Address][]byte, len(tx.Signatures))
	for _, s := range tx.Signatures {
		if !slices.Contains(required, s.Address) {
			return crypto.EmptyAddress, nil, fmt.Errorf("%w: unexpected signature from %s", ErrInvalidTransaction, s.Address)
		}
		sigs[s.Address] = s.Signature
	}

	for _, addr := range required {
		acct, ok := e.accounts[addr]
		if !ok {
			return crypto.EmptyAddress, nil, fmt.Errorf("%w: %s", ErrUnknownAccount, addr)
		}
		sig, signed := sigs[addr]
		if !signed {
			if e.cfg.RequireSignatures {
				return crypto.EmptyAddress, nil, fmt.Errorf("%w: %s (%s)", ErrMissingSignature, acct.Name, addr)
			}
			continue
		}
		valid, err := crypto.Verify(acct.PublicKey(), payload, sig)
		if err != nil || !valid {
			return crypto.EmptyAddress, nil, fmt.Errorf("%w: %s (%s)", ErrInvalidSignature, acct.Name, addr)
		}
	}
	return payer, signers, nil
}

func transactionID(payload []byte, seq uint64) string {
	h := sha256.New()
	h.Write(payload)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	h.Write(b[:])
	return hex.EncodeToString(h.Sum(nil))
}

func runTransaction(h TransactionHandler, ctx *TxContext, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return h(ctx, args)
}

func runScript(h ScriptHandler, ctx *ScriptContext, args []any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return h(ctx, args)
}

// SendTransaction executes tx and seals it into a new block.
//
// A transaction whose handler fails is still sealed: the returned result has
// StatusCode 1 and ErrorMessage set, and none of its storage changes or
// events are kept. The returned error is reserved for transactions that were
// rejected before execution and for infrastructure failures.
func (e *Emulator) SendTransaction(ctx context.Context, tx Transaction) (*TransactionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil, ErrNotRunning
	}

	handler := e.registry.Transaction(tx.Code)
	if handler == nil {
		return nil, fmt.Errorf("%w: transaction %q", ErrUnknownCode, tx.Code)
	}
	tx.Args = normalizeArgs(tx.Args)

	payer, signers, err := e.authorizeLocked(&tx)
	if err != nil {
		return nil, err
	}

	payload, _ := tx.SigningPayload()
	e.seq++
	id := transactionID(payload, e.seq)

	limit := tx.ComputeLimit
	if limit == 0 {
		limit = e.cfg.ComputeLimit
	}

	height := e.height + 1
	adv, advancing := e.clock.(interface{ Advance(time.Duration) })
	timestamp := e.clock.Now()
	if advancing {
		timestamp = timestamp.Add(e.cfg.BlockTime)
	}

	v := newView(ctx, e.state, limit, false)
	txCtx := &TxContext{
		readContext: readContext{
			view:      v,
			height:    height,
			timestamp: timestamp,
			service:   e.byName[e.cfg.ServiceAccount].Address,
			logger:    e.logger,
		},
		id:      id,
		payer:   payer,
		signers: signers,
	}

	execErr := runTransaction(handler, txCtx, tx.Args)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if execErr == nil && v.meter.exceeded != nil {
		execErr = v.meter.exceeded
	}

	result := &TransactionResult{
		ID:          id,
		Code:        tx.Code,
		Status:      StatusSealed,
		Events:      []Event{},
		BlockHeight: height,
		Timestamp:   timestamp,
		ComputeUsed: v.meter.used,
	}

	var ops []database.BatchOperation
	if execErr == nil {
		ops = v.ops()
		result.Events = txCtx.events
		if result.Events == nil {
			result.Events = []Event{}
		}
	} else {
		result.StatusCode = 1
		result.ErrorMessage = execErr.Error()
	}
	ops = append(ops, heightOp(height))

	if err := e.state.db.Batch(ctx, ops); err != nil {
		return nil, fmt.Errorf("commit transaction %s: %w", id, err)
	}
	e.height = height
	if advancing {
		adv.Advance(e.cfg.BlockTime)
	}

	if err := e.appendLogLocked(ctx, result, payer); err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("id", id),
		zap.String("code", tx.Code),
		zap.Uint64("height", height),
		zap.Uint64("compute", result.ComputeUsed),
		zap.Int("events", len(result.Events)),
	}
	if execErr != nil {
		e.logger.Debug("transaction failed", append(fields, zap.Error(execErr), zap.Bool("panic", IsPanic(execErr)))...)
	} else {
		e.logger.Debug("transaction sealed", fields...)
	}

	e.broadcast(result)
	return result, nil
}

func (e *Emulator) appendLogLocked(ctx context.Context, result *TransactionResult, payer crypto.Address) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode transaction result: %w", err)
	}
	err = e.txlog.Append(ctx, txlog.Record{
		ID:           result.ID,
		BlockHeight:  result.BlockHeight,
		Timestamp:    result.Timestamp,
		Code:         result.Code,
		Payer:        payer.String(),
		StatusCode:   result.StatusCode,
		ErrorMessage: result.ErrorMessage,
		Payload:      payload,
	})
	if err != nil {
		return fmt.Errorf("record transaction %s: %w", result.ID, err)
	}
	return nil
}

// ExecuteScript runs a read-only script and returns its normalized value.
// Script failures are returned as *ScriptError.
func (e *Emulator) ExecuteScript(ctx context.Context, script Script) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.running {
		return nil, ErrNotRunning
	}

	handler := e.registry.Script(script.Code)
	if handler == nil {
		return nil, fmt.Errorf("%w: script %q", ErrUnknownCode, script.Code)
	}

	limit := script.ComputeLimit
	if limit == 0 {
		limit = e.cfg.ComputeLimit
	}
	v := newView(ctx, e.state, limit, true)
	sctx := &ScriptContext{readContext{
		view:      v,
		height:    e.height,
		timestamp: e.clock.Now(),
		service:   e.byName[e.cfg.ServiceAccount].Address,
		logger:    e.logger,
	}}

	out, err := runScript(handler, sctx, normalizeArgs(script.Args))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err == nil && v.meter.exceeded != nil {
		err = v.meter.exceeded
	}
	if err != nil {
		e.logger.Debug("script failed", zap.String("code", script.Code), zap.Error(err))
		return nil, &ScriptError{Code: script.Code, Err: err}
	}
	return value.Normalize(out), nil
}

// GetTransactionResult returns the sealed result with the given ID.
func (e *Emulator) GetTransactionResult(ctx context.Context, id string) (*TransactionResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.running {
		return nil, ErrNotRunning
	}

	rec, err := e.txlog.Get(ctx, id)
	if errors.Is(err, txlog.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return decodeResult(rec)
}

// Transactions lists sealed results in block order.
func (e *Emulator) Transactions(ctx context.Context, opts txlog.ListOptions) ([]*TransactionResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.running {
		return nil, ErrNotRunning
	}

	recs, err := e.txlog.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*TransactionResult, 0, len(recs))
	for _, rec := range recs {
		res, err := decodeResult(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func decodeResult(rec txlog.Record) (*TransactionResult, error) {
	var res TransactionResult
	if err := json.Unmarshal(rec.Payload, &res); err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", rec.ID, err)
	}
	for i := range res.Events {
		res.Events[i].Payload, _ = value.Normalize(res.Events[i].Payload).(map[string]any)
	}
	return &res, nil
}

// GetStoragePaths lists the storage paths in use by the account at addr.
func (e *Emulator) GetStoragePaths(ctx context.Context, addr crypto.Address) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.running {
		return nil, ErrNotRunning
	}
	if _, ok := e.accounts[addr]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, addr)
	}
	paths, err := e.state.paths(ctx, addr)
	if err != nil {
		return nil, err
	}
	if paths == nil {
		paths = []string{}
	}
	return paths, nil
}

// GetStorageValue returns the value stored at path in the account at addr,
// or an error wrapping ErrPathNotFound.
func (e *Emulator) GetStorageValue(ctx context.Context, addr crypto.Address, path string) (any, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.running {
		return nil, ErrNotRunning
	}
	if _, ok := e.accounts[addr]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, addr)
	}
	v, ok, err := e.state.read(ctx, []byte(storageKey(addr, p)))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrPathNotFound, p, addr)
	}
	return v, nil
}

// Subscribe returns a channel receiving every result sealed after the call,
// and a function that cancels the subscription. Results are dropped for a
// subscriber whose buffer is full. The channel is closed on cancel or Stop.
func (e *Emulator) Subscribe() (<-chan *TransactionResult, func()) {
	ch := make(chan *TransactionResult, e.cfg.SubscriberBuffer)

	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.subMu.Lock()
			defer e.subMu.Unlock()
			if c, ok := e.subs[id]; ok {
				close(c)
				delete(e.subs, id)
			}
		})
	}
	return ch, cancel
}

func (e *Emulator) broadcast(result *TransactionResult) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for id, ch := range e.subs {
		select {
		case ch <- result:
		default:
			e.logger.Warn("subscriber buffer full, dropping result",
				zap.Int("subscriber", id),
				zap.String("id", result.ID),
			)
		}
	}
}
