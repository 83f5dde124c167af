package emulator

import (
	"errors"
	"fmt"
	"math"

	"github.com/LeJamon/shalltest/internal/crypto"
)

// Token storage layout created by token.setup.
var (
	TokenVaultPath    = StoragePath("tokenVault")
	TokenReceiverPath = PublicPath("tokenReceiver")
)

// StandardRegistry returns a registry holding the built-in handlers.
func StandardRegistry() *Registry {
	r := NewRegistry()
	RegisterStandard(r)
	return r
}

// RegisterStandard adds the built-in handlers to r.
func RegisterStandard(r *Registry) {
	r.MustRegisterTransaction("storage.save", txStorageSave)
	r.MustRegisterTransaction("storage.remove", txStorageRemove)
	r.MustRegisterTransaction("token.setup", txTokenSetup)
	r.MustRegisterTransaction("token.mint", txTokenMint)
	r.MustRegisterTransaction("token.transfer", txTokenTransfer)
	r.MustRegisterTransaction("panic", txPanic)

	r.MustRegisterScript("storage.read", scriptStorageRead)
	r.MustRegisterScript("storage.paths", scriptStoragePaths)
	r.MustRegisterScript("token.balance", scriptTokenBalance)
	r.MustRegisterScript("math.sum", scriptMathSum)
	r.MustRegisterScript("echo", scriptEcho)
}

// storage.save(path, value)
func txStorageSave(ctx *TxContext, args []any) error {
	if err := ExpectArgs(args, 2); err != nil {
		return err
	}
	p, err := ArgPath(args, 0)
	if err != nil {
		return err
	}
	if err := ctx.Save(ctx.Signer(), p, args[1]); err != nil {
		return err
	}
	return ctx.Emit("storage.Saved", map[string]any{"owner": ctx.Signer(), "path": p.String()})
}

// storage.remove(path)
func txStorageRemove(ctx *TxContext, args []any) error {
	if err := ExpectArgs(args, 1); err != nil {
		return err
	}
	p, err := ArgPath(args, 0)
	if err != nil {
		return err
	}
	if _, err := ctx.Remove(ctx.Signer(), p); err != nil {
		return err
	}
	return ctx.Emit("storage.Removed", map[string]any{"owner": ctx.Signer(), "path": p.String()})
}

// token.setup() creates an empty vault for every signer.
func txTokenSetup(ctx *TxContext, args []any) error {
	if err := ExpectArgs(args, 0); err != nil {
		return err
	}
	for _, owner := range ctx.Signers() {
		exists, err := ctx.Exists(owner, TokenVaultPath)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("vault already exists for %s", owner)
		}
		if err := ctx.Save(owner, TokenVaultPath, map[string]any{"balance": 0}); err != nil {
			return err
		}
		if err := ctx.Link(owner, TokenReceiverPath, TokenVaultPath); err != nil {
			return err
		}
		if err := ctx.Emit("token.VaultCreated", map[string]any{"owner": owner}); err != nil {
			return err
		}
	}
	return nil
}

func vaultBalance(v any) (int64, error) {
	fields, ok := v.(map[string]any)
	if !ok {
		return 0, fmt.Errorf("malformed token vault: %T", v)
	}
	balance, ok := fields["balance"].(int64)
	if !ok {
		return 0, fmt.Errorf("malformed token vault balance: %T", fields["balance"])
	}
	return balance, nil
}

func deposit(ctx *TxContext, to crypto.Address, amount int64) error {
	err := ctx.UpdateLinked(to, TokenReceiverPath, func(current any) (any, error) {
		balance, err := vaultBalance(current)
		if err != nil {
			return nil, err
		}
		sum, ok := addInt64(balance, amount)
		if !ok {
			return nil, fmt.Errorf("balance overflow: have %d, deposit %d", balance, amount)
		}
		return map[string]any{"balance": sum}, nil
	})
	if errors.Is(err, ErrPathNotFound) {
		return fmt.Errorf("recipient %s has no token vault", to)
	}
	if err != nil {
		return err
	}
	return ctx.Emit("token.Deposited", map[string]any{"to": to, "amount": amount})
}

func amountArg(args []any, i int) (int64, error) {
	amount, err := ArgInt(args, i)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %d", amount)
	}
	return amount, nil
}

// token.mint(recipient, amount); only the service account may sign.
func txTokenMint(ctx *TxContext, args []any) error {
	if err := ExpectArgs(args, 2); err != nil {
		return err
	}
	if !ctx.IsSigner(ctx.ServiceAddress()) {
		return errors.New("only the service account can mint tokens")
	}
	to, err := ArgAddress(args, 0)
	if err != nil {
		return err
	}
	amount, err := amountArg(args, 1)
	if err != nil {
		return err
	}
	if err := deposit(ctx, to, amount); err != nil {
		return err
	}
	return ctx.Emit("token.Minted", map[string]any{"to": to, "amount": amount})
}

// token.transfer(recipient, amount) moves tokens out of the first signer's
// vault.
func txTokenTransfer(ctx *TxContext, args []any) error {
	if err := ExpectArgs(args, 2); err != nil {
		return err
	}
	to, err := ArgAddress(args, 0)
	if err != nil {
		return err
	}
	amount, err := amountArg(args, 1)
	if err != nil {
		return err
	}

	from := ctx.Signer()
	vault, err := ctx.Load(from, TokenVaultPath)
	if errors.Is(err, ErrPathNotFound) {
		return fmt.Errorf("sender %s has no token vault", from)
	}
	if err != nil {
		return err
	}
	balance, err := vaultBalance(vault)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("insufficient balance: have %d, need %d", balance, amount)
	}
	if err := ctx.Save(from, TokenVaultPath, map[string]any{"balance": balance - amount}); err != nil {
		return err
	}
	if err := ctx.Emit("token.Withdrawn", map[string]any{"from": from, "amount": amount}); err != nil {
		return err
	}
	return deposit(ctx, to, amount)
}

// panic(message) aborts the transaction with message.
func txPanic(ctx *TxContext, args []any) error {
	msg, err := ArgString(args, 0)
	if err != nil {
		return err
	}
	panic(msg)
}

// storage.read(address, path)
func scriptStorageRead(ctx *ScriptContext, args []any) (any, error) {
	if err := ExpectArgs(args, 2); err != nil {
		return nil, err
	}
	addr, err := ArgAddress(args, 0)
	if err != nil {
		return nil, err
	}
	p, err := ArgPath(args, 1)
	if err != nil {
		return nil, err
	}
	return ctx.Load(addr, p)
}

// storage.paths(address)
func scriptStoragePaths(ctx *ScriptContext, args []any) (any, error) {
	if err := ExpectArgs(args, 1); err != nil {
		return nil, err
	}
	addr, err := ArgAddress(args, 0)
	if err != nil {
		return nil, err
	}
	return ctx.Paths(addr)
}

// token.balance(address)
func scriptTokenBalance(ctx *ScriptContext, args []any) (any, error) {
	if err := ExpectArgs(args, 1); err != nil {
		return nil, err
	}
	addr, err := ArgAddress(args, 0)
	if err != nil {
		return nil, err
	}
	vault, err := ctx.Load(addr, TokenVaultPath)
	if errors.Is(err, ErrPathNotFound) {
		return nil, fmt.Errorf("account %s has no token vault", addr)
	}
	if err != nil {
		return nil, err
	}
	return vaultBalance(vault)
}

// addInt64 returns a+b and false when the sum does not fit in an int64.
func addInt64(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}

// math.sum(ints...)
func scriptMathSum(ctx *ScriptContext, args []any) (any, error) {
	var sum int64
	for i := range args {
		n, err := ArgInt(args, i)
		if err != nil {
			return nil, err
		}
		var ok bool
		if sum, ok = addInt64(sum, n); !ok {
			return nil, fmt.Errorf("%w: sum overflows int64 at argument %d", ErrInvalidArgument, i)
		}
	}
	return sum, nil
}

// echo(value)
func scriptEcho(ctx *ScriptContext, args []any) (any, error) {
	if err := ExpectArgs(args, 1); err != nil {
		return nil, err
	}
	return args[0], nil
}
