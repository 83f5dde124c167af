package interaction_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LeJamon/shalltest/internal/emulator"
	"github.com/LeJamon/shalltest/internal/emulator/emutest"
	"github.com/LeJamon/shalltest/internal/interaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestOutcome(t *testing.T) {
	ok := interaction.Success(42)
	assert.True(t, ok.Ok())
	assert.Equal(t, 42, ok.Value())
	assert.NoError(t, ok.Err())
	assert.Empty(t, ok.Message())
	v, err := ok.Unpack()
	assert.Equal(t, 42, v)
	assert.NoError(t, err)
	assert.Nil(t, ok.Result())

	boom := errors.New("boom")
	bad := interaction.Failure(boom)
	assert.False(t, bad.Ok())
	assert.Nil(t, bad.Value())
	assert.Equal(t, "boom", bad.Message())
	assert.False(t, bad.Canceled())

	assert.Error(t, interaction.Failure(nil).Err())
	assert.True(t, interaction.Failure(context.Canceled).Canceled())
	assert.True(t, interaction.Failure(context.DeadlineExceeded).Canceled())

	assert.Equal(t, ok, interaction.FromResult(42, nil))
	assert.Equal(t, bad, interaction.FromResult(7, boom))
}

func TestFunc(t *testing.T) {
	ctx := context.Background()
	calls := 0
	f := interaction.Func(func(context.Context) interaction.Outcome {
		calls++
		return interaction.Success("done")
	})
	assert.Equal(t, 0, calls)
	assert.Equal(t, "done", f.Await(ctx).Value())
	assert.Equal(t, 1, calls)

	var nilFunc interaction.Func
	assert.ErrorIs(t, nilFunc.Await(ctx).Err(), interaction.ErrNilInteraction)

	panicky := interaction.Func(func(context.Context) interaction.Outcome { panic("kaput") })
	out := panicky.Await(ctx)
	assert.Equal(t, "interaction panicked: kaput", out.Message())

	assert.Equal(t, 1, interaction.Resolved(1).Await(ctx).Value())
	assert.Equal(t, "nope", interaction.Rejected(errors.New("nope")).Await(ctx).Message())
}

func TestPending(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	p := interaction.Go(ctx, func(context.Context) interaction.Outcome {
		<-release
		return interaction.Success("late")
	})

	select {
	case <-p.Done():
		t.Fatal("settled before release")
	default:
	}
	close(release)
	assert.Equal(t, "late", p.Await(ctx).Value())
	assert.Equal(t, "late", p.Await(ctx).Value())
}

func TestPending_AwaitCanceled(t *testing.T) {
	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	p := interaction.Go(runCtx, func(ctx context.Context) interaction.Outcome {
		<-ctx.Done()
		return interaction.Failure(ctx.Err())
	})

	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	out := p.Await(waitCtx)
	assert.True(t, out.Canceled())
	assert.ErrorIs(t, out.Err(), context.DeadlineExceeded)

	stop()
	<-p.Done()
}

func TestSendTransaction(t *testing.T) {
	ctx := context.Background()
	emu := emutest.New(t)

	out := interaction.SendTransaction(emu, interaction.TxConfig{
		Code:  "storage.save",
		Payer: "alice",
		Args:  []any{"note", "hello"},
	}).Await(ctx)
	require.True(t, out.Ok(), out.Message())
	res := out.Result()
	require.NotNil(t, res)
	assert.True(t, res.Sealed())

	alice, err := emu.GetAccountAddress(ctx, "alice")
	require.NoError(t, err)
	v, err := emu.GetStorageValue(ctx, alice, "/storage/note")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	out = interaction.SendTransaction(emu, interaction.TxConfig{Code: "panic", Args: []any{"no way"}}).Await(ctx)
	require.False(t, out.Ok())
	assert.Equal(t, "no way", out.Message())
	var txErr *emulator.TransactionError
	require.ErrorAs(t, out.Err(), &txErr)
	assert.Equal(t, 1, txErr.Result.StatusCode)
	assert.Same(t, txErr.Result, out.Result())
}

func TestSendTransaction_Signers(t *testing.T) {
	ctx := context.Background()
	emu := emutest.New(t)
	bob, err := emu.GetAccountAddress(ctx, "bob")
	require.NoError(t, err)

	out := interaction.SendTransaction(emu, interaction.TxConfig{
		Code:    "token.setup",
		Payer:   "alice",
		Signers: []string{"alice", bob.String()},
	}).Await(ctx)
	require.True(t, out.Ok(), out.Message())
	assert.Len(t, out.Result().EventsOfType("token.VaultCreated"), 2)
}

func TestSendTransaction_ResolveFailure(t *testing.T) {
	cfg := emulator.DefaultConfig()
	cfg.AutoCreateAccounts = false
	emu := emutest.NewWithConfig(t, cfg)

	out := interaction.SendTransaction(emu, interaction.TxConfig{
		Code:  "storage.save",
		Payer: "ghost",
		Args:  []any{"x", 1},
	}).Await(context.Background())
	assert.ErrorIs(t, out.Err(), interaction.ErrResolve)
	assert.ErrorIs(t, out.Err(), emulator.ErrUnknownAccount)
	assert.Equal(t, uint64(0), emu.Height())
}

func TestExecuteScript(t *testing.T) {
	ctx := context.Background()
	emu := emutest.New(t)

	out := interaction.ExecuteScript(emu, interaction.ScriptConfig{Code: "math.sum", Args: []any{40, 2}}).Await(ctx)
	v, err := out.Unpack()
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	out = interaction.ExecuteScript(emu, interaction.ScriptConfig{Code: "token.balance", Args: []any{"0x0000000000000001"}}).Await(ctx)
	var scriptErr *emulator.ScriptError
	require.ErrorAs(t, out.Err(), &scriptErr)
	assert.Equal(t, "account 0x0000000000000001 has no token vault", out.Message())
}

func TestGo_WithEmulator(t *testing.T) {
	emu := emutest.New(t)
	p := interaction.Go(context.Background(), interaction.SendTransaction(emu, interaction.TxConfig{
		Code: "storage.save",
		Args: []any{"async", true},
	}))
	out := p.Await(context.Background())
	require.True(t, out.Ok(), out.Message())
	assert.Equal(t, uint64(1), out.Result().BlockHeight)
}
