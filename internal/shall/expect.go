package shall

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/LeJamon/shalltest/internal/emulator"
	"github.com/LeJamon/shalltest/internal/interaction"
	"github.com/LeJamon/shalltest/internal/value"
)

// Operation names used in AssertionError.Op.
const (
	OpPass             = "shallPass"
	OpRevert           = "shallRevert"
	OpResolve          = "shallResolve"
	OpHavePath         = "shallHavePath"
	OpHaveStorageValue = "shallHaveStorageValue"
)

// StorageParams selects the stored value checked by HaveStorageValue.
type StorageParams struct {
	// PathName is a full /domain/identifier path, or a bare identifier in
	// the storage domain.
	PathName string
	// Key optionally descends into the stored value, as in value.Lookup.
	Key    string
	Expect any
}

func await(ctx context.Context, ix interaction.Interaction) interaction.Outcome {
	if ix == nil {
		return interaction.Failure(interaction.ErrNilInteraction)
	}
	return ix.Await(ctx)
}

// sealedFailure turns a successful outcome carrying a transaction that was
// sealed with an error into the failure it stands for. Pending interactions
// built on Emulator.SendTransaction settle this way.
func sealedFailure(out interaction.Outcome) interaction.Outcome {
	if !out.Ok() {
		return out
	}
	if res := out.Result(); res != nil && res.Sealed() && res.Failed() {
		return interaction.Failure(&emulator.TransactionError{Result: res})
	}
	return out
}

// notExecuted reports failures that happened around the interaction rather
// than in it.
func notExecuted(out interaction.Outcome) bool {
	return out.Canceled() ||
		errors.Is(out.Err(), interaction.ErrResolve) ||
		errors.Is(out.Err(), interaction.ErrNilInteraction)
}

// ExpectPass awaits ix and checks that it succeeded and, for transactions,
// that the result is sealed without error.
func ExpectPass(ctx context.Context, ix interaction.Interaction) (interaction.Outcome, error) {
	out := await(ctx, ix)
	if !out.Ok() {
		if out.Canceled() {
			return out, out.Err()
		}
		return out, assertionf(OpPass, out.Err(), "expected interaction to pass, but it failed: %s", out.Message())
	}
	if res := out.Result(); res != nil {
		if !res.Sealed() {
			return out, assertionf(OpPass, nil, "transaction %s is %s, expected %s", res.ID, res.Status, emulator.StatusSealed)
		}
		if res.Failed() {
			return out, assertionf(OpPass, &emulator.TransactionError{Result: res},
				"transaction %s was sealed with error: %s", res.ID, res.ErrorMessage)
		}
	}
	return out, nil
}

// ExpectRevert awaits ix and checks that it failed. With no expectation any
// failure is accepted; otherwise expect holds one string (exact message),
// *regexp.Regexp (pattern) or Matcher. Cancellation of ctx and failures to
// resolve accounts are returned as errors rather than counted as reverts.
func ExpectRevert(ctx context.Context, ix interaction.Interaction, expect ...any) (interaction.Outcome, error) {
	m, err := revertMatcher(expect)
	if err != nil {
		return interaction.Outcome{}, err
	}

	out := sealedFailure(await(ctx, ix))
	if out.Ok() {
		return out, assertionf(OpRevert, nil, "expected interaction to revert, but it passed: %s", out)
	}
	if notExecuted(out) {
		return out, out.Err()
	}
	if m == nil {
		return out, nil
	}

	msg := out.Message()
	matched, err := m.Match(msg)
	if err != nil {
		return out, fmt.Errorf("%s: match revert message: %w", OpRevert, err)
	}
	if !matched {
		return out, assertionf(OpRevert, out.Err(), "%s", m.FailureMessage(msg))
	}
	return out, nil
}

// ExpectResolve awaits ix and checks that it produced a value without error.
func ExpectResolve(ctx context.Context, ix interaction.Interaction) (interaction.Outcome, error) {
	out := sealedFailure(await(ctx, ix))
	if !out.Ok() {
		if out.Canceled() {
			return out, out.Err()
		}
		return out, assertionf(OpResolve, out.Err(), "expected interaction to resolve, but it failed: %s", out.Message())
	}
	return out, nil
}

// ExpectPath checks that account has a value stored at path. account is a
// registered name or a literal address.
func ExpectPath(ctx context.Context, in interaction.Inspector, account, path string) error {
	addr, err := interaction.ResolveAccount(ctx, in, account)
	if err != nil {
		return err
	}
	p, err := emulator.PathOrStorage(path)
	if err != nil {
		return assertionf(OpHavePath, err, "%v", err)
	}
	paths, err := in.GetStoragePaths(ctx, addr)
	if err != nil {
		return fmt.Errorf("%s: list storage paths of %s: %w", OpHavePath, account, err)
	}
	if !slices.Contains(paths, p.String()) {
		return assertionf(OpHavePath, nil, "account %s (%s) has no path %s; existing paths: [%s]",
			account, addr, p, strings.Join(paths, ", "))
	}
	return nil
}

// ExpectStorageValue checks that the value stored in account at
// params.PathName, narrowed by params.Key, deep-equals params.Expect.
func ExpectStorageValue(ctx context.Context, in interaction.Inspector, account string, params StorageParams) error {
	addr, err := interaction.ResolveAccount(ctx, in, account)
	if err != nil {
		return err
	}
	p, err := emulator.PathOrStorage(params.PathName)
	if err != nil {
		return assertionf(OpHaveStorageValue, err, "%v", err)
	}

	got, err := in.GetStorageValue(ctx, addr, p.String())
	if errors.Is(err, emulator.ErrPathNotFound) {
		return assertionf(OpHaveStorageValue, err, "account %s (%s) has no value at %s", account, addr, p)
	}
	if err != nil {
		return fmt.Errorf("%s: read %s of %s: %w", OpHaveStorageValue, p, account, err)
	}

	where := p.String()
	if params.Key != "" {
		where = fmt.Sprintf("%s[%s]", p, params.Key)
		if got, err = value.Lookup(got, params.Key); err != nil {
			return assertionf(OpHaveStorageValue, err, "account %s (%s): %s: %v", account, addr, where, err)
		}
	}

	if !value.Equal(params.Expect, got) {
		return assertionf(OpHaveStorageValue, nil, "account %s (%s): value at %s mismatch (-want +got):\n%s",
			account, addr, where, value.Diff(params.Expect, got))
	}
	return nil
}
