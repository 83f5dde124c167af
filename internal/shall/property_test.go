package shall_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/LeJamon/shalltest/internal/interaction"
	"github.com/LeJamon/shalltest/internal/shall"
	"pgregory.net/rapid"
)

func TestRevertProperties(t *testing.T) {
	ctx := context.Background()

	t.Run("any failure reverts without expectation", func(t *testing.T) {
		rapid.Check(t, func(rt *rapid.T) {
			msg := rapid.String().Draw(rt, "msg")
			if _, err := shall.ExpectRevert(ctx, interaction.Rejected(errors.New(msg))); err != nil {
				rt.Fatalf("unexpected error: %v", err)
			}
		})
	})

	t.Run("exact message matches only itself", func(t *testing.T) {
		rapid.Check(t, func(rt *rapid.T) {
			msg := rapid.String().Draw(rt, "msg")
			want := rapid.String().Draw(rt, "want")
			_, err := shall.ExpectRevert(ctx, interaction.Rejected(errors.New(msg)), want)
			if (err == nil) != (msg == want) {
				rt.Fatalf("msg %q want %q: err = %v", msg, want, err)
			}
			if err != nil && !shall.IsAssertion(err) {
				rt.Fatalf("expected assertion error, got %v", err)
			}
		})
	})

	t.Run("quoted pattern matches the message", func(t *testing.T) {
		rapid.Check(t, func(rt *rapid.T) {
			msg := rapid.String().Draw(rt, "msg")
			re := regexp.MustCompile("^" + regexp.QuoteMeta(msg) + "$")
			if _, err := shall.ExpectRevert(ctx, interaction.Rejected(errors.New(msg)), re); err != nil {
				rt.Fatalf("pattern %s did not match %q: %v", re, msg, err)
			}
		})
	})

	t.Run("success never reverts", func(t *testing.T) {
		rapid.Check(t, func(rt *rapid.T) {
			v := rapid.Int().Draw(rt, "v")
			_, err := shall.ExpectRevert(ctx, interaction.Resolved(v))
			if !shall.IsAssertion(err) {
				rt.Fatalf("expected assertion error, got %v", err)
			}
		})
	})
}
