// Package interaction models transaction sends and script executions as
// values that can be awaited once, either deferred (Func) or already in
// flight (Pending).
package interaction

import (
	"context"
	"errors"
	"fmt"
)

// ErrNilInteraction is returned when awaiting a nil interaction.
var ErrNilInteraction = errors.New("nil interaction")

// Interaction produces an Outcome when awaited.
type Interaction interface {
	Await(ctx context.Context) Outcome
}

// Func is a deferred interaction: it does nothing until awaited. A panic in
// the function settles the interaction as a failure.
type Func func(ctx context.Context) Outcome

func (f Func) Await(ctx context.Context) (out Outcome) {
	if f == nil {
		return Failure(ErrNilInteraction)
	}
	defer func() {
		if r := recover(); r != nil {
			out = Failure(fmt.Errorf("interaction panicked: %v", r))
		}
	}()
	return f(ctx)
}

// Pending is an interaction that is already running.
type Pending struct {
	done    chan struct{}
	outcome Outcome
}

// Go starts f in its own goroutine and returns the pending interaction.
func Go(ctx context.Context, f Func) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.outcome = f.Await(ctx)
	}()
	return p
}

// Done is closed once the interaction has settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Await waits for the interaction to settle or for ctx to end, whichever
// comes first.
func (p *Pending) Await(ctx context.Context) Outcome {
	select {
	case <-p.done:
		return p.outcome
	case <-ctx.Done():
		return Failure(ctx.Err())
	}
}

// Resolved returns an interaction that always succeeds with v.
func Resolved(v any) Interaction {
	return Func(func(context.Context) Outcome { return Success(v) })
}

// Rejected returns an interaction that always fails with err.
func Rejected(err error) Interaction {
	return Func(func(context.Context) Outcome { return Failure(err) })
}
