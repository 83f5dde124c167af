package shall

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// ToolingT is a T for running assertions outside of go test. Failures are
// logged and recorded; FailNow ends the calling goroutine, so assertions
// must run inside Run.
type ToolingT struct {
	ctx    context.Context
	name   string
	logger *zap.Logger

	mu     sync.Mutex
	failed bool
	errors []string
}

// NewToolingT returns a ToolingT named name. A nil logger discards output.
func NewToolingT(ctx context.Context, name string, logger *zap.Logger) *ToolingT {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolingT{ctx: ctx, name: name, logger: logger.With(zap.String("step", name))}
}

func (t *ToolingT) Helper() {}

func (t *ToolingT) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	t.mu.Lock()
	t.failed = true
	t.errors = append(t.errors, msg)
	t.mu.Unlock()
	t.logger.Error("assertion failed", zap.String("error", msg))
}

func (t *ToolingT) FailNow() {
	t.mu.Lock()
	t.failed = true
	t.mu.Unlock()
	runtime.Goexit()
}

func (t *ToolingT) Context() context.Context {
	return t.ctx
}

func (t *ToolingT) Name() string {
	return t.name
}

func (t *ToolingT) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

// Errors returns the recorded failure messages.
func (t *ToolingT) Errors() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.errors...)
}

// Run calls fn on a new goroutine and waits for it to return or stop via
// FailNow. A panic in fn is recorded as a failure. Run reports whether t is
// still passing.
func (t *ToolingT) Run(fn func(t T)) bool {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("panic: %v", r)
			}
		}()
		fn(t)
	}()
	<-done
	return !t.Failed()
}
