package scenario

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/LeJamon/shalltest/internal/interaction"
	"github.com/LeJamon/shalltest/internal/shall"
	"github.com/LeJamon/shalltest/internal/value"
	"go.uber.org/zap"
)

// StepStatus is the result of a single step.
type StepStatus string

const (
	StepPassed  StepStatus = "passed"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepReport records how one step went.
type StepReport struct {
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Status   StepStatus    `json:"status"`
	Errors   []string      `json:"errors,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report is the outcome of running a scenario.
type Report struct {
	Scenario string        `json:"scenario"`
	Steps    []StepReport  `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// Passed reports whether no step failed.
func (r *Report) Passed() bool {
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			return false
		}
	}
	return true
}

// Counts returns the number of passed, failed and skipped steps.
func (r *Report) Counts() (passed, failed, skipped int) {
	for _, s := range r.Steps {
		switch s.Status {
		case StepPassed:
			passed++
		case StepFailed:
			failed++
		case StepSkipped:
			skipped++
		}
	}
	return passed, failed, skipped
}

func (r *Report) String() string {
	passed, failed, skipped := r.Counts()
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d passed, %d failed, %d skipped (%s)\n", r.Scenario, passed, failed, skipped, r.Duration.Round(time.Millisecond))
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "  [%s] %s\n", s.Status, s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "      %s\n", strings.ReplaceAll(e, "\n", "\n      "))
		}
	}
	return b.String()
}

// Runner executes scenarios against a client.
type Runner struct {
	client interaction.Client
	logger *zap.Logger
}

// NewRunner returns a runner for client. A nil logger discards output.
func NewRunner(client interaction.Client, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{client: client, logger: logger}
}

// Run executes the steps of sc in order. Assertion failures are recorded in
// the report; the returned error is reserved for scenarios that could not be
// started, such as an account that fails to resolve, or a canceled ctx.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	logger := r.logger.With(zap.String("scenario", sc.Name))
	start := time.Now()

	accounts := make(map[string]string, len(sc.Accounts))
	for _, name := range sc.Accounts {
		addr, err := interaction.ResolveAccount(ctx, r.client, name)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		accounts[name] = addr.String()
		logger.Debug("account ready", zap.String("account", name), zap.Stringer("address", addr))
	}

	report := &Report{Scenario: sc.Name}
	failed := false
	for i := range sc.Steps {
		step := &sc.Steps[i]
		sr := StepReport{Name: step.Title(i), Kind: step.Kind()}
		if failed && !sc.ContinueOnFailure {
			sr.Status = StepSkipped
			report.Steps = append(report.Steps, sr)
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stepStart := time.Now()
		t := shall.NewToolingT(ctx, sr.Name, logger)
		t.Run(func(t shall.T) {
			r.runStep(ctx, t, step, accounts)
		})
		sr.Duration = time.Since(stepStart)
		sr.Status = StepPassed
		if t.Failed() {
			sr.Status = StepFailed
			sr.Errors = t.Errors()
			failed = true
		}
		logger.Info("step finished",
			zap.String("step", sr.Name),
			zap.String("status", string(sr.Status)),
			zap.Duration("took", sr.Duration))
		report.Steps = append(report.Steps, sr)
	}
	report.Duration = time.Since(start)
	return report, nil
}

func (r *Runner) runStep(ctx context.Context, t shall.T, step *Step, accounts map[string]string) {
	switch step.Kind() {
	case KindTransaction:
		args, err := r.resolveArgs(ctx, step.Args, accounts)
		if err != nil {
			t.Errorf("%v", err)
			t.FailNow()
		}
		ix := interaction.SendTransaction(r.client, interaction.TxConfig{
			Code:         step.Transaction,
			Args:         args,
			Payer:        step.Payer,
			Signers:      step.Signers,
			ComputeLimit: step.ComputeLimit,
		})
		expect(t, step, ix)
	case KindScript:
		args, err := r.resolveArgs(ctx, step.Args, accounts)
		if err != nil {
			t.Errorf("%v", err)
			t.FailNow()
		}
		ix := interaction.ExecuteScript(r.client, interaction.ScriptConfig{
			Code:         step.Script,
			Args:         args,
			ComputeLimit: step.ComputeLimit,
		})
		out := expect(t, step, ix)
		if step.Value != nil && out.Ok() {
			if diff := value.Diff(step.Value, out.Value()); diff != "" {
				t.Errorf("script %s result mismatch (-want +got):\n%s", step.Script, diff)
			}
		}
	case KindHavePath:
		shall.HavePath(t, r.client, step.HavePath.Account, step.HavePath.Path)
	case KindStorageValue:
		sv := step.StorageValue
		shall.HaveStorageValue(t, r.client, sv.Account, shall.StorageParams{
			PathName: sv.Path,
			Key:      sv.Key,
			Expect:   sv.Value,
		})
	}
}

func expect(t shall.T, step *Step, ix interaction.Interaction) interaction.Outcome {
	switch step.Expectation() {
	case ExpectRevert:
		var matchers []any
		switch {
		case step.Message != "":
			matchers = append(matchers, step.Message)
		case step.Pattern != "":
			m, err := shall.Pattern(step.Pattern)
			if err != nil {
				t.Errorf("step %s: %v", step.Name, err)
				t.FailNow()
			}
			matchers = append(matchers, m)
		}
		return shall.Revert(t, ix, matchers...)
	case ExpectResolve:
		return shall.Resolve(t, ix)
	default:
		return shall.Pass(t, ix)
	}
}

// resolveArgs replaces "@name" strings, at any depth, with the address of
// the named account.
func (r *Runner) resolveArgs(ctx context.Context, args []any, accounts map[string]string) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		v, err := r.resolveArg(ctx, a, accounts)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *Runner) resolveArg(ctx context.Context, arg any, accounts map[string]string) (any, error) {
	switch v := arg.(type) {
	case string:
		if strings.HasPrefix(v, "@@") {
			return v[1:], nil
		}
		if !strings.HasPrefix(v, "@") {
			return v, nil
		}
		name := v[1:]
		if addr, ok := accounts[name]; ok {
			return addr, nil
		}
		addr, err := interaction.ResolveAccount(ctx, r.client, name)
		if err != nil {
			return nil, err
		}
		accounts[name] = addr.String()
		return accounts[name], nil
	case []any:
		return r.resolveArgs(ctx, v, accounts)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			resolved, err := r.resolveArg(ctx, e, accounts)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	}
	return arg, nil
}
