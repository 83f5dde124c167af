// Package scenario loads YAML scenario files and runs them through the shall
// assertions.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidScenario is wrapped by every validation error.
var ErrInvalidScenario = errors.New("invalid scenario")

// Expectations a transaction or script step may declare.
const (
	ExpectPass    = "pass"
	ExpectRevert  = "revert"
	ExpectResolve = "resolve"
)

// Step kinds.
const (
	KindTransaction  = "transaction"
	KindScript       = "script"
	KindHavePath     = "havePath"
	KindStorageValue = "storageValue"
)

// Scenario is a named list of steps run in order against one client.
type Scenario struct {
	Name string `yaml:"name"`
	// Accounts are resolved (and created, when the client auto-creates)
	// before the first step.
	Accounts          []string `yaml:"accounts,omitempty"`
	ContinueOnFailure bool     `yaml:"continueOnFailure,omitempty"`
	Steps             []Step   `yaml:"steps"`
}

// Step is one interaction or storage check. Exactly one of Transaction,
// Script, HavePath and StorageValue is set.
type Step struct {
	Name string `yaml:"name,omitempty"`

	Transaction  string        `yaml:"transaction,omitempty"`
	Script       string        `yaml:"script,omitempty"`
	HavePath     *PathCheck    `yaml:"havePath,omitempty"`
	StorageValue *StorageCheck `yaml:"storageValue,omitempty"`

	// Args may reference accounts as "@name"; "@@" escapes a literal "@".
	Args         []any    `yaml:"args,omitempty"`
	Payer        string   `yaml:"payer,omitempty"`
	Signers      []string `yaml:"signers,omitempty"`
	ComputeLimit uint64   `yaml:"computeLimit,omitempty"`

	// Expect defaults to pass for transactions and resolve for scripts.
	Expect  string `yaml:"expect,omitempty"`
	Message string `yaml:"message,omitempty"`
	Pattern string `yaml:"pattern,omitempty"`
	// Value is compared with a resolved script result.
	Value any `yaml:"value,omitempty"`
}

// PathCheck asserts that an account has a storage path.
type PathCheck struct {
	Account string `yaml:"account"`
	Path    string `yaml:"path"`
}

// StorageCheck asserts the value stored at an account path.
type StorageCheck struct {
	Account string `yaml:"account"`
	Path    string `yaml:"path"`
	Key     string `yaml:"key,omitempty"`
	Value   any    `yaml:"value"`
}

// Kind reports which kind of step s is, or "" if none is set.
func (s *Step) Kind() string {
	switch {
	case s.Transaction != "":
		return KindTransaction
	case s.Script != "":
		return KindScript
	case s.HavePath != nil:
		return KindHavePath
	case s.StorageValue != nil:
		return KindStorageValue
	}
	return ""
}

// Expectation returns Expect or the default for the step's kind.
func (s *Step) Expectation() string {
	if s.Expect != "" {
		return s.Expect
	}
	if s.Kind() == KindScript {
		return ExpectResolve
	}
	return ExpectPass
}

// Title is the step name, or a description derived from the step.
func (s *Step) Title(index int) string {
	if s.Name != "" {
		return s.Name
	}
	switch s.Kind() {
	case KindTransaction:
		return fmt.Sprintf("#%d %s %s", index+1, s.Transaction, s.Expectation())
	case KindScript:
		return fmt.Sprintf("#%d %s %s", index+1, s.Script, s.Expectation())
	case KindHavePath:
		return fmt.Sprintf("#%d %s has %s", index+1, s.HavePath.Account, s.HavePath.Path)
	case KindStorageValue:
		return fmt.Sprintf("#%d %s value at %s", index+1, s.StorageValue.Account, s.StorageValue.Path)
	}
	return fmt.Sprintf("#%d", index+1)
}

func (s *Step) validate() error {
	set := 0
	for _, ok := range []bool{s.Transaction != "", s.Script != "", s.HavePath != nil, s.StorageValue != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return errors.New("step must set exactly one of transaction, script, havePath and storageValue")
	}

	switch s.Kind() {
	case KindTransaction, KindScript:
		switch s.Expectation() {
		case ExpectPass, ExpectResolve, ExpectRevert:
		default:
			return fmt.Errorf("unknown expectation %q", s.Expect)
		}
		if s.Expectation() != ExpectRevert && (s.Message != "" || s.Pattern != "") {
			return errors.New("message and pattern apply only to revert steps")
		}
		if s.Message != "" && s.Pattern != "" {
			return errors.New("message and pattern are mutually exclusive")
		}
		if s.Pattern != "" {
			if _, err := regexp.Compile(s.Pattern); err != nil {
				return fmt.Errorf("invalid pattern: %w", err)
			}
		}
		if s.Kind() == KindScript && (s.Payer != "" || len(s.Signers) > 0) {
			return errors.New("scripts take no payer or signers")
		}
		if s.Value != nil && (s.Kind() != KindScript || s.Expectation() == ExpectRevert) {
			return errors.New("value applies only to scripts expected to succeed")
		}
	case KindHavePath:
		if s.HavePath.Account == "" || s.HavePath.Path == "" {
			return errors.New("havePath needs account and path")
		}
	case KindStorageValue:
		if s.StorageValue.Account == "" || s.StorageValue.Path == "" {
			return errors.New("storageValue needs account and path")
		}
	}
	return nil
}

// Validate checks the scenario structure without contacting any client.
func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidScenario)
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("%w %q: no steps", ErrInvalidScenario, sc.Name)
	}
	for _, a := range sc.Accounts {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("%w %q: empty account name", ErrInvalidScenario, sc.Name)
		}
	}
	for i := range sc.Steps {
		if err := sc.Steps[i].validate(); err != nil {
			return fmt.Errorf("%w %q: step %s: %w", ErrInvalidScenario, sc.Name, sc.Steps[i].Title(i), err)
		}
	}
	return nil
}

// Parse decodes and validates a scenario. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Load reads and parses the scenario file at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}
