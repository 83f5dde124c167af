package shall

import (
	"fmt"
	"regexp"
)

// Matcher checks a revert message. Gomega matchers satisfy it.
type Matcher interface {
	Match(actual any) (bool, error)
	FailureMessage(actual any) string
}

type exactMatcher struct {
	want string
}

func (m exactMatcher) Match(actual any) (bool, error) {
	return actual == m.want, nil
}

func (m exactMatcher) FailureMessage(actual any) string {
	return fmt.Sprintf("expected revert message %q, got %q", m.want, actual)
}

type patternMatcher struct {
	re *regexp.Regexp
}

func (m patternMatcher) Match(actual any) (bool, error) {
	s, ok := actual.(string)
	if !ok {
		return false, fmt.Errorf("pattern matcher expects a string, got %T", actual)
	}
	return m.re.MatchString(s), nil
}

func (m patternMatcher) FailureMessage(actual any) string {
	return fmt.Sprintf("expected revert message matching %s, got %q", m.re, actual)
}

// Equal matches a revert message exactly.
func Equal(message string) Matcher {
	return exactMatcher{want: message}
}

// Match matches a revert message against a regular expression. It panics if
// pattern does not compile; use Pattern for patterns that are not constants.
func Match(pattern string) Matcher {
	return patternMatcher{re: regexp.MustCompile(pattern)}
}

// Pattern is Match returning an ErrUsage error for an invalid pattern.
func Pattern(pattern string) (Matcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return patternMatcher{re: re}, nil
}

// revertMatcher turns the optional expectation passed to Revert into a
// Matcher. No expectation yields nil, meaning any revert is accepted.
func revertMatcher(expect []any) (Matcher, error) {
	switch len(expect) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("%w: at most one revert expectation, got %d", ErrUsage, len(expect))
	}

	switch e := expect[0].(type) {
	case string:
		return exactMatcher{want: e}, nil
	case *regexp.Regexp:
		if e == nil {
			return nil, fmt.Errorf("%w: nil pattern", ErrUsage)
		}
		return patternMatcher{re: e}, nil
	case Matcher:
		return e, nil
	default:
		return nil, fmt.Errorf("%w: revert expectation must be a string, *regexp.Regexp or Matcher, got %T", ErrUsage, e)
	}
}
