package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/iudanet/fieldsync/internal/syncerr"
)

// Reason codes produced by the built-in rules.
const (
	CodeRequired   = "required"
	CodeTooShort   = "too_short"
	CodeTooLong    = "too_long"
	CodePattern    = "pattern"
	CodeNotAllowed = "not_allowed"
)

// Required rejects empty and whitespace-only values.
func Required() Rule {
	return func(value string) *syncerr.Reason {
		if strings.TrimSpace(value) == "" {
			return &syncerr.Reason{Code: CodeRequired, Message: "value cannot be empty"}
		}
		return nil
	}
}

// MinLength rejects values shorter than n characters. Empty values pass, so
// it can be combined with Required for optional fields.
func MinLength(n int) Rule {
	return func(value string) *syncerr.Reason {
		if value != "" && utf8.RuneCountInString(value) < n {
			return &syncerr.Reason{
				Code:    CodeTooShort,
				Message: fmt.Sprintf("value must be at least %d characters long", n),
			}
		}
		return nil
	}
}

// MaxLength rejects values longer than n characters.
func MaxLength(n int) Rule {
	return func(value string) *syncerr.Reason {
		if utf8.RuneCountInString(value) > n {
			return &syncerr.Reason{
				Code:    CodeTooLong,
				Message: fmt.Sprintf("value must not exceed %d characters", n),
			}
		}
		return nil
	}
}

// Pattern rejects non-empty values that do not match re.
func Pattern(re *regexp.Regexp, message string) Rule {
	return func(value string) *syncerr.Reason {
		if value != "" && !re.MatchString(value) {
			return &syncerr.Reason{Code: CodePattern, Message: message}
		}
		return nil
	}
}

// OneOf rejects values outside the allowed set.
func OneOf(allowed ...string) Rule {
	return func(value string) *syncerr.Reason {
		if !slices.Contains(allowed, value) {
			return &syncerr.Reason{
				Code:    CodeNotAllowed,
				Message: fmt.Sprintf("value must be one of: %s", strings.Join(allowed, ", ")),
			}
		}
		return nil
	}
}

// Func adapts a plain predicate into a rule.
func Func(code string, check func(string) error) Rule {
	return func(value string) *syncerr.Reason {
		if err := check(value); err != nil {
			return &syncerr.Reason{Code: code, Message: err.Error()}
		}
		return nil
	}
}
