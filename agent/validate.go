package agent

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/navigator-ai/careerflow/config"
)

// Reason classifies a validation rejection.
type Reason string

const (
	// ReasonEmpty marks a message that is empty after trimming.
	ReasonEmpty Reason = "empty"

	// ReasonTooLong marks a message over the configured maximum length.
	ReasonTooLong Reason = "too_long"

	// ReasonDisallowedContent marks a message matching the denylist.
	ReasonDisallowedContent Reason = "disallowed_content"
)

// ValidationError is the typed rejection returned by the validation gate.
// It is synchronous and user-visible; a rejected turn incurs no retrieval
// or synthesis cost.
type ValidationError struct {
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("message rejected: %s", e.Reason)
	}
	return fmt.Sprintf("message rejected: %s (%s)", e.Reason, e.Detail)
}

// Validator is the input acceptance gate. Denylist patterns are compiled
// once at construction.
type Validator struct {
	maxLength int
	denylist  []*regexp.Regexp
}

// NewValidator compiles the configured denylist and returns the gate.
func NewValidator(cfg config.Validation) (*Validator, error) {
	v := &Validator{maxLength: cfg.MaxLength}
	for _, pattern := range cfg.Denylist {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile denylist pattern %q: %w", pattern, err)
		}
		v.denylist = append(v.denylist, re)
	}
	return v, nil
}

// Validate accepts or rejects a user message. Length is counted in runes,
// not bytes, so multi-byte text is not penalized. A nil return means the
// message is accepted.
func (v *Validator) Validate(text string, profile Profile) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Reason: ReasonEmpty}
	}
	if n := utf8.RuneCountInString(text); n > v.maxLength {
		return &ValidationError{
			Reason: ReasonTooLong,
			Detail: fmt.Sprintf("%d runes, max %d", n, v.maxLength),
		}
	}
	for _, re := range v.denylist {
		if re.MatchString(text) {
			return &ValidationError{Reason: ReasonDisallowedContent}
		}
	}
	return nil
}
