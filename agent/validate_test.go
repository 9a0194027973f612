package agent

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navigator-ai/careerflow/config"
)

func newTestValidator(t *testing.T, cfg config.Validation) *Validator {
	t.Helper()
	v, err := NewValidator(cfg)
	require.NoError(t, err)
	return v
}

func TestValidatorAccepts(t *testing.T) {
	v := newTestValidator(t, config.Validation{MaxLength: 1000})

	assert.NoError(t, v.Validate("how do I move into a platform role?", Profile{}))
}

func TestValidatorRejections(t *testing.T) {
	v := newTestValidator(t, config.Validation{
		MaxLength: 1000,
		Denylist:  []string{`(?i)buy cheap pills`},
	})

	tests := []struct {
		name   string
		text   string
		reason Reason
	}{
		{"empty", "", ReasonEmpty},
		{"whitespace only", "   \n\t  ", ReasonEmpty},
		{"over max length", strings.Repeat("a", 1001), ReasonTooLong},
		{"denylisted", "BUY CHEAP PILLS now", ReasonDisallowedContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.text, Profile{})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.reason, verr.Reason)
		})
	}
}

func TestValidatorLengthBoundary(t *testing.T) {
	v := newTestValidator(t, config.Validation{MaxLength: 1000})

	assert.NoError(t, v.Validate(strings.Repeat("x", 999), Profile{}))
	assert.NoError(t, v.Validate(strings.Repeat("x", 1000), Profile{}))

	err := v.Validate(strings.Repeat("x", 1001), Profile{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonTooLong, verr.Reason)
}

func TestValidatorCountsRunesNotBytes(t *testing.T) {
	v := newTestValidator(t, config.Validation{MaxLength: 10})

	// 10 runes, 30 bytes in UTF-8.
	assert.NoError(t, v.Validate(strings.Repeat("가", 10), Profile{}))

	err := v.Validate(strings.Repeat("가", 11), Profile{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonTooLong, verr.Reason)
}

func TestNewValidatorRejectsBadPattern(t *testing.T) {
	_, err := NewValidator(config.Validation{
		MaxLength: 100,
		Denylist:  []string{`[unclosed`},
	})
	require.Error(t, err)
	assert.False(t, errors.As(err, new(*ValidationError)))
}
