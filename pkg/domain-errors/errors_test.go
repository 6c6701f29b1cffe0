package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errCause = errors.New("cause")

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(errCause, CodeForbidden, "domain rejected")

	require.ErrorIs(t, err, errCause)
	assert.True(t, HasCode(err, CodeForbidden))
	assert.Equal(t, "domain rejected: cause", err.Error())
}

func TestHasCodeThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeNotFound, "missing"))

	assert.True(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(err, CodeInternal))
	assert.False(t, HasCode(errCause, CodeInternal))
}

func TestIsMatchesCodeAndMessage(t *testing.T) {
	err := New(CodeUnauthorized, "token has expired")

	require.ErrorIs(t, err, New(CodeUnauthorized, "token has expired"))
	assert.NotErrorIs(t, err, New(CodeUnauthorized, "invalid token"))
}

func TestNewValidationCopiesDetails(t *testing.T) {
	details := []string{"a", "b"}
	err := NewValidation("invalid", details)
	details[0] = "changed"

	assert.Equal(t, []string{"a", "b"}, err.Details)
	assert.Equal(t, CodeValidation, err.Code)
}
