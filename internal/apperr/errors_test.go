package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("engagement/AddComment: %w", Required("text"))

	require.ErrorIs(t, err, ErrValidation)
	require.NotErrorIs(t, err, ErrAuthRequired)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "text", ve.Field)
	require.Contains(t, err.Error(), "text is required")
}

func TestTransientKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transient("content/Create", cause)

	require.ErrorIs(t, err, ErrTransientStore)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "content/Create")
}
