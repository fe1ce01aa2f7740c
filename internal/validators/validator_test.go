package validators

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/career-hub/backend/internal/apperr"
	"github.com/anonto42/career-hub/backend/internal/models"
)

func TestValidate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		in        interface{}
		wantField string
	}{
		{name: "valid blog", in: &models.BlogRequest{Title: "t", Content: "c"}},
		{name: "blog without title", in: &models.BlogRequest{Content: "c"}, wantField: "title"},
		{name: "long comment", in: &models.CreateCommentRequest{Text: strings.Repeat("x", 2001)}, wantField: "text"},
		{name: "course bad url", in: &models.CourseRequest{
			Title: "Go", Description: "d", Mentor: "m", ImageURL: "not a url",
		}, wantField: "imageUrl"},
		{name: "course bad level", in: &models.CourseRequest{
			Title: "Go", Description: "d", Mentor: "m", ImageURL: "https://x.test/a.png", Level: "Expert",
		}, wantField: "level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.in)
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, apperr.ErrValidation)
			var ve *apperr.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestTranslate_PassesOtherErrors(t *testing.T) {
	other := errors.New("boom")

	assert.NoError(t, Translate(nil))
	assert.Same(t, other, Translate(other))
}
