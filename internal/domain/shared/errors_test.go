package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	cause := errors.New("duplicate key value violates unique constraint")
	err := WrapError("score", "Save", ErrAlreadyExists, "score already submitted", cause)

	assert.True(t, IsAlreadyExists(err))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, "score.Save: score already submitted: duplicate key value violates unique constraint", err.Error())
}

func TestDomainError_WrappedWithFmt(t *testing.T) {
	err := fmt.Errorf("load week: %w", ErrNoFinalizedWeek)

	assert.True(t, IsNotFound(err))
	assert.True(t, errors.Is(err, ErrNoFinalizedWeek))
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(ErrInvalidWeekStart))
	assert.True(t, IsValidation(ErrInvalidTelegramID))
	assert.False(t, IsValidation(ErrPlayerNotFound))
}
