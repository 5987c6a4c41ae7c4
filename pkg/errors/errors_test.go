package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneOverridesMessageOnly(t *testing.T) {
	err := Clone(ErrConflict, "you are already enrolled in this course")
	assert.Equal(t, ErrConflict.Code, err.Code)
	assert.Equal(t, ErrConflict.Status, err.Status)
	assert.Equal(t, "you are already enrolled in this course", err.Message)
	// the predefined error is untouched
	assert.Equal(t, "conflict", ErrConflict.Message)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "failed to list enrollments")
	assert.Equal(t, "failed to list enrollments: connection refused", err.Error())
	assert.Equal(t, cause, err.Unwrap())
}

func TestFromError(t *testing.T) {
	typed := Clone(ErrNotFound, "enrollment not found")
	require.Same(t, typed, FromError(typed))

	wrapped := fmt.Errorf("handler: %w", typed)
	assert.Equal(t, ErrNotFound.Code, FromError(wrapped).Code)

	plain := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)

	assert.Nil(t, FromError(nil))
}

func TestIsMatchesByCode(t *testing.T) {
	err := Clone(ErrConflict, "duplicate admission")
	assert.True(t, Is(err, ErrConflict))
	assert.False(t, Is(err, ErrNotFound))
	assert.False(t, Is(nil, ErrConflict))
	assert.False(t, Is(fmt.Errorf("plain"), ErrConflict))
}
