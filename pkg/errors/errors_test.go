package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedError(t *testing.T) {
	wrapped := fmt.Errorf("load plan: %w", Clone(ErrNotFound, "seating plan not found"))

	appErr := FromError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrNotFound.Code, appErr.Code)
	assert.Equal(t, "seating plan not found", appErr.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.EqualError(t, appErr, "internal server error: boom")
}

func TestWithDetailsDoesNotMutateOriginal(t *testing.T) {
	detailed := ErrInvalidWorkbook.WithDetails("sheet in_room_capacity missing")

	assert.Equal(t, []string{"sheet in_room_capacity missing"}, detailed.Details)
	assert.Empty(t, ErrInvalidWorkbook.Details)
	assert.Equal(t, ErrInvalidWorkbook.Code, detailed.Code)
}
