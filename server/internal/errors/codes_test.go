package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{Validation("message is required"), http.StatusBadRequest},
		{NotFound("persona %d not found", 3), http.StatusNotFound},
		{Generation(stderrors.New("timeout")), http.StatusBadGateway},
		{Persistence("failed to save", stderrors.New("disk full")), http.StatusInternalServerError},
		{Unauthorized("missing token"), http.StatusUnauthorized},
		{RateLimitExceeded("slow down"), http.StatusTooManyRequests},
		{&AppError{Code: "SOMETHING_NEW"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
		})
	}
}

func TestAppErrorChain(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := fmt.Errorf("chat turn: %w", Persistence("failed to save the conversation", cause))

	appErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodePersistence, appErr.Code)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, ErrCodePersistence))
	assert.False(t, IsCode(err, ErrCodeValidation))
	assert.Equal(t, "[PERSISTENCE_ERROR] failed to save the conversation: connection reset", appErr.Error())
	assert.Equal(t, "persona 3 not found", NotFound("persona %d not found", 3).Message)
}

func TestGetCodeFromError(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, GetCodeFromError(NotFound("x"), ErrCodeInternal))
	assert.Equal(t, ErrCodeContextCanceled, GetCodeFromError(context.Canceled, ErrCodeInternal))
	assert.Equal(t, ErrCodeInternal, GetCodeFromError(stderrors.New("boom"), ErrCodeInternal))
}
