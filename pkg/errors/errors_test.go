package errors

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_Classification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
		want   error
	}{
		{"conflict status", 409, "", ErrConflict},
		{"conflict code", 400, "conflict_error", ErrConflict},
		{"rate limited", 429, "", ErrRateLimited},
		{"not found", 404, "object_not_found", ErrNotFound},
		{"unauthorized", 401, "unauthorized", ErrUnauthorized},
		{"validation", 400, "validation_error", ErrInvalidInput},
		{"server error", 502, "", ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", UpstreamError("notion", tt.status, tt.code, "msg"))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAPIError_Message(t *testing.T) {
	assert.Equal(t, "notion api: status 400 (validation_error): bad",
		UpstreamError("notion", 400, "validation_error", "bad").Error())
	assert.Equal(t, "webflow api: status 500: boom",
		UpstreamError("webflow", 500, "", "boom").Error())
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(UpstreamError("notion", 429, "", "")))
	assert.True(t, IsTransient(UpstreamError("notion", 503, "", "")))
	assert.True(t, IsTransient(&net.OpError{Op: "dial", Err: fmt.Errorf("connection refused")}))

	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(UpstreamError("notion", 400, "", "")))
	assert.False(t, IsTransient(UpstreamError("notion", 409, "", "")))
	assert.False(t, IsTransient(ConfigurationError("notion token")))
	assert.False(t, IsTransient(context.Canceled))
}

func TestRetryAfter(t *testing.T) {
	err := fmt.Errorf("list items: %w", &APIError{Service: "webflow", Status: 429, RetryAfter: 3 * time.Second})

	assert.Equal(t, 3*time.Second, RetryAfter(err))
	assert.Zero(t, RetryAfter(InternalError("x")))
}

func TestConstructors(t *testing.T) {
	assert.ErrorIs(t, NotFoundError("integration"), ErrNotFound)
	assert.ErrorIs(t, InvalidInputError("collectionIds", "must not be empty"), ErrInvalidInput)
	assert.ErrorIs(t, ConfigurationError("webflow token"), ErrConfiguration)
	assert.ErrorIs(t, InternalError("boom"), ErrInternal)
	assert.Equal(t, "integration not found", NotFoundError("integration").Error())
}
