package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NotFoundError("GET /x", nil)))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", NotFoundError("GET /x", nil))))
	assert.False(t, IsNotFound(ServerError(500, "boom")))
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "conversation.forbidden", UserMessage(ServerError(403, "conversation.forbidden")))
	assert.Equal(t, "plain", UserMessage(errors.New("plain")))
	assert.Empty(t, UserMessage(nil))
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := TransportError("executing GET /x", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Zero(t, err.Code)
}
