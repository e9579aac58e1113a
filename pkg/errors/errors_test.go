package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorFormatting(t *testing.T) {
	err := NewExternalError("geocode failed", fmt.Errorf("timeout"))
	assert.Equal(t, "EXTERNAL: geocode failed: timeout", err.Error())
	assert.Equal(t, "NOT_FOUND: session missing", NewNotFoundError("session missing").Error())
}

func TestTypeOfWalksChain(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", NewNotFoundError("vendor"))
	assert.Equal(t, ErrorTypeNotFound, TypeOf(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, ErrorTypeInternal, TypeOf(fmt.Errorf("plain")))
	assert.False(t, IsNotFound(nil))
}
