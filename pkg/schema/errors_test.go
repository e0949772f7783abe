package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlowError_Error(t *testing.T) {
	err := NewErrorf(ErrCodeConfiguration, "Unknown node type: %s", "shout")
	assert.Equal(t, "[CONFIGURATION_ERROR] Unknown node type: shout", err.Error())

	err = NewError(ErrCodeExecution, "boom").WithNode(7)
	assert.Equal(t, "[EXECUTION_ERROR] node 7: boom", err.Error())
}

func TestFlowError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewError(ErrCodeStore, "insert failed").WithCause(cause)
	assert.ErrorIs(t, err, cause)
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewError(ErrCodeNotFound, "execution 3 not found"))
	assert.Equal(t, ErrCodeNotFound, CodeOf(err))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}

func TestIsCode_WalksCauses(t *testing.T) {
	inner := NewError(ErrCodeCycleDetected, "cycle")
	outer := NewError(ErrCodeConfiguration, "bad graph").WithCause(inner)

	assert.True(t, IsCode(outer, ErrCodeConfiguration))
	assert.True(t, IsCode(outer, ErrCodeCycleDetected))
	assert.False(t, IsCode(outer, ErrCodeNotFound))
	assert.False(t, IsCode(nil, ErrCodeNotFound))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "Pipeline with id 9 does not exist",
		MessageOf(NewErrorf(ErrCodeConfiguration, "Pipeline with id %d does not exist", 9)))
	assert.Equal(t, "plain", MessageOf(errors.New("plain")))
}
