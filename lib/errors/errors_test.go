package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSentinelErrors verifies all sentinel errors are properly defined.
func TestSentinelErrors(t *testing.T) {
	sentinels := []struct {
		name string
		err  error
	}{
		{"ErrTimeout", ErrTimeout},
		{"ErrClosed", ErrClosed},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrConfiguration", ErrConfiguration},
		{"ErrDeadResource", ErrDeadResource},
		{"ErrCreationFailed", ErrCreationFailed},
		{"ErrLeak", ErrLeak},
		{"ErrInternal", ErrInternal},
	}

	for _, tc := range sentinels {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.err)
			assert.NotEmpty(t, tc.err.Error())
		})
	}
}

func TestPoolErrorsWrapSentinels(t *testing.T) {
	assert.ErrorIs(t, ErrPoolClosed, ErrClosed)
	assert.Equal(t, "pool: closed", ErrPoolClosed.Error())
	assert.ErrorIs(t, ErrPoolConfig, ErrConfiguration)
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"timeout", fmt.Errorf("acquire: %w", ErrTimeout), CodeAcquisitionTimeout},
		{"dead", ErrDeadResource, CodeDeadResource},
		{"creation", fmt.Errorf("open: %w", ErrCreationFailed), CodeCreationFailure},
		{"leak", ErrLeak, CodeLeak},
		{"config", ErrPoolConfig, CodeConfiguration},
		{"closed", ErrPoolClosed, CodeClosed},
		{"input", ErrInvalidInput, CodeInvalidInput},
		{"unknown", errors.New("boom"), CodeInternal},
		{"structured", Wrap(CodeLeak, "held too long", nil), CodeLeak},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Code(tc.err))
		})
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeCreationFailure, "open resource", cause)

	assert.Equal(t, "open resource: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeCreationFailure, Code(err))
}

func TestFromSentinel(t *testing.T) {
	assert.Nil(t, FromSentinel(nil))

	se := FromSentinel(ErrPoolClosed)
	require.NotNil(t, se)
	assert.Equal(t, CodeClosed, se.Code)
	assert.True(t, IsClosed(se))
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(ErrTimeout))
	assert.True(t, IsRecoverable(ErrCreationFailed))
	assert.False(t, IsRecoverable(ErrPoolClosed))
	assert.False(t, IsRecoverable(ErrPoolConfig))
	assert.False(t, IsRecoverable(errors.New("boom")))
}

func TestHelpers(t *testing.T) {
	assert.True(t, IsTimeout(fmt.Errorf("x: %w", ErrTimeout)))
	assert.True(t, IsConfiguration(ErrPoolConfig))
	assert.True(t, IsClosed(ErrPoolClosed))
	assert.False(t, IsClosed(ErrTimeout))
}
