package errors_test

import (
	"fmt"
	"testing"

	"github.com/alexandradec/infostop2/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryNew(t *testing.T) {
	err := errors.New().New(errors.ErrStateCorrupt)

	assert.Equal(t, errors.ErrStateCorrupt, err.Code())
	assert.Equal(t, "Persisted state is corrupt", err.Error())
}

func TestFactoryNewUnknownCodeFallsBackToCode(t *testing.T) {
	err := errors.New().New(errors.ErrorCode("something_novel"))

	assert.Equal(t, "something_novel", err.Error())
}

func TestFactoryWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := errors.New().Wrap(errors.ErrInitFailed, cause)

	assert.Equal(t, errors.ErrInitFailed, err.Code())
	assert.Contains(t, err.Error(), "disk on fire")
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestFactoryWithMessageAndData(t *testing.T) {
	err := errors.New().
		WithMessage(errors.ErrInvalidConfig, "eps must be positive").
		WithData(-1.0)

	assert.Equal(t, errors.ErrInvalidConfig, err.Code())
	assert.Contains(t, err.Error(), "eps must be positive")
	assert.Contains(t, err.Error(), "-1")
	assert.Equal(t, -1.0, err.GetData())
}

func TestHasCode(t *testing.T) {
	err := errors.New().New(errors.ErrEmptyInput)

	assert.True(t, errors.HasCode(err, errors.ErrEmptyInput))
	assert.False(t, errors.HasCode(err, errors.ErrStateCorrupt))
	assert.False(t, errors.HasCode(fmt.Errorf("plain"), errors.ErrEmptyInput))
	assert.False(t, errors.HasCode(nil, errors.ErrEmptyInput))
}

func TestHasCodeSeesThroughWrapping(t *testing.T) {
	inner := errors.New().New(errors.ErrStateCorrupt)
	outer := fmt.Errorf("loading snapshot: %w", inner)

	require.True(t, errors.HasCode(outer, errors.ErrStateCorrupt))
}
