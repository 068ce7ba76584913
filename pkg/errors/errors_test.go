package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/TheBestAstroNOT/stencil/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStencilError_Error(t *testing.T) {
	t.Run("without_wrapped", func(t *testing.T) {
		err := errors.New(errors.ErrSchemaMissingRequired, "option has no value")
		assert.Equal(t, "[SCHEMA_MISSING_REQUIRED] option has no value", err.Error())
	})

	t.Run("with_wrapped", func(t *testing.T) {
		inner := fmt.Errorf("disk full")
		err := errors.Wrap(inner, errors.ErrFileWrite, "writing output")
		assert.Equal(t, "[FILE_WRITE] writing output: disk full", err.Error())
		assert.Equal(t, inner, stderrors.Unwrap(err))
	})
}

func TestStencilError_Is(t *testing.T) {
	err := errors.Newf(errors.ErrRenderUnknownPlaceholder, "unknown placeholder %q", "crate")
	assert.True(t, stderrors.Is(err, errors.New(errors.ErrRenderUnknownPlaceholder, "")))
	assert.False(t, stderrors.Is(err, errors.New(errors.ErrRenderUnterminatedBlock, "")))
}

func TestErrorCodeHelpers(t *testing.T) {
	err := errors.New(errors.ErrRuleMalformedExpr, "unbalanced parentheses").
		WithDetail("expression", "(a ==")

	assert.True(t, errors.IsErrorCode(err, errors.ErrRuleMalformedExpr))
	assert.False(t, errors.IsErrorCode(err, errors.ErrInternal))
	assert.Equal(t, errors.ErrRuleMalformedExpr, errors.GetErrorCode(err))

	details := errors.GetErrorDetails(err)
	require.NotNil(t, details)
	assert.Equal(t, "(a ==", details["expression"])

	// Non-stencil errors degrade gracefully.
	plain := fmt.Errorf("plain")
	assert.Equal(t, errors.ErrUnknown, errors.GetErrorCode(plain))
	assert.Nil(t, errors.GetErrorDetails(plain))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, errors.Wrap(nil, errors.ErrInternal, "ignored"))
	assert.Nil(t, errors.Wrapf(nil, errors.ErrInternal, "ignored %d", 1))
}

func TestIsErrorCode_WrappedChain(t *testing.T) {
	inner := errors.New(errors.ErrSchemaInvalidValue, "bad value")
	outer := fmt.Errorf("resolving: %w", inner)
	assert.True(t, errors.IsErrorCode(outer, errors.ErrSchemaInvalidValue))
}
