package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodeBindFailed, "server.restart", "binding transport", nil)
	assert.Equal(t, "[3001] server.restart: binding transport", err.Error())

	cause := stderrors.New("address in use")
	wrapped := New(ErrCodeBindFailed, "server.restart", "binding transport", cause)
	assert.Contains(t, wrapped.Error(), "address in use")
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := New(ErrCodeChainBuild, "pipeline.build", "building chain", cause)
	require.ErrorIs(t, err, cause)
}

func TestCodeOf(t *testing.T) {
	err := New(ErrCodeSecurityResolve, "pipeline.build", "unknown security stage", nil)
	assert.Equal(t, ErrCodeSecurityResolve, CodeOf(err))

	// Code survives another layer of wrapping.
	outer := fmt.Errorf("restart failed: %w", err)
	assert.Equal(t, ErrCodeSecurityResolve, CodeOf(outer))

	assert.Equal(t, ErrCodeUnknown, CodeOf(stderrors.New("plain")))
	assert.Equal(t, ErrCodeUnknown, CodeOf(nil))
}
