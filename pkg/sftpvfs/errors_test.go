package sftpvfs

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultErrorMapper_ClassifiesOSErrors(t *testing.T) {
	t.Parallel()

	mapped := DefaultErrorMapper.Map("getfile", "/a", os.ErrNotExist)
	require.Error(t, mapped)
	assert.True(t, errors.Is(mapped, ErrNotFound))

	mapped = DefaultErrorMapper.Map("getfile", "/a", os.ErrPermission)
	assert.True(t, errors.Is(mapped, ErrAccessDenied))
}

func TestDefaultErrorMapper_PassesThroughAlreadyMappedErrors(t *testing.T) {
	t.Parallel()

	first := DefaultErrorMapper.Map("getfile", "/a", os.ErrNotExist)
	second := DefaultErrorMapper.Map("getfile", "/a", first)
	assert.Same(t, first, second)
}

func TestDefaultErrorMapper_UnknownErrorIsIO(t *testing.T) {
	t.Parallel()

	mapped := DefaultErrorMapper.Map("copy", "/a", errors.New("connection reset"))

	var sfErr *Error
	require.ErrorAs(t, mapped, &sfErr)
	assert.Equal(t, KindIO, sfErr.Kind)
	assert.False(t, errors.Is(mapped, ErrNotFound))
}

func TestKindSentinel_MatchesWrappedErrorByKind(t *testing.T) {
	t.Parallel()

	wrapped := newError("delete", "/a", KindDirectoryNotEmpty, nil)
	assert.True(t, errors.Is(wrapped, ErrDirectoryNotEmpty))
	assert.False(t, errors.Is(wrapped, ErrIsDirectory))
}

func TestClosedError_HasKindClosed(t *testing.T) {
	t.Parallel()

	err := closedError("delete", "/a")
	assert.True(t, errors.Is(err, ErrClosed))
}
