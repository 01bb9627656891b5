package sftpvfs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveForInput_RejectsWriteOptions(t *testing.T) {
	t.Parallel()

	_, err := resolveForInput("/a.txt", []OpenOption{OptWrite})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestResolveForOutput_AppendAndTruncateIsInvalid(t *testing.T) {
	t.Parallel()

	_, err := resolveForOutput("/a.txt", []OpenOption{OptAppend, OptTruncateExisting})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestResolveForOutput_EmptyDefaultsToCreateTruncateWrite(t *testing.T) {
	t.Parallel()

	r, err := resolveForOutput("/a.txt", nil)
	require.NoError(t, err)
	assert.True(t, r.Write)
	assert.True(t, r.Create)
	assert.True(t, r.Truncate)
	assert.False(t, r.Append)
}

func TestResolveForByteChannel_ReadWriteTogetherUnsupported(t *testing.T) {
	t.Parallel()

	_, err := resolveForByteChannel("/x.txt", []OpenOption{OptRead, OptWrite})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestResolveForByteChannel_NoModeDefaultsToRead(t *testing.T) {
	t.Parallel()

	r, err := resolveForByteChannel("/x.txt", nil)
	require.NoError(t, err)
	assert.True(t, r.Read)
	assert.False(t, r.Write)
}

func TestResolveForByteChannel_AppendWithReadIsInvalid(t *testing.T) {
	t.Parallel()

	_, err := resolveForByteChannel("/x.txt", []OpenOption{OptAppend, OptRead})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestResolveCopyOptions_RejectsCopyAttributes(t *testing.T) {
	t.Parallel()

	_, err := resolveCopyOptions("/a", []CopyOption{CopyOption(99)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestFilesystem_NewOutputStream_CreateNewFailsWhenExisting(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)
	require.NoError(t, writeFile(t, fs, "/exists.txt", "x"))

	_, err := fs.NewOutputStream(ctx(), "/exists.txt", []OpenOption{OptWrite, OptCreateNew})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyExists))
}

func TestFilesystem_NewByteChannel_ReadsWhatWasWritten(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)
	require.NoError(t, writeFile(t, fs, "/bc.txt", "hello world"))

	bc, err := fs.NewByteChannel(ctx(), "/bc.txt", nil, nil)
	require.NoError(t, err)
	defer bc.Close()

	buf := make([]byte, 5)
	n, err := bc.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}
