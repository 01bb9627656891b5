package sftpvfs

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mossforge/sftpvfs/pkg/vfspath"
)

func TestFilesystem_CreateDirectoryAndList(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)

	require.NoError(t, fs.CreateDirectory(ctx(), "/dir", nil))
	require.NoError(t, writeFile(t, fs, "/dir/a.txt", "a"))
	require.NoError(t, writeFile(t, fs, "/dir/b.txt", "b"))

	stream, err := fs.NewDirectoryStream(ctx(), "/dir", nil)
	require.NoError(t, err)

	var names []string
	for {
		e, ok := stream.Next()
		if !ok {
			break
		}
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, names)
}

func TestFilesystem_NewDirectoryStream_OnFileReturnsNotDirectory(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)
	require.NoError(t, writeFile(t, fs, "/a.txt", "x"))

	_, err := fs.NewDirectoryStream(ctx(), "/a.txt", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestFilesystem_Delete_FileAndDirectory(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)

	require.NoError(t, writeFile(t, fs, "/a.txt", "x"))
	require.NoError(t, fs.Delete(ctx(), "/a.txt"))
	_, err := fs.ReadAttributes(ctx(), "/a.txt", ViewBasic, []string{"size"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, fs.CreateDirectory(ctx(), "/dir", nil))
	require.NoError(t, fs.Delete(ctx(), "/dir"))
	_, err = fs.ReadAttributes(ctx(), "/dir", ViewBasic, []string{"size"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilesystem_SetAttribute_Permissions(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)
	require.NoError(t, writeFile(t, fs, "/a.txt", "x"))

	err := fs.SetAttribute(ctx(), "/a.txt", AttributeEdit{View: ViewPosix, Name: "permissions", Value: os.FileMode(0o600)})
	require.NoError(t, err)

	out, err := fs.ReadAttributes(ctx(), "/a.txt", ViewPosix, []string{"permissions"})
	require.NoError(t, err)
	assert.EqualValues(t, 0o600, out["permissions"])
}

func TestFilesystem_SetAttribute_OwnerRejectsSymbolicName(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)
	require.NoError(t, writeFile(t, fs, "/a.txt", "x"))

	err := fs.SetAttribute(ctx(), "/a.txt", AttributeEdit{View: ViewOwner, Name: "owner", Value: "alice"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFilesystem_CheckAccess_DeniedWhenPermissionBitMissing(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)
	require.NoError(t, writeFile(t, fs, "/a.txt", "x"))
	require.NoError(t, fs.SetAttribute(ctx(), "/a.txt", AttributeEdit{View: ViewPosix, Name: "permissions", Value: os.FileMode(0o600)}))

	assert.NoError(t, fs.CheckAccess(ctx(), "/a.txt", AccessRead, AccessWrite))
	assert.Error(t, fs.CheckAccess(ctx(), "/a.txt", AccessExecute))
}

func TestFilesystem_IsHidden(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)
	require.NoError(t, writeFile(t, fs, "/.hidden", "x"))
	require.NoError(t, writeFile(t, fs, "/visible", "x"))

	hidden, err := fs.IsHidden(ctx(), "/.hidden")
	require.NoError(t, err)
	assert.True(t, hidden)

	hidden, err = fs.IsHidden(ctx(), "/visible")
	require.NoError(t, err)
	assert.False(t, hidden)
}

func TestFilesystem_Copy_SameFilesystem(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)
	require.NoError(t, writeFile(t, fs, "/src.txt", "payload"))

	require.NoError(t, fs.Copy(ctx(), vfspath.Parse("/src.txt"), vfspath.Parse("/dst.txt"), nil))

	got, err := readFile(t, fs, "/dst.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", got)

	original, err := readFile(t, fs, "/src.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", original)
}

func TestFilesystem_Copy_WithoutReplaceExistingFails(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)
	require.NoError(t, writeFile(t, fs, "/src.txt", "a"))
	require.NoError(t, writeFile(t, fs, "/dst.txt", "b"))

	err := fs.Copy(ctx(), vfspath.Parse("/src.txt"), vfspath.Parse("/dst.txt"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestFilesystem_Copy_ReplaceExistingOverwrites(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)
	require.NoError(t, writeFile(t, fs, "/src.txt", "a"))
	require.NoError(t, writeFile(t, fs, "/dst.txt", "b"))

	err := fs.Copy(ctx(), vfspath.Parse("/src.txt"), vfspath.Parse("/dst.txt"), []CopyOption{OptReplaceExisting})
	require.NoError(t, err)

	got, err := readFile(t, fs, "/dst.txt")
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}

func TestFilesystem_Move_RenamesFile(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)
	require.NoError(t, writeFile(t, fs, "/src.txt", "payload"))

	require.NoError(t, fs.Move(ctx(), vfspath.Parse("/src.txt"), vfspath.Parse("/dst.txt"), nil))

	_, err := fs.ReadAttributes(ctx(), "/src.txt", ViewBasic, []string{"size"})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := readFile(t, fs, "/dst.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
}

func TestFilesystem_Move_RootIsDirectoryNotEmpty(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)

	err := fs.Move(ctx(), vfspath.Root, vfspath.Parse("/elsewhere"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDirectoryNotEmpty))
}

func TestFilesystem_Move_SamePathIsNoOp(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)
	require.NoError(t, writeFile(t, fs, "/a.txt", "payload"))

	require.NoError(t, fs.Move(ctx(), vfspath.Parse("/a.txt"), vfspath.Parse("/a.txt"), nil))

	got, err := readFile(t, fs, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
}

func TestFilesystem_Move_SamePathWithReplaceExistingIsNoOp(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)
	require.NoError(t, writeFile(t, fs, "/a.txt", "payload"))

	require.NoError(t, fs.Move(ctx(), vfspath.Parse("/a.txt"), vfspath.Parse("/a.txt"), []CopyOption{OptReplaceExisting}))

	got, err := readFile(t, fs, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
}

func TestFilesystem_IsSameFile(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)
	require.NoError(t, writeFile(t, fs, "/a.txt", "x"))

	same, err := fs.IsSameFile(ctx(), vfspath.Parse("/a.txt"), vfspath.Parse("/a.txt"))
	require.NoError(t, err)
	assert.True(t, same)

	require.NoError(t, writeFile(t, fs, "/b.txt", "y"))
	same, err = fs.IsSameFile(ctx(), vfspath.Parse("/a.txt"), vfspath.Parse("/b.txt"))
	require.NoError(t, err)
	assert.False(t, same)
}

func TestFilesystem_SpaceQueries_ReturnValuesOrSentinel(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)

	total, err := fs.TotalSpace(ctx())
	require.NoError(t, err)
	assert.True(t, total > 0 || total == unknownLarge)
}

func TestFilesystem_OperationsFailAfterClose(t *testing.T) {
	t.Parallel()
	fs := newMemoryFilesystemForTest(t)
	require.NoError(t, fs.Close())

	_, err := fs.NewInputStream(ctx(), "/a.txt", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClosed)
}
