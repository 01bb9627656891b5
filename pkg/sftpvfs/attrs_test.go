package sftpvfs

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAttributes_WildcardExpandsToViewVocabulary(t *testing.T) {
	t.Parallel()

	attrs := Attributes{Size: 42, ModTime: time.Unix(1000, 0), Kind: KindRegular}
	out, err := ReadAttributes("/a", attrs, ViewBasic, []string{"*"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), out["size"])
	assert.Nil(t, out["fileKey"])
	_, hasOwner := out["owner"]
	assert.False(t, hasOwner, "owner is not in the basic view")
}

func TestReadAttributes_RejectsNameOutsideView(t *testing.T) {
	t.Parallel()

	attrs := Attributes{}
	_, err := ReadAttributes("/a", attrs, ViewBasic, []string{"owner"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestParsePrincipal_RejectsSymbolicNames(t *testing.T) {
	t.Parallel()

	_, err := parsePrincipal("alice")
	assert.Error(t, err)
}

func TestParsePrincipal_AcceptsNonNegativeIntegerStrings(t *testing.T) {
	t.Parallel()

	uid, err := parsePrincipal("1001")
	require.NoError(t, err)
	assert.Equal(t, 1001, uid)
}

func TestParsePrincipal_RejectsNegativeInt(t *testing.T) {
	t.Parallel()

	_, err := parsePrincipal(-1)
	assert.Error(t, err)
}

func TestResolveSetAttribute_LastAccessTimeUnsupported(t *testing.T) {
	t.Parallel()

	_, err := resolveSetAttribute("/a", AttributeEdit{View: ViewBasic, Name: "lastAccessTime", Value: time.Now()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestResolveSetAttribute_PermissionsRequiresFileMode(t *testing.T) {
	t.Parallel()

	_, err := resolveSetAttribute("/a", AttributeEdit{View: ViewPosix, Name: "permissions", Value: 0o644})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	resolved, err := resolveSetAttribute("/a", AttributeEdit{View: ViewPosix, Name: "permissions", Value: os.FileMode(0o644)})
	require.NoError(t, err)
	require.NotNil(t, resolved.Permissions)
	assert.Equal(t, os.FileMode(0o644), *resolved.Permissions)
}

func TestKindFromFileMode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindDirectory, kindFromFileMode(os.ModeDir))
	assert.Equal(t, KindSymlink, kindFromFileMode(os.ModeSymlink))
	assert.Equal(t, KindRegular, kindFromFileMode(0))
}
