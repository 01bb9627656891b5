package sftpvfs

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeFileInfo struct {
	name  string
	isDir bool
}

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return 0 }
func (f fakeFileInfo) Mode() os.FileMode  { return 0o644 }
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool        { return f.isDir }
func (f fakeFileInfo) Sys() any           { return nil }

func TestDirectoryStream_ExcludesDotEntries(t *testing.T) {
	t.Parallel()

	stream := newDirectoryStream([]os.FileInfo{
		fakeFileInfo{name: "."},
		fakeFileInfo{name: ".."},
		fakeFileInfo{name: "a.txt"},
		fakeFileInfo{name: "sub", isDir: true},
	}, nil)

	var names []string
	for {
		e, ok := stream.Next()
		if !ok {
			break
		}
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"a.txt", "sub"}, names)
}

func TestDirectoryStream_AppliesFilterLazily(t *testing.T) {
	t.Parallel()

	stream := newDirectoryStream([]os.FileInfo{
		fakeFileInfo{name: "keep.txt"},
		fakeFileInfo{name: "skip.log"},
	}, func(name string) bool { return name == "keep.txt" })

	e, ok := stream.Next()
	assert.True(t, ok)
	assert.Equal(t, "keep.txt", e.Name)

	_, ok = stream.Next()
	assert.False(t, ok)
}

func TestIsDotOrDotDot(t *testing.T) {
	t.Parallel()

	assert.True(t, isDotOrDotDot("."))
	assert.True(t, isDotOrDotDot(".."))
	assert.False(t, isDotOrDotDot("..foo"))
}
