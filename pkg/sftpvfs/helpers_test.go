package sftpvfs

import (
	"context"
	"io"
	"testing"
)

func ctx() context.Context { return context.Background() }

// newMemoryFilesystemForTest builds a Filesystem rooted at a fresh t.TempDir,
// backed entirely by in-process SFTP channels (see mock.go). Every test
// using it gets an isolated POSIX tree with no network dependency.
func newMemoryFilesystemForTest(t *testing.T) *Filesystem {
	t.Helper()
	fs, err := newMemoryFilesystem(Config{Username: "test"}, t.TempDir())
	if err != nil {
		t.Fatalf("newMemoryFilesystem: %v", err)
	}
	t.Cleanup(func() { _ = fs.Close() })
	return fs
}

func writeFile(t *testing.T, fs *Filesystem, path, content string) error {
	t.Helper()
	out, err := fs.NewOutputStream(ctx(), path, nil)
	if err != nil {
		return err
	}
	if _, err := out.Write([]byte(content)); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func readFile(t *testing.T, fs *Filesystem, path string) (string, error) {
	t.Helper()
	in, err := fs.NewInputStream(ctx(), path, nil)
	if err != nil {
		return "", err
	}
	defer in.Close()
	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
