package sftpvfs

import (
	"context"
	"fmt"
)

// unknownLarge is the sentinel spec.md §9's open-question entry calls
// for: "the source treats any statVFS error as unsupported and returns
// the sentinel." A very large value plays that role the way Java's
// FileStore.getTotalSpace() documents Long.MAX_VALUE for "unknown".
const unknownLarge int64 = 1<<63 - 1

// FileStore is spec.md §4.7: one per Filesystem, forwarding its three
// space queries to the filesystem's statVFS call.
type FileStore struct {
	fs *Filesystem
}

func newFileStore(fs *Filesystem) *FileStore { return &FileStore{fs: fs} }

func (s *FileStore) Name() string     { return s.fs.rootURI }
func (s *FileStore) Type() string     { return "sftp" }
func (s *FileStore) ReadOnly() bool   { return false }
func (s *FileStore) SupportsView(v View) bool {
	switch v {
	case ViewBasic, ViewOwner, ViewPosix:
		return true
	default:
		return false
	}
}

func (s *FileStore) TotalSpace(ctx context.Context) (int64, error)       { return s.fs.TotalSpace(ctx) }
func (s *FileStore) UsableSpace(ctx context.Context) (int64, error)      { return s.fs.UsableSpace(ctx) }
func (s *FileStore) UnallocatedSpace(ctx context.Context) (int64, error) { return s.fs.UnallocatedSpace(ctx) }

// Describe renders the store's view support and space numbers as one
// human-readable string, a SUPPLEMENTED FEATURES convenience in the
// spirit of the teacher's errors.FormatSuggestions display helper.
func (s *FileStore) Describe(ctx context.Context) string {
	total, err := s.TotalSpace(ctx)
	if err != nil {
		return fmt.Sprintf("%s (type=%s, views=basic,owner,posix, space=unknown: %s)", s.Name(), s.Type(), err)
	}
	usable, _ := s.UsableSpace(ctx)
	unalloc, _ := s.UnallocatedSpace(ctx)
	return fmt.Sprintf(
		"%s (type=%s, views=basic,owner,posix, total=%d, usable=%d, unallocated=%d)",
		s.Name(), s.Type(), total, usable, unalloc,
	)
}
