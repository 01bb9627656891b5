package sftpvfs

import "os"

// DirEntry is spec.md §3's directory entry: {name, attributes}. The
// virtual entries "." and ".." never reach callers.
type DirEntry struct {
	Name       string
	Attributes Attributes
}

// DirFilter decides whether an entry should be yielded by a directory
// stream. A nil filter accepts everything.
type DirFilter func(name string) bool

// DirectoryStream is the lazy, filtered result of newDirectoryStream. It
// holds no channel reference of its own: the filesystem already released
// the channel used to list the directory by the time the stream is
// constructed, since SFTP's readdir is a single request/response round
// trip rather than a held cursor.
type DirectoryStream struct {
	entries []DirEntry
	filter  DirFilter
	pos     int
}

func newDirectoryStream(infos []os.FileInfo, filter DirFilter) *DirectoryStream {
	entries := make([]DirEntry, 0, len(infos))
	for _, fi := range infos {
		name := fi.Name()
		if name == "." || name == ".." {
			continue
		}
		entries = append(entries, DirEntry{Name: name, Attributes: attributesFromFileInfo(fi)})
	}
	return &DirectoryStream{entries: entries, filter: filter}
}

// Next advances the stream and reports whether an entry was produced,
// applying the filter lazily as spec.md §4.5 requires.
func (s *DirectoryStream) Next() (DirEntry, bool) {
	for s.pos < len(s.entries) {
		e := s.entries[s.pos]
		s.pos++
		if s.filter == nil || s.filter(e.Name) {
			return e, true
		}
	}
	return DirEntry{}, false
}

// Close releases the stream. It never touches the network: all work
// happened in newDirectoryStream.
func (s *DirectoryStream) Close() error { return nil }

// isDotOrDotDot reports whether name is one of the two SFTP
// readdir-result pseudo-entries the filesystem coordinator uses to
// decide whether an explicit stat is needed (spec.md §4.5
// newDirectoryStream: "if neither . nor .. appears in the result, stat
// the path").
func isDotOrDotDot(name string) bool { return name == "." || name == ".." }
