// Package vfspath implements the immutable, "/"-separated path algebra used
// by the sftpvfs filesystem. It has no dependency on any transport or
// protocol; it is pure string algebra over POSIX-style paths.
package vfspath

import (
	"fmt"
	"strings"
)

// Separator is the only path separator sftpvfs understands. SFTP is a
// POSIX-flavored protocol; there is no notion of a drive letter or a
// second separator character.
const Separator = "/"

// Path is an immutable "/"-separated path. The zero value is the empty
// relative path (equal to Empty); use Parse or Root for anything else.
//
// Invariants: the canonical string has a leading "/" iff the path is
// absolute, contains no empty segments (the root and the empty path have
// no segments at all), and has no trailing "/" unless the whole path
// is the root.
type Path struct {
	raw      string
	absolute bool
	segments []string // never contains "" or a segment with "/"
}

// Root is the filesystem root, "/".
var Root = Path{raw: "/", absolute: true, segments: nil}

// Empty is the empty relative path "".
var Empty = Path{raw: "", absolute: false, segments: nil}

// Parse collapses runs of "/" (preserving a single leading separator for
// absolute paths) and splits the result into segments. It never rejects
// characters within a segment: the SFTP server, not this package, is the
// authority on which byte sequences are legal file names.
func Parse(raw string) Path {
	absolute := strings.HasPrefix(raw, Separator)

	var segments []string
	for _, seg := range strings.Split(raw, Separator) {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	return Path{raw: join(absolute, segments), absolute: absolute, segments: segments}
}

// join renders segments back into canonical string form.
func join(absolute bool, segments []string) string {
	if len(segments) == 0 {
		if absolute {
			return Separator
		}
		return ""
	}
	body := strings.Join(segments, Separator)
	if absolute {
		return Separator + body
	}
	return body
}

// String returns the canonical path string.
func (p Path) String() string { return p.raw }

// IsAbsolute reports whether the path starts with "/".
func (p Path) IsAbsolute() bool { return p.absolute }

// NameCount returns the number of segments (0 for the root or the empty
// relative path).
func (p Path) NameCount() int { return len(p.segments) }

// GetName returns the i'th segment as a relative, single-segment Path.
// Panics if i is out of range, mirroring slice-index semantics.
func (p Path) GetName(i int) Path {
	if i < 0 || i >= len(p.segments) {
		panic(fmt.Sprintf("vfspath: name index %d out of range [0,%d)", i, len(p.segments)))
	}
	return Path{raw: p.segments[i], absolute: false, segments: p.segments[i : i+1]}
}

// Subpath returns the relative path composed of segments [from, to).
// Panics if the range is invalid.
func (p Path) Subpath(from, to int) Path {
	if from < 0 || to > len(p.segments) || from >= to {
		panic(fmt.Sprintf("vfspath: subpath range [%d,%d) invalid for %d segments", from, to, len(p.segments)))
	}
	segs := append([]string(nil), p.segments[from:to]...)
	return Path{raw: join(false, segs), absolute: false, segments: segs}
}

// GetParent returns the parent path, or false if p has no parent (the root,
// the empty path, or a single-segment relative path).
func (p Path) GetParent() (Path, bool) {
	switch {
	case len(p.segments) == 0:
		return Path{}, false
	case len(p.segments) == 1:
		if p.absolute {
			return Root, true
		}
		return Path{}, false
	default:
		return p.Subpath(0, len(p.segments)-1).withAbsolute(p.absolute), true
	}
}

// withAbsolute returns a copy of p re-tagged as absolute/relative; used
// internally where Subpath always produces a relative result.
func (p Path) withAbsolute(absolute bool) Path {
	return Path{raw: join(absolute, p.segments), absolute: absolute, segments: p.segments}
}

// GetFileName returns the last segment, or false for the root or empty path.
func (p Path) GetFileName() (Path, bool) {
	if len(p.segments) == 0 {
		return Path{}, false
	}
	return p.GetName(len(p.segments) - 1), true
}

// GetRoot returns the root path and true if p is absolute; otherwise false.
func (p Path) GetRoot() (Path, bool) {
	if p.absolute {
		return Root, true
	}
	return Path{}, false
}

// Normalize eliminates "." segments and non-leading ".." segments. A
// leading ".." on an absolute path is discarded (there is nothing above
// root); on a relative path a leading ".." is kept since it has no
// preceding normal segment to cancel against.
func (p Path) Normalize() Path {
	out := make([]string, 0, len(p.segments))
	for _, seg := range p.segments {
		switch seg {
		case ".":
			continue
		case "..":
			if n := len(out); n > 0 && out[n-1] != ".." {
				out = out[:n-1]
				continue
			}
			if p.absolute {
				continue
			}
			out = append(out, seg)
		default:
			out = append(out, seg)
		}
	}
	return Path{raw: join(p.absolute, out), absolute: p.absolute, segments: out}
}

// Resolve joins p with other. If other is absolute, it is returned as-is
// (matching java.nio.file.Path.resolve semantics); otherwise the two are
// concatenated with a separator.
func (p Path) Resolve(other Path) Path {
	if other.absolute {
		return other
	}
	if len(other.segments) == 0 {
		return p
	}
	segs := append(append([]string(nil), p.segments...), other.segments...)
	return Path{raw: join(p.absolute, segs), absolute: p.absolute, segments: segs}
}

// ResolveSibling is parent.Resolve(other); if p has no parent, other is
// returned unchanged.
func (p Path) ResolveSibling(other Path) Path {
	parent, ok := p.GetParent()
	if !ok {
		return other
	}
	return parent.Resolve(other)
}

// Relativize computes the minimal sequence of ".." and name segments that,
// resolved against p, yields other. Both paths must share the same
// absolute/relative polarity; a *PolarityError is returned otherwise.
func (p Path) Relativize(other Path) (Path, error) {
	if p.absolute != other.absolute {
		return Path{}, &PolarityError{P: p, Other: other}
	}

	common := 0
	for common < len(p.segments) && common < len(other.segments) && p.segments[common] == other.segments[common] {
		common++
	}

	ups := len(p.segments) - common
	segs := make([]string, 0, ups+len(other.segments)-common)
	for i := 0; i < ups; i++ {
		segs = append(segs, "..")
	}
	segs = append(segs, other.segments[common:]...)

	return Path{raw: join(false, segs), absolute: false, segments: segs}, nil
}

// ToAbsolute resolves p against defaultDir when p is relative; if p is
// already absolute it is returned unchanged. This is the one
// filesystem-bound operation in this package: callers outside a bound
// Filesystem should use Resolve directly against a known base.
func (p Path) ToAbsolute(defaultDir Path) Path {
	if p.absolute {
		return p
	}
	return defaultDir.Resolve(p)
}

// Equal reports whether two paths have the same canonical string.
func (p Path) Equal(other Path) bool { return p.raw == other.raw }

// PolarityError is returned by Relativize when the receiver and argument
// disagree on absolute-vs-relative.
type PolarityError struct {
	P     Path
	Other Path
}

func (e *PolarityError) Error() string {
	return fmt.Sprintf("vfspath: cannot relativize %q against %q: mismatched absolute/relative polarity", e.P, e.Other)
}
