package sftpvfs

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/sftp"
)

// FileKind classifies what an Attributes snapshot describes.
type FileKind int

const (
	KindRegular FileKind = iota
	KindDirectory
	KindSymlink
	KindOther
)

// Attributes is the read-only POSIX snapshot of spec.md §3 "Attributes".
// creationTime is not stored separately: SFTP v3 does not report it, so
// readers alias it to ModTime (spec.md §6).
type Attributes struct {
	Size        int64
	ModTime     time.Time
	AccessTime  time.Time
	Permissions os.FileMode // 9-bit POSIX mask, no type bits
	UID         int
	GID         int
	Kind        FileKind
}

func (a Attributes) IsRegularFile() bool { return a.Kind == KindRegular }
func (a Attributes) IsDirectory() bool   { return a.Kind == KindDirectory }
func (a Attributes) IsSymlink() bool     { return a.Kind == KindSymlink }
func (a Attributes) IsOther() bool       { return a.Kind == KindOther }

// CreationTime is always equal to ModTime; see spec.md §6.
func (a Attributes) CreationTime() time.Time { return a.ModTime }

// attributesFromFileInfo builds an Attributes snapshot from what
// pkg/sftp's Stat/Lstat return. sftp.FileInfo's Sys() exposes a
// *sftp.FileStat with the raw UID/GID; when the server omits ownership
// metadata, UID/GID default to zero.
func attributesFromFileInfo(fi os.FileInfo) Attributes {
	attrs := Attributes{
		Size:        fi.Size(),
		ModTime:     fi.ModTime(),
		AccessTime:  fi.ModTime(),
		Permissions: fi.Mode().Perm(),
		Kind:        kindFromFileMode(fi.Mode()),
	}
	if stat, ok := fi.Sys().(*sftp.FileStat); ok {
		attrs.UID = int(stat.UID)
		attrs.GID = int(stat.GID)
		attrs.AccessTime = time.Unix(int64(stat.Atime), 0)
	}
	return attrs
}

func kindFromFileMode(mode os.FileMode) FileKind {
	switch {
	case mode&os.ModeSymlink != 0:
		return KindSymlink
	case mode.IsDir():
		return KindDirectory
	case mode.IsRegular():
		return KindRegular
	default:
		return KindOther
	}
}

// View names the attribute-view tag the source's deep attribute-view
// inheritance hierarchy is flattened into (DESIGN NOTES).
type View string

const (
	ViewBasic View = "basic"
	ViewOwner View = "owner"
	ViewPosix View = "posix"
)

// viewAttributeNames is the fixed vocabulary of readable attribute names
// per view, per spec.md §6.
var viewAttributeNames = map[View][]string{
	ViewBasic: {
		"lastModifiedTime", "lastAccessTime", "creationTime", "size",
		"isRegularFile", "isDirectory", "isSymbolicLink", "isOther", "fileKey",
	},
	ViewOwner: {"owner"},
	ViewPosix: {
		"lastModifiedTime", "lastAccessTime", "creationTime", "size",
		"isRegularFile", "isDirectory", "isSymbolicLink", "isOther", "fileKey",
		"owner", "group", "permissions",
	},
}

// readableAttribute extracts a single named attribute value from attrs,
// used both for concrete names and for wildcard expansion.
func readableAttribute(attrs Attributes, name string) (any, bool) {
	switch name {
	case "lastModifiedTime":
		return attrs.ModTime, true
	case "lastAccessTime":
		return attrs.AccessTime, true
	case "creationTime":
		return attrs.CreationTime(), true
	case "size":
		return attrs.Size, true
	case "isRegularFile":
		return attrs.IsRegularFile(), true
	case "isDirectory":
		return attrs.IsDirectory(), true
	case "isSymbolicLink":
		return attrs.IsSymlink(), true
	case "isOther":
		return attrs.IsOther(), true
	case "fileKey":
		return nil, true // always null per spec.md §6
	case "owner":
		return attrs.UID, true
	case "group":
		return attrs.GID, true
	case "permissions":
		return attrs.Permissions, true
	default:
		return nil, false
	}
}

// ReadAttributes implements spec.md §4.5's attributes-read API: view must
// be one of basic/owner/posix, and names may include "*" for "all names
// in this view".
func ReadAttributes(path string, attrs Attributes, view View, names []string) (map[string]any, error) {
	allowed, ok := viewAttributeNames[view]
	if !ok {
		return nil, newError("getattributes", path, KindUnsupported, nil)
	}

	if len(names) == 1 && names[0] == "*" {
		names = allowed
	}

	allowedSet := make(map[string]bool, len(allowed))
	for _, n := range allowed {
		allowedSet[n] = true
	}

	out := make(map[string]any, len(names))
	for _, name := range names {
		if !allowedSet[name] {
			return nil, newError("getattributes", path, KindUnsupported, nil)
		}
		v, _ := readableAttribute(attrs, name)
		out[name] = v
	}
	return out, nil
}

// AttributeEdit is one attribute=value pair passed to setAttribute.
type AttributeEdit struct {
	View  View
	Name  string
	Value any
}

// resolvedSetAttribute is the parsed, type-checked outcome of an
// AttributeEdit, ready for the channel verb table.
type resolvedSetAttribute struct {
	ModTime     *time.Time
	UID         *int
	GID         *int
	Permissions *os.FileMode
}

// resolveSetAttribute implements spec.md §4.5's attributes-write API:
// only lastModifiedTime, owner, group, permissions are settable;
// lastAccessTime and creationTime are Unsupported; owner/group must parse
// as non-negative integers (spec.md §8 S6).
func resolveSetAttribute(path string, edit AttributeEdit) (resolvedSetAttribute, error) {
	allowed, ok := viewAttributeNames[edit.View]
	if !ok {
		return resolvedSetAttribute{}, newError(opSetOwner, path, KindUnsupported, nil)
	}
	found := false
	for _, n := range allowed {
		if n == edit.Name {
			found = true
			break
		}
	}
	if !found {
		return resolvedSetAttribute{}, newError(opSetOwner, path, KindUnsupported, nil)
	}

	switch edit.Name {
	case "lastModifiedTime":
		t, ok := edit.Value.(time.Time)
		if !ok {
			return resolvedSetAttribute{}, newError(opSetModTime, path, KindInvalidArgument, nil)
		}
		return resolvedSetAttribute{ModTime: &t}, nil
	case "lastAccessTime", "creationTime":
		return resolvedSetAttribute{}, newError(opSetModTime, path, KindUnsupported, nil)
	case "owner":
		uid, err := parsePrincipal(edit.Value)
		if err != nil {
			return resolvedSetAttribute{}, newError(opSetOwner, path, KindInvalidArgument, err)
		}
		return resolvedSetAttribute{UID: &uid}, nil
	case "group":
		gid, err := parsePrincipal(edit.Value)
		if err != nil {
			return resolvedSetAttribute{}, newError(opSetGroup, path, KindInvalidArgument, err)
		}
		return resolvedSetAttribute{GID: &gid}, nil
	case "permissions":
		mode, ok := edit.Value.(os.FileMode)
		if !ok {
			return resolvedSetAttribute{}, newError(opSetPermissions, path, KindInvalidArgument, nil)
		}
		return resolvedSetAttribute{Permissions: &mode}, nil
	default:
		return resolvedSetAttribute{}, newError(opSetOwner, path, KindUnsupported, nil)
	}
}

// parsePrincipal implements spec.md §8 S6: "setAttribute parses only
// integers" - a principal named "alice" is InvalidArgument, one named
// "1001" yields UID/GID 1001.
func parsePrincipal(value any) (int, error) {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case int:
		if v < 0 {
			return 0, strconv.ErrSyntax
		}
		return v, nil
	default:
		return 0, strconv.ErrSyntax
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
