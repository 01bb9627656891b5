package sftpvfs

// OpenOption is a flag accepted by newInputStream/newOutputStream/
// newByteChannel. The set is deliberately small and flat (spec.md §4.2)
// rather than the deep option-object hierarchy the Java source uses.
type OpenOption int

const (
	OptRead OpenOption = iota
	OptWrite
	OptAppend
	OptTruncateExisting
	OptCreate
	OptCreateNew
	OptDeleteOnClose
	OptSparse
	OptSync
	OptDSync
	OptNoFollowLinks
)

// ignorableOpenOptions are accepted everywhere but have no effect: the SFTP
// protocol gives the server no hook to honor them.
var ignorableOpenOptions = map[OpenOption]bool{
	OptSparse:        true,
	OptSync:          true,
	OptDSync:         true,
	OptNoFollowLinks: true,
}

// resolvedOpen is the normalized outcome of resolving an OpenOption set,
// ready for the filesystem coordinator to act on.
type resolvedOpen struct {
	Read          bool
	Write         bool
	Append        bool
	Truncate      bool
	Create        bool
	CreateNew     bool
	DeleteOnClose bool
}

func optionSet(opts []OpenOption) map[OpenOption]bool {
	set := make(map[OpenOption]bool, len(opts))
	for _, o := range opts {
		set[o] = true
	}
	return set
}

// resolveForInput implements spec.md §4.2 "for-input": only READ and
// DELETE_ON_CLOSE are meaningful; anything else (besides the ignorables)
// is Unsupported.
func resolveForInput(path string, opts []OpenOption) (resolvedOpen, error) {
	set := optionSet(opts)
	for o := range set {
		if ignorableOpenOptions[o] || o == OptRead || o == OptDeleteOnClose {
			continue
		}
		return resolvedOpen{}, newError(opNewInputStream, path, KindUnsupported, nil)
	}
	return resolvedOpen{Read: true, DeleteOnClose: set[OptDeleteOnClose]}, nil
}

// resolveForOutput implements spec.md §4.2 "for-output". An empty option
// set defaults to {CREATE, TRUNCATE_EXISTING, WRITE}.
func resolveForOutput(path string, opts []OpenOption) (resolvedOpen, error) {
	if len(opts) == 0 {
		return resolvedOpen{Write: true, Create: true, Truncate: true}, nil
	}

	set := optionSet(opts)
	for o := range set {
		switch o {
		case OptWrite, OptAppend, OptTruncateExisting, OptCreate, OptCreateNew, OptDeleteOnClose:
			continue
		default:
			if ignorableOpenOptions[o] {
				continue
			}
			return resolvedOpen{}, newError(opNewOutputStream, path, KindUnsupported, nil)
		}
	}

	if set[OptAppend] && set[OptTruncateExisting] {
		return resolvedOpen{}, newError(opNewOutputStream, path, KindInvalidArgument, nil)
	}

	return resolvedOpen{
		Write:         true,
		Append:        set[OptAppend],
		Truncate:      set[OptTruncateExisting],
		Create:        set[OptCreate] || set[OptCreateNew],
		CreateNew:     set[OptCreateNew],
		DeleteOnClose: set[OptDeleteOnClose],
	}, nil
}

// resolveForByteChannel implements spec.md §4.2 "for-byte-channel": the
// union of for-input/for-output, with the additional illegal combinations
// APPEND+READ, APPEND+TRUNCATE_EXISTING, and READ+WRITE (the underlying
// SFTP channel does not support a duplex handle). No READ/WRITE/APPEND at
// all defaults to READ.
func resolveForByteChannel(path string, opts []OpenOption) (resolvedOpen, error) {
	set := optionSet(opts)
	for o := range set {
		switch o {
		case OptRead, OptWrite, OptAppend, OptTruncateExisting, OptCreate, OptCreateNew, OptDeleteOnClose:
			continue
		default:
			if ignorableOpenOptions[o] {
				continue
			}
			return resolvedOpen{}, newError(opNewInputStream, path, KindUnsupported, nil)
		}
	}

	if set[OptAppend] && (set[OptRead] || set[OptTruncateExisting]) {
		return resolvedOpen{}, newError(opNewInputStream, path, KindInvalidArgument, nil)
	}
	if set[OptRead] && set[OptWrite] {
		return resolvedOpen{}, newError(opNewInputStream, path, KindUnsupported, nil)
	}

	if !set[OptRead] && !set[OptWrite] && !set[OptAppend] {
		set[OptRead] = true
	}

	return resolvedOpen{
		Read:          set[OptRead],
		Write:         set[OptWrite] || set[OptAppend],
		Append:        set[OptAppend],
		Truncate:      set[OptTruncateExisting],
		Create:        set[OptCreate] || set[OptCreateNew],
		CreateNew:     set[OptCreateNew],
		DeleteOnClose: set[OptDeleteOnClose],
	}, nil
}

// CopyOption is a flag accepted by Filesystem.Copy and Filesystem.Move.
type CopyOption int

const (
	OptReplaceExisting CopyOption = iota
	OptAtomicMove
	OptCopyNoFollowLinks
)

// resolvedCopy is the normalized outcome of resolving a CopyOption set.
type resolvedCopy struct {
	ReplaceExisting bool
	AtomicMove      bool
}

// resolveCopyOptions implements spec.md §4.2's copy-options resolver:
// REPLACE_EXISTING is honored, ATOMIC_MOVE and NOFOLLOW_LINKS are
// recognized-but-ignored (ATOMIC_MOVE is handled specially by Move, which
// only honors it when source and target share a filesystem identity;
// NOFOLLOW_LINKS has no effect since this package never creates symlinks
// in the first place), and anything else - notably COPY_ATTRIBUTES - is
// rejected.
func resolveCopyOptions(path string, opts []CopyOption) (resolvedCopy, error) {
	out := resolvedCopy{}
	for _, o := range opts {
		switch o {
		case OptReplaceExisting:
			out.ReplaceExisting = true
		case OptAtomicMove:
			out.AtomicMove = true
		case OptCopyNoFollowLinks:
			// recognized, no effect
		default:
			return resolvedCopy{}, newError(opCopy, path, KindUnsupported, nil)
		}
	}
	return out, nil
}
