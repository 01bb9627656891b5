package sftpvfs

import (
	"context"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mossforge/sftpvfs/pkg/vfspath"
)

// Glob implements spec.md's glob-matching supplement (§9, "supplemented
// features"): walk root and return every path whose root-relative form
// matches pattern. Grounded on the teacher's syncengine/filter.go, which
// calls doublestar.Match(pattern, relativePath) directly rather than
// doublestar.Glob (which wants an io/fs.FS this package does not have -
// SFTP trees are walked, not statted through Go's fs.FS interface).
func (fs *Filesystem) Glob(ctx context.Context, root, pattern string) ([]string, error) {
	if _, err := doublestar.Match(pattern, "sftpvfs-glob-pattern-check"); err != nil {
		return nil, newError("glob", pattern, KindInvalidArgument, err)
	}

	rootAbs := fs.toAbsolute(vfspath.Parse(root))

	var matches []string
	err := fs.Walk(ctx, root, func(path string, attrs Attributes, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if vfspath.Parse(path).Equal(rootAbs) {
			return nil
		}

		rel, err := rootAbs.Relativize(vfspath.Parse(path))
		if err != nil {
			return err
		}

		matched, err := doublestar.Match(pattern, rel.String())
		if err != nil {
			return err
		}
		if matched {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}
