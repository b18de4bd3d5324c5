// Package linker is the filesystem engine behind sync: it materializes a
// skill inside a tool directory as a symbolic link (junction on Windows)
// or as a full copy, and removes either form without disturbing the
// central store. Copies are staged next to the destination and renamed
// into place so a crash never leaves a half-written tree at the final path.
package linker

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/skillshub/skillshub/pkg/logger"
	"github.com/skillshub/skillshub/pkg/skillerr"
	skilltypes "github.com/skillshub/skillshub/pkg/types/skills"
)

// copySkips are entries never carried into a copy. The central store holds
// plain content; clone bookkeeping stays in the cache.
var copySkips = []string{
	".git",
	".git/**",
	".skillshub-cache.json",
}

// Link materializes central at target. When forceCopy is set the link
// attempt is bypassed entirely. A failed link attempt degrades to a copy
// rather than surfacing, since restricted symlink privileges are an
// expected condition on some systems; the returned mode always reflects
// what landed on disk.
func Link(central, target string, forceCopy bool) (skilltypes.SyncMode, error) {
	if forceCopy {
		if err := CopyTree(central, target, false); err != nil {
			return "", err
		}
		return skilltypes.ModeCopy, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create parent of %s", target)
	}

	if err := makeLink(central, target); err != nil {
		logger.L.WithError(err).WithField("target", target).
			Debug("symlink failed, falling back to copy")
		if copyErr := CopyTree(central, target, false); copyErr != nil {
			return "", copyErr
		}
		return skilltypes.ModeCopy, nil
	}

	return skilltypes.ModeSymlink, nil
}

// Remove deletes the entry at target according to how it was materialized:
// a symlink is unlinked without touching its destination, a copy is
// deleted recursively. A missing target is not an error.
func Remove(target string, mode skilltypes.SyncMode) error {
	info, err := os.Lstat(target)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to lstat %s", target)
	}

	if mode == skilltypes.ModeSymlink || info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return errors.Wrapf(err, "failed to remove link %s", target)
		}
		return nil
	}

	if err := os.RemoveAll(target); err != nil {
		return errors.Wrapf(err, "failed to remove copy %s", target)
	}
	return nil
}

// CopyTree copies src to dst through a staging sibling plus rename.
// With overwrite disabled an existing dst fails with a conflict before
// any data is written.
func CopyTree(src, dst string, overwrite bool) error {
	if _, err := os.Lstat(dst); err == nil && !overwrite {
		return skillerr.NewTargetExists(dst)
	}

	parent := filepath.Dir(dst)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", parent)
	}

	stage := filepath.Join(parent, ".skillshub-stage-"+uuid.New().String())
	defer os.RemoveAll(stage)

	if err := copyRecursive(src, stage); err != nil {
		return errors.Wrapf(err, "failed to stage copy of %s", src)
	}

	if _, err := os.Lstat(dst); err == nil {
		if err := Remove(dst, ""); err != nil {
			return err
		}
	}

	if err := os.Rename(stage, dst); err != nil {
		// Cross-device rename: copy the stage over and clean up.
		if copyErr := copyRecursive(stage, dst); copyErr != nil {
			return errors.Wrapf(copyErr, "failed to place %s", dst)
		}
	}

	return nil
}

func copyRecursive(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel != "." && skipped(filepath.ToSlash(rel)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		destPath := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(target, destPath)
		case d.IsDir():
			return os.MkdirAll(destPath, info.Mode().Perm()|0o700)
		default:
			return copyFile(path, destPath, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func skipped(rel string) bool {
	for _, pattern := range copySkips {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
