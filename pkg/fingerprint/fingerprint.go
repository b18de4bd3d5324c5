// Package fingerprint computes deterministic content hashes of directory
// trees, used for change detection on update and conflict comparison
// during onboarding.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// defaultSkips are tree entries that never contribute to a fingerprint.
// Cache bookkeeping files are excluded so a cached clone and its installed
// copy hash identically.
var defaultSkips = []string{
	".git",
	".git/**",
	".skillshub-cache.json",
	"**/.DS_Store",
}

// HashDir returns a stable hex-encoded sha256 over the tree rooted at dir.
// The hash covers sorted relative paths plus file contents; symlinks
// contribute their target string rather than the resolved content, so two
// links to the same target compare equal without following them.
func HashDir(dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", errors.Wrapf(err, "failed to stat %s", dir)
	}
	if !info.IsDir() {
		return "", errors.Errorf("not a directory: %s", dir)
	}

	var entries []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if skipped(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		entries = append(entries, rel)
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to walk %s", dir)
	}

	sort.Strings(entries)

	h := sha256.New()
	for _, rel := range entries {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		info, err := os.Lstat(full)
		if err != nil {
			return "", errors.Wrapf(err, "failed to lstat %s", full)
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(full)
			if err != nil {
				return "", errors.Wrapf(err, "failed to read link %s", full)
			}
			h.Write([]byte("link\x00" + rel + "\x00" + target + "\x00"))
		case info.IsDir():
			h.Write([]byte("dir\x00" + rel + "\x00"))
		default:
			h.Write([]byte("file\x00" + rel + "\x00"))
			if err := hashFileInto(h, full); err != nil {
				return "", err
			}
			h.Write([]byte{0})
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFileInto(h io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return errors.Wrapf(err, "failed to hash %s", path)
	}
	return nil
}

func skipped(rel string) bool {
	for _, pattern := range defaultSkips {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
