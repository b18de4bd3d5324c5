package manifest

import (
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/skillshub/skillshub/pkg/skillerr"
	skilltypes "github.com/skillshub/skillshub/pkg/types/skills"
)

// searchBases are the conventional skill locations inside a repository or
// import folder, checked in addition to a root-level SKILL.md.
var searchBases = []string{
	"skills",
	"skills/.curated",
	"skills/.experimental",
	"skills/.system",
}

// Discover enumerates skill candidates under basePath using the shared
// discovery rule, so local imports and git imports report structurally
// identical results. Invalid candidates are included with a reason.
func Discover(basePath string) ([]skilltypes.LocalCandidate, error) {
	if _, err := os.Stat(basePath); err != nil {
		if os.IsNotExist(err) {
			return nil, skillerr.NewValidation(skillerr.ReasonSourceMissing, basePath)
		}
		return nil, errors.Wrapf(err, "failed to stat %s", basePath)
	}

	var out []skilltypes.LocalCandidate

	if _, err := os.Stat(filepath.Join(basePath, SkillFileName)); err == nil {
		out = append(out, classify(basePath, "."))
	}

	for _, base := range searchBases {
		baseDir := filepath.Join(basePath, filepath.FromSlash(base))
		entries, err := os.ReadDir(baseDir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			subpath := path.Join(base, entry.Name())
			out = append(out, classify(filepath.Join(baseDir, entry.Name()), subpath))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Subpath < out[j].Subpath
	})

	return out, nil
}

// Valid filters a candidate list down to installable entries.
func Valid(candidates []skilltypes.LocalCandidate) []skilltypes.LocalCandidate {
	var out []skilltypes.LocalCandidate
	for _, c := range candidates {
		if c.Valid {
			out = append(out, c)
		}
	}
	return out
}

func classify(dir, subpath string) skilltypes.LocalCandidate {
	m, err := ParseDir(dir)
	if err != nil {
		return skilltypes.LocalCandidate{
			Name:    filepath.Base(dir),
			Subpath: subpath,
			Valid:   false,
			Reason:  reason(err),
		}
	}
	return skilltypes.LocalCandidate{
		Name:        m.Name,
		Description: m.Description,
		Subpath:     subpath,
		Valid:       true,
	}
}
