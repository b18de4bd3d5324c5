// Package onboarding discovers skills that already live inside tool
// directories but are not yet managed, and adopts them into the central
// repository. Planning is a pure read: nothing on disk changes until the
// user picks a variant to adopt.
package onboarding

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/skillshub/skillshub/pkg/fingerprint"
	"github.com/skillshub/skillshub/pkg/logger"
	"github.com/skillshub/skillshub/pkg/manifest"
	"github.com/skillshub/skillshub/pkg/skillerr"
	"github.com/skillshub/skillshub/pkg/store"
	"github.com/skillshub/skillshub/pkg/syncer"
	"github.com/skillshub/skillshub/pkg/tools"
	skilltypes "github.com/skillshub/skillshub/pkg/types/skills"
)

// Variant is one concrete appearance of an unmanaged skill inside a tool
// directory. Fingerprint is the content hash of the resolved tree;
// LinkTarget is where a symlinked entry actually points.
type Variant struct {
	Tool        string `json:"tool"`
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
	IsLink      bool   `json:"is_link"`
	LinkTarget  string `json:"link_target,omitempty"`
}

// Candidate groups the appearances of one skill name across tools.
// Conflict is set when the variants disagree on content, in which case
// adoption requires an explicit choice.
type Candidate struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Variants    []Variant `json:"variants"`
	Conflict    bool      `json:"conflict"`
}

// Plan is the outcome of a scan.
type Plan struct {
	Candidates        []Candidate `json:"candidates"`
	TotalToolsScanned int         `json:"total_tools_scanned"`
	TotalSkillsFound  int         `json:"total_skills_found"`
}

// Scanner builds onboarding plans and adopts candidates.
type Scanner struct {
	store *store.Store
	sync  *syncer.Reconciler
}

// New creates a Scanner.
func New(st *store.Store, sync *syncer.Reconciler) *Scanner {
	return &Scanner{store: st, sync: sync}
}

// BuildPlan scans every installed tool's skills directory for unmanaged
// skills. Entries the engine already owns are excluded: recorded target
// paths, symlinks resolving into the central repository, and names that
// match a managed skill.
func (s *Scanner) BuildPlan(ctx context.Context) (*Plan, error) {
	managed, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	managedNames := make(map[string]bool)
	for _, skill := range managed {
		managedNames[strings.ToLower(skill.Name)] = true
	}

	targetPaths, err := s.store.AllTargetPaths(ctx)
	if err != nil {
		return nil, err
	}
	managedPaths := make(map[string]bool)
	for _, p := range targetPaths {
		managedPaths[filepath.Clean(p)] = true
	}

	centralRoot, err := filepath.EvalSymlinks(s.store.RepoRoot())
	if err != nil {
		centralRoot = filepath.Clean(s.store.RepoRoot())
	}

	home := s.store.Home()
	grouped := make(map[string]*Candidate)
	seenDirs := make(map[string]bool)
	toolsScanned := 0

	for _, tool := range tools.All() {
		if !tool.IsInstalled(home) {
			continue
		}
		toolsScanned++
		dir := tool.SkillsPath(home)
		// Shared directories are scanned once; the variant is attributed
		// to the first tool in catalog order.
		if seenDirs[dir] {
			continue
		}
		seenDirs[dir] = true

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			entryPath := filepath.Join(dir, entry.Name())
			if managedPaths[filepath.Clean(entryPath)] {
				continue
			}

			resolved, err := filepath.EvalSymlinks(entryPath)
			if err != nil {
				continue
			}
			info, err := os.Stat(resolved)
			if err != nil || !info.IsDir() {
				continue
			}
			if isWithin(resolved, centralRoot) {
				continue
			}

			mf, err := manifest.ParseDir(resolved)
			if err != nil {
				continue
			}
			if managedNames[strings.ToLower(mf.Name)] {
				continue
			}

			hash, err := fingerprint.HashDir(resolved)
			if err != nil {
				logger.G(ctx).WithError(err).WithField("path", entryPath).
					Warn("failed to fingerprint candidate")
				continue
			}

			key := strings.ToLower(mf.Name)
			candidate, ok := grouped[key]
			if !ok {
				candidate = &Candidate{Name: mf.Name, Description: mf.Description}
				grouped[key] = candidate
			}
			variant := Variant{
				Tool:        tool.Key,
				Path:        entryPath,
				Fingerprint: hash,
			}
			if entry.Type()&os.ModeSymlink != 0 {
				variant.IsLink = true
				variant.LinkTarget = resolved
			}
			candidate.Variants = append(candidate.Variants, variant)
		}
	}

	plan := &Plan{TotalToolsScanned: toolsScanned}
	for _, candidate := range grouped {
		hashes := make(map[string]bool)
		for _, v := range candidate.Variants {
			hashes[v.Fingerprint] = true
		}
		candidate.Conflict = len(hashes) > 1
		plan.TotalSkillsFound += len(candidate.Variants)
		sort.Slice(candidate.Variants, func(i, j int) bool {
			return candidate.Variants[i].Tool < candidate.Variants[j].Tool
		})
		plan.Candidates = append(plan.Candidates, *candidate)
	}
	sort.Slice(plan.Candidates, func(i, j int) bool {
		return plan.Candidates[i].Name < plan.Candidates[j].Name
	})
	return plan, nil
}

// Adopt imports one planned candidate into the central repository and
// re-links every tool that carried a variant, replacing the loose copies.
// fromTool picks the winning variant; it may be empty only when the
// candidate has no content conflict.
func (s *Scanner) Adopt(ctx context.Context, name, fromTool string) (*skilltypes.ManagedSkill, *skilltypes.BatchResult, error) {
	plan, err := s.BuildPlan(ctx)
	if err != nil {
		return nil, nil, err
	}

	var candidate *Candidate
	for i := range plan.Candidates {
		if strings.EqualFold(plan.Candidates[i].Name, name) {
			candidate = &plan.Candidates[i]
			break
		}
	}
	if candidate == nil {
		return nil, nil, skillerr.NewNotFound("skill", name)
	}

	chosen, err := pickVariant(candidate, fromTool)
	if err != nil {
		return nil, nil, err
	}

	// Install from the resolved tree: a symlinked variant must yield an
	// independent central copy, not a link back into the user's directory.
	srcPath := chosen.Path
	if chosen.IsLink && chosen.LinkTarget != "" {
		srcPath = chosen.LinkTarget
	} else if resolved, err := filepath.EvalSymlinks(srcPath); err == nil {
		srcPath = resolved
	}

	skill, err := s.store.Install(ctx, srcPath, candidate.Name,
		skilltypes.LocalSource{Path: srcPath}, "")
	if err != nil {
		return nil, nil, err
	}

	result := &skilltypes.BatchResult{}
	for _, variant := range candidate.Variants {
		_, err := s.sync.SyncToTool(ctx, skill.ID, variant.Tool, true)
		result.Add(variant.Tool, err)
	}
	return skill, result, nil
}

// AdoptAll adopts every non-conflicted candidate of the current plan.
// Conflicted candidates are reported as failures requiring a choice.
func (s *Scanner) AdoptAll(ctx context.Context) (*skilltypes.BatchResult, error) {
	plan, err := s.BuildPlan(ctx)
	if err != nil {
		return nil, err
	}

	result := &skilltypes.BatchResult{}
	for _, candidate := range plan.Candidates {
		if candidate.Conflict {
			result.Add(candidate.Name, errors.Errorf(
				"skill %s has conflicting variants, adopt it with an explicit tool", candidate.Name))
			continue
		}
		_, _, err := s.Adopt(ctx, candidate.Name, "")
		result.Add(candidate.Name, err)
	}
	return result, nil
}

func pickVariant(candidate *Candidate, fromTool string) (*Variant, error) {
	if fromTool == "" {
		if candidate.Conflict {
			return nil, skillerr.NewValidation(skillerr.ReasonConflictingVariants, candidate.Name)
		}
		return &candidate.Variants[0], nil
	}
	for i := range candidate.Variants {
		if candidate.Variants[i].Tool == fromTool {
			return &candidate.Variants[i], nil
		}
	}
	return nil, skillerr.NewNotFound("tool", fromTool)
}

func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || filepath.IsLocal(rel)
}
