// Package hub is the service facade over the skill repository: every
// operation the CLI and HTTP API expose goes through here. The hub owns
// the per-skill serialization guarantee for mutating operations and the
// fail-closed delete ordering (targets detach before the central copy
// disappears).
package hub

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/skillshub/skillshub/pkg/gitcache"
	"github.com/skillshub/skillshub/pkg/logger"
	"github.com/skillshub/skillshub/pkg/manifest"
	"github.com/skillshub/skillshub/pkg/onboarding"
	"github.com/skillshub/skillshub/pkg/skillerr"
	"github.com/skillshub/skillshub/pkg/store"
	"github.com/skillshub/skillshub/pkg/syncer"
	"github.com/skillshub/skillshub/pkg/telemetry"
	"github.com/skillshub/skillshub/pkg/tools"
	skilltypes "github.com/skillshub/skillshub/pkg/types/skills"
)

// Service exposes every repository operation behind one facade.
type Service struct {
	store *store.Store
	sync  *syncer.Reconciler
	scan  *onboarding.Scanner
	git   *gitcache.Manager

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Service. git may be nil when git imports are disabled.
func New(st *store.Store, git *gitcache.Manager) *Service {
	reconciler := syncer.New(st)
	return &Service{
		store: st,
		sync:  reconciler,
		scan:  onboarding.New(st, reconciler),
		git:   git,
		locks: make(map[string]*sync.Mutex),
	}
}

// Store exposes the underlying store for settings access.
func (s *Service) Store() *store.Store { return s.store }

// skillLock serializes mutating operations per skill id so an update and
// a delete can never interleave.
func (s *Service) skillLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// ToolStatus detects which catalog tools are installed and which appeared
// since the previous scan, then records the current set.
func (s *Service) ToolStatus(ctx context.Context) (tools.Status, error) {
	var status tools.Status
	err := telemetry.WithSpan(ctx, "hub.tool_status", func(ctx context.Context) error {
		seen, err := s.store.SeenTools(ctx)
		if err != nil {
			return err
		}
		var previouslySeen map[string]bool
		if len(seen) > 0 {
			previouslySeen = make(map[string]bool, len(seen))
			for _, key := range seen {
				previouslySeen[key] = true
			}
		}

		status = tools.DetectStatus(s.store.Home(), previouslySeen)
		return s.store.RecordSeenTools(ctx, status.Installed)
	})
	return status, err
}

// OnboardingPlan scans tool directories for unmanaged skills without
// touching anything.
func (s *Service) OnboardingPlan(ctx context.Context) (*onboarding.Plan, error) {
	var plan *onboarding.Plan
	err := telemetry.WithSpan(ctx, "hub.onboarding_plan", func(ctx context.Context) error {
		var err error
		plan, err = s.scan.BuildPlan(ctx)
		return err
	})
	return plan, err
}

// AdoptSkill adopts one onboarding candidate, choosing the fromTool
// variant when the candidate's copies conflict.
func (s *Service) AdoptSkill(ctx context.Context, name, fromTool string) (*skilltypes.ManagedSkill, *skilltypes.BatchResult, error) {
	var (
		skill  *skilltypes.ManagedSkill
		result *skilltypes.BatchResult
	)
	err := telemetry.WithSpan(ctx, "hub.adopt_skill", func(ctx context.Context) error {
		var err error
		skill, result, err = s.scan.Adopt(ctx, name, fromTool)
		return err
	}, attribute.String("skill.name", name))
	return skill, result, err
}

// AdoptAll adopts every non-conflicted onboarding candidate.
func (s *Service) AdoptAll(ctx context.Context) (*skilltypes.BatchResult, error) {
	var result *skilltypes.BatchResult
	err := telemetry.WithSpan(ctx, "hub.adopt_all", func(ctx context.Context) error {
		var err error
		result, err = s.scan.AdoptAll(ctx)
		return err
	})
	return result, err
}

// ManagedSkills lists every managed skill with its targets.
func (s *Service) ManagedSkills(ctx context.Context) ([]skilltypes.ManagedSkill, error) {
	return s.store.List(ctx)
}

// Skill returns one managed skill by id, falling back to name lookup so
// the CLI accepts either form.
func (s *Service) Skill(ctx context.Context, ref string) (*skilltypes.ManagedSkill, error) {
	skill, err := s.store.Get(ctx, ref)
	if err == nil {
		return skill, nil
	}
	if !skillerr.IsNotFound(err) {
		return nil, err
	}
	return s.store.GetByName(ctx, ref)
}

// ReadSkillContent returns the SKILL.md body of a managed skill.
func (s *Service) ReadSkillContent(ctx context.Context, ref string) (string, error) {
	skill, err := s.Skill(ctx, ref)
	if err != nil {
		return "", err
	}
	return manifest.ReadBody(skill.CentralPath)
}

// LocalCandidates enumerates skill folders under a local base path,
// reporting invalid folders with their reason.
func (s *Service) LocalCandidates(ctx context.Context, basePath string) ([]skilltypes.LocalCandidate, error) {
	if _, err := os.Stat(basePath); err != nil {
		return nil, skillerr.NewValidation(skillerr.ReasonSourceMissing, basePath)
	}
	return manifest.Discover(basePath)
}

// InstallLocal imports a skill directory into the central repository.
// A source directory that is itself a git checkout with an origin remote
// is recorded as a git-sourced skill so later updates pull upstream.
func (s *Service) InstallLocal(ctx context.Context, sourcePath, name string) (*skilltypes.ManagedSkill, error) {
	var skill *skilltypes.ManagedSkill
	err := telemetry.WithSpan(ctx, "hub.install_local", func(ctx context.Context) error {
		// Resolve through symlinks so the central copy is always an
		// independent tree, never a link back into the source.
		resolved, err := filepath.EvalSymlinks(sourcePath)
		if err != nil {
			return skillerr.NewValidation(skillerr.ReasonSourceMissing, sourcePath)
		}
		info, err := os.Stat(resolved)
		if err != nil || !info.IsDir() {
			return skillerr.NewValidation(skillerr.ReasonSourceMissing, sourcePath)
		}

		source := skilltypes.Source(skilltypes.LocalSource{Path: resolved})
		revision := ""
		if s.git != nil {
			if origin, head, ok := s.git.DetectOrigin(ctx, resolved); ok {
				logger.G(ctx).WithField("origin", origin).Debug("source directory is a git checkout")
				source = skilltypes.GitSource{RepoURL: origin}
				revision = head
			}
		}

		skill, err = s.store.Install(ctx, resolved, name, source, revision)
		return err
	}, attribute.String("source.path", sourcePath))
	return skill, err
}

// InstallLocalSelection installs one discovered candidate under basePath.
// Subpath "." refers to basePath itself.
func (s *Service) InstallLocalSelection(ctx context.Context, basePath, subpath, name string) (*skilltypes.ManagedSkill, error) {
	dir := basePath
	if subpath != "" && subpath != "." {
		dir = filepath.Join(basePath, filepath.FromSlash(subpath))
	}
	return s.InstallLocal(ctx, dir, name)
}

// GitCandidates enumerates installable skills in a remote repository.
func (s *Service) GitCandidates(ctx context.Context, repoURL string) ([]skilltypes.GitCandidate, error) {
	if s.git == nil {
		return nil, errors.New("git imports are not configured")
	}
	var candidates []skilltypes.GitCandidate
	err := telemetry.WithSpan(ctx, "hub.git_candidates", func(ctx context.Context) error {
		var err error
		candidates, err = s.git.ListCandidates(ctx, repoURL)
		return err
	}, attribute.String("repo.url", repoURL))
	return candidates, err
}

// InstallGit imports a skill from a repository URL that must resolve to
// exactly one candidate. A multi-skill repository fails with a
// MultiSkillsError so the caller can present a selection.
func (s *Service) InstallGit(ctx context.Context, repoURL, name string) (*skilltypes.ManagedSkill, error) {
	var skill *skilltypes.ManagedSkill
	err := telemetry.WithSpan(ctx, "hub.install_git", func(ctx context.Context) error {
		candidates, err := s.GitCandidates(ctx, repoURL)
		if err != nil {
			return err
		}
		switch len(candidates) {
		case 0:
			return skillerr.NewValidation(skillerr.ReasonNoSkillFound, repoURL)
		case 1:
			skill, err = s.InstallGitSelection(ctx, repoURL, candidates[0].Subpath, name)
			return err
		default:
			return &skillerr.MultiSkillsError{RepoURL: repoURL, Candidates: len(candidates)}
		}
	}, attribute.String("repo.url", repoURL))
	return skill, err
}

// InstallGitSelection imports one candidate subtree from a repository.
// The stored source reference encodes the subpath so updates re-fetch the
// same subtree.
func (s *Service) InstallGitSelection(ctx context.Context, repoURL, subpath, name string) (*skilltypes.ManagedSkill, error) {
	if s.git == nil {
		return nil, errors.New("git imports are not configured")
	}
	var skill *skilltypes.ManagedSkill
	err := telemetry.WithSpan(ctx, "hub.install_git_selection", func(ctx context.Context) error {
		srcDir, head, err := s.git.Export(ctx, repoURL, subpath)
		if err != nil {
			return err
		}

		ref := gitcache.FormatSourceRef(repoURL, subpath)
		skill, err = s.store.Install(ctx, srcDir, name, skilltypes.GitSource{RepoURL: ref}, head)
		return err
	}, attribute.String("repo.url", repoURL), attribute.String("repo.subpath", subpath))
	return skill, err
}

// InstallGitSelections installs several candidates best-effort.
func (s *Service) InstallGitSelections(ctx context.Context, repoURL string, subpaths []string) (*skilltypes.BatchResult, error) {
	result := &skilltypes.BatchResult{}
	err := telemetry.WithSpan(ctx, "hub.install_git_selections", func(ctx context.Context) error {
		for _, subpath := range subpaths {
			_, err := s.InstallGitSelection(ctx, repoURL, subpath, "")
			result.Add(subpath, err)
		}
		return nil
	}, attribute.String("repo.url", repoURL))
	return result, err
}

// InstallRegistry imports a skill from the external registry command
// configured on the store.
func (s *Service) InstallRegistry(ctx context.Context, packageRef, name string) (*skilltypes.ManagedSkill, error) {
	var skill *skilltypes.ManagedSkill
	err := telemetry.WithSpan(ctx, "hub.install_registry", func(ctx context.Context) error {
		var err error
		skill, err = s.store.InstallRegistry(ctx, packageRef, name)
		return err
	}, attribute.String("registry.package", packageRef))
	return skill, err
}

// SyncRequest carries the parameters of a sync operation. SourcePath is
// consulted only when SkillID is empty: the skill is installed from it
// first, then synced.
type SyncRequest struct {
	SourcePath string
	SkillID    string
	Tool       string
	Name       string
	Overwrite  bool
}

// SyncSkillToTool materializes a skill inside one tool directory,
// installing it from SourcePath first when it is not yet managed.
func (s *Service) SyncSkillToTool(ctx context.Context, req SyncRequest) (*skilltypes.ManagedSkill, error) {
	var skill *skilltypes.ManagedSkill
	err := telemetry.WithSpan(ctx, "hub.sync_skill", func(ctx context.Context) error {
		id := req.SkillID
		if id == "" {
			installed, err := s.InstallLocal(ctx, req.SourcePath, req.Name)
			if err != nil {
				return err
			}
			id = installed.ID
		}

		lock := s.skillLock(id)
		lock.Lock()
		defer lock.Unlock()

		var err error
		skill, err = s.sync.SyncToTool(ctx, id, req.Tool, req.Overwrite)
		return err
	}, attribute.String("tool", req.Tool))
	return skill, err
}

// SyncSkillToTools fans one skill out to several tools best-effort.
func (s *Service) SyncSkillToTools(ctx context.Context, skillID string, toolKeys []string, overwrite bool) (*skilltypes.BatchResult, error) {
	lock := s.skillLock(skillID)
	lock.Lock()
	defer lock.Unlock()

	var result *skilltypes.BatchResult
	err := telemetry.WithSpan(ctx, "hub.sync_skill_all", func(ctx context.Context) error {
		result = s.sync.SyncToTools(ctx, skillID, toolKeys, overwrite)
		return nil
	})
	return result, err
}

// UnsyncSkillFromTool removes a skill from one tool directory.
func (s *Service) UnsyncSkillFromTool(ctx context.Context, skillID, tool string) error {
	lock := s.skillLock(skillID)
	lock.Lock()
	defer lock.Unlock()

	return telemetry.WithSpan(ctx, "hub.unsync_skill", func(ctx context.Context) error {
		return s.sync.UnsyncFromTool(ctx, skillID, tool)
	}, attribute.String("tool", tool))
}

// UpdateSkill re-fetches a skill from its source and refreshes copy
// targets when the content changed.
func (s *Service) UpdateSkill(ctx context.Context, skillID string) (*skilltypes.UpdateResult, error) {
	lock := s.skillLock(skillID)
	lock.Lock()
	defer lock.Unlock()

	var result *skilltypes.UpdateResult
	err := telemetry.WithSpan(ctx, "hub.update_skill", func(ctx context.Context) error {
		var err error
		result, err = s.store.Update(ctx, skillID)
		return err
	}, attribute.String("skill.id", skillID))
	return result, err
}

// UpdateAll updates every managed skill best-effort.
func (s *Service) UpdateAll(ctx context.Context) (*skilltypes.BatchResult, error) {
	skills, err := s.ManagedSkills(ctx)
	if err != nil {
		return nil, err
	}

	result := &skilltypes.BatchResult{}
	for _, skill := range skills {
		_, err := s.UpdateSkill(ctx, skill.ID)
		result.Add(skill.Name, err)
	}
	return result, nil
}

// DeleteSkill detaches every sync target and then removes the skill from
// the central repository. Any target that fails to detach aborts the
// delete before the central copy is touched, so a synced tool is never
// left pointing at nothing.
func (s *Service) DeleteSkill(ctx context.Context, skillID string) error {
	lock := s.skillLock(skillID)
	lock.Lock()
	defer lock.Unlock()

	return telemetry.WithSpan(ctx, "hub.delete_skill", func(ctx context.Context) error {
		result, err := s.sync.UnsyncAll(ctx, skillID)
		if err != nil {
			return err
		}
		if result.Failed > 0 {
			var merr error
			for _, item := range result.Items {
				if item.Error != "" {
					merr = multierror.Append(merr, errors.Errorf("%s: %s", item.Key, item.Error))
				}
			}
			return errors.Wrap(merr, "refusing to delete while targets remain attached")
		}
		return s.store.Remove(ctx, skillID)
	}, attribute.String("skill.id", skillID))
}

// Settings is the persisted engine configuration exposed to clients.
// Zero values mean the built-in default is in effect.
type Settings struct {
	CacheTTLSecs     int    `json:"cache_ttl_secs"`
	CacheCleanupDays int    `json:"cache_cleanup_days"`
	RepoPath         string `json:"repo_path"`
}

// GetSettings reads the persisted settings. RepoPath is the effective
// repository root, override or not.
func (s *Service) GetSettings(ctx context.Context) (Settings, error) {
	ttl := s.store.CacheTTL(ctx, 0)
	age := s.store.CacheCleanupAge(ctx, 0)
	return Settings{
		CacheTTLSecs:     int(ttl.Seconds()),
		CacheCleanupDays: int(age.Hours() / 24),
		RepoPath:         s.store.RepoRoot(),
	}, nil
}

// SetCacheTTL persists the git cache freshness window and applies it to
// the running cache manager immediately.
func (s *Service) SetCacheTTL(ctx context.Context, ttl time.Duration) error {
	if ttl <= 0 {
		return skillerr.NewValidation(skillerr.ReasonInvalidSetting, "cache TTL must be positive")
	}
	if err := s.store.SetCacheTTL(ctx, ttl); err != nil {
		return err
	}
	if s.git != nil {
		s.git.SetFreshness(ttl)
	}
	return nil
}

// SetCacheCleanupAge persists the cache retention period.
func (s *Service) SetCacheCleanupAge(ctx context.Context, age time.Duration) error {
	if age <= 0 {
		return skillerr.NewValidation(skillerr.ReasonInvalidSetting, "cache retention must be positive")
	}
	return s.store.SetCacheCleanupAge(ctx, age)
}

// SetRepoPath persists a repository root override. The new root takes
// effect on the next start; existing content is not moved.
func (s *Service) SetRepoPath(ctx context.Context, path string) error {
	if !filepath.IsAbs(path) {
		return skillerr.NewValidation(skillerr.ReasonInvalidSetting, "repository path must be absolute")
	}
	return s.store.SetRepoPath(ctx, path)
}

// CacheCleanup reaps git cache entries older than the configured
// retention. Returns how many entries were removed.
func (s *Service) CacheCleanup(ctx context.Context, fallback time.Duration) (int, error) {
	if s.git == nil {
		return 0, nil
	}
	retention := s.store.CacheCleanupAge(ctx, fallback)
	return s.git.Cleanup(ctx, retention)
}

// CacheClear drops the entire git cache.
func (s *Service) CacheClear(ctx context.Context) error {
	if s.git == nil {
		return nil
	}
	return s.git.ClearAll()
}
