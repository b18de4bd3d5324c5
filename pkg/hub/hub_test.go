package hub

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillshub/skillshub/pkg/db"
	"github.com/skillshub/skillshub/pkg/gitcache"
	"github.com/skillshub/skillshub/pkg/skillerr"
	"github.com/skillshub/skillshub/pkg/store"
	skilltypes "github.com/skillshub/skillshub/pkg/types/skills"
)

// fakeGit simulates the git binary against an in-memory set of remote
// repositories: clone materializes the repo files, rev-parse reports a
// fixed head, and config answers origin lookups for local checkouts.
type fakeGit struct {
	repos  map[string]map[string]string // clone URL -> rel path -> content
	head   string
	origin string
}

func (f *fakeGit) run(_ context.Context, dir string, args ...string) (string, error) {
	switch args[0] {
	case "clone":
		url, repoDir := args[len(args)-2], args[len(args)-1]
		files, ok := f.repos[url]
		if !ok {
			return "", os.ErrNotExist
		}
		if err := os.MkdirAll(filepath.Join(repoDir, ".git"), 0o755); err != nil {
			return "", err
		}
		for rel, content := range files {
			full := filepath.Join(repoDir, filepath.FromSlash(rel))
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return "", err
			}
			if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
				return "", err
			}
		}
		return "", nil
	case "rev-parse":
		return f.head + "\n", nil
	case "config":
		if f.origin == "" {
			return "", os.ErrNotExist
		}
		return f.origin + "\n", nil
	default:
		_ = dir
		return "", nil
	}
}

func newTestHub(t *testing.T, git *fakeGit) (*Service, string) {
	t.Helper()
	base := t.TempDir()
	home := filepath.Join(base, "home")
	require.NoError(t, os.MkdirAll(home, 0o755))

	database, err := db.Open(context.Background(), filepath.Join(base, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	manager := gitcache.NewManager(filepath.Join(base, "cache"), gitcache.WithGitRunner(git.run))

	st, err := store.New(context.Background(), database, filepath.Join(base, "skills"),
		store.WithHome(home), store.WithGitCache(manager))
	require.NoError(t, err)

	return New(st, manager), home
}

func skillMD(name string) string {
	return "---\nname: " + name + "\ndescription: d\n---\nbody of " + name + "\n"
}

func writeLocalSkill(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(skillMD(name)), 0o644))
	return dir
}

func TestInstallLocalAndReadContent(t *testing.T) {
	s, _ := newTestHub(t, &fakeGit{})
	src := writeLocalSkill(t, "alpha")

	skill, err := s.InstallLocal(context.Background(), src, "")
	require.NoError(t, err)
	assert.Equal(t, "alpha", skill.Name)
	assert.Equal(t, skilltypes.SourceLocal, skill.SourceKind)

	body, err := s.ReadSkillContent(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Contains(t, body, "body of alpha")
}

func TestInstallLocalFollowsSymlinkedSource(t *testing.T) {
	s, _ := newTestHub(t, &fakeGit{})
	real := writeLocalSkill(t, "alpha")
	link := filepath.Join(t.TempDir(), "alpha-link")
	require.NoError(t, os.Symlink(real, link))

	skill, err := s.InstallLocal(context.Background(), link, "")
	require.NoError(t, err)

	// The central copy is an independent tree, not a link into the source.
	info, err := os.Lstat(skill.CentralPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Zero(t, info.Mode()&os.ModeSymlink)

	// Later changes to the source must not bleed into the central copy.
	require.NoError(t, os.WriteFile(filepath.Join(real, "extra.md"), []byte("late\n"), 0o644))
	_, err = os.Stat(filepath.Join(skill.CentralPath, "extra.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestInstallRegistryUnconfigured(t *testing.T) {
	s, _ := newTestHub(t, &fakeGit{})
	_, err := s.InstallRegistry(context.Background(), "acme/pkg", "")
	assert.True(t, skillerr.IsValidation(err))
}

func TestSettingsRoundTrip(t *testing.T) {
	s, _ := newTestHub(t, &fakeGit{})
	ctx := context.Background()

	settings, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Zero(t, settings.CacheTTLSecs)
	assert.Zero(t, settings.CacheCleanupDays)
	assert.Equal(t, s.Store().RepoRoot(), settings.RepoPath)

	require.NoError(t, s.SetCacheTTL(ctx, 30*time.Second))
	require.NoError(t, s.SetCacheCleanupAge(ctx, 48*time.Hour))

	settings, err = s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, settings.CacheTTLSecs)
	assert.Equal(t, 2, settings.CacheCleanupDays)

	assert.True(t, skillerr.IsValidation(s.SetCacheTTL(ctx, 0)))
	assert.True(t, skillerr.IsValidation(s.SetCacheCleanupAge(ctx, -time.Hour)))
	assert.True(t, skillerr.IsValidation(s.SetRepoPath(ctx, "relative/skills")))
	require.NoError(t, s.SetRepoPath(ctx, filepath.Join(t.TempDir(), "elsewhere")))
}

func TestInstallLocalDetectsGitOrigin(t *testing.T) {
	s, _ := newTestHub(t, &fakeGit{origin: "https://github.com/owner/alpha.git", head: "abc123"})
	src := writeLocalSkill(t, "alpha")
	require.NoError(t, os.MkdirAll(filepath.Join(src, ".git"), 0o755))

	skill, err := s.InstallLocal(context.Background(), src, "")
	require.NoError(t, err)
	assert.Equal(t, skilltypes.SourceGit, skill.SourceKind)
	assert.Equal(t, "https://github.com/owner/alpha.git", skill.SourceRef)
	assert.Equal(t, "abc123", skill.SourceRevision)
}

func TestInstallGitSingleCandidate(t *testing.T) {
	git := &fakeGit{
		head: "deadbeef",
		repos: map[string]map[string]string{
			"https://github.com/owner/alpha.git": {"SKILL.md": skillMD("alpha")},
		},
	}
	s, _ := newTestHub(t, git)

	skill, err := s.InstallGit(context.Background(), "owner/alpha", "")
	require.NoError(t, err)
	assert.Equal(t, "alpha", skill.Name)
	assert.Equal(t, skilltypes.SourceGit, skill.SourceKind)
	assert.Equal(t, "deadbeef", skill.SourceRevision)
	assert.FileExists(t, filepath.Join(skill.CentralPath, "SKILL.md"))
}

func TestInstallGitMultiSkillsRequiresSelection(t *testing.T) {
	git := &fakeGit{
		head: "deadbeef",
		repos: map[string]map[string]string{
			"https://github.com/owner/pack.git": {
				"skills/alpha/SKILL.md": skillMD("alpha"),
				"skills/beta/SKILL.md":  skillMD("beta"),
			},
		},
	}
	s, _ := newTestHub(t, git)

	_, err := s.InstallGit(context.Background(), "owner/pack", "")
	assert.True(t, skillerr.IsMultiSkills(err))

	candidates, err := s.GitCandidates(context.Background(), "owner/pack")
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	result, err := s.InstallGitSelections(context.Background(), "owner/pack",
		[]string{candidates[0].Subpath, candidates[1].Subpath})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)

	skills, err := s.ManagedSkills(context.Background())
	require.NoError(t, err)
	require.Len(t, skills, 2)
	for _, skill := range skills {
		// The stored ref pins the selected subtree for updates.
		assert.Contains(t, skill.SourceRef, "//skills/")
	}
}

func TestUpdateGitSelectionNoChange(t *testing.T) {
	git := &fakeGit{
		head: "deadbeef",
		repos: map[string]map[string]string{
			"https://github.com/owner/pack.git": {
				"skills/alpha/SKILL.md": skillMD("alpha"),
				"skills/beta/SKILL.md":  skillMD("beta"),
			},
		},
	}
	s, _ := newTestHub(t, git)

	skill, err := s.InstallGitSelection(context.Background(), "owner/pack", "skills/alpha", "")
	require.NoError(t, err)

	result, err := s.UpdateSkill(context.Background(), skill.ID)
	require.NoError(t, err)
	assert.False(t, result.Changed)
}

func TestSyncRequestInstallsUnmanagedSource(t *testing.T) {
	s, home := newTestHub(t, &fakeGit{})
	src := writeLocalSkill(t, "alpha")

	skill, err := s.SyncSkillToTool(context.Background(), SyncRequest{
		SourcePath: src,
		Tool:       "claude-code",
	})
	require.NoError(t, err)
	require.Len(t, skill.Targets, 1)
	assert.Equal(t, skilltypes.ModeSymlink, skill.Targets[0].Mode)

	_, err = os.Lstat(filepath.Join(home, ".claude", "skills", "alpha"))
	assert.NoError(t, err)
}

func TestDeleteSkillDetachesTargetsFirst(t *testing.T) {
	s, home := newTestHub(t, &fakeGit{})
	src := writeLocalSkill(t, "alpha")

	skill, err := s.InstallLocal(context.Background(), src, "")
	require.NoError(t, err)
	_, err = s.SyncSkillToTool(context.Background(), SyncRequest{SkillID: skill.ID, Tool: "claude-code"})
	require.NoError(t, err)
	_, err = s.SyncSkillToTool(context.Background(), SyncRequest{SkillID: skill.ID, Tool: "cursor"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteSkill(context.Background(), skill.ID))

	_, err = os.Lstat(filepath.Join(home, ".claude", "skills", "alpha"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Lstat(filepath.Join(home, ".cursor", "skills", "alpha"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(skill.CentralPath)
	assert.True(t, os.IsNotExist(err))

	skills, err := s.ManagedSkills(context.Background())
	require.NoError(t, err)
	assert.Empty(t, skills)
}

func TestToolStatusTracksNewlyInstalled(t *testing.T) {
	s, home := newTestHub(t, &fakeGit{})
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".claude"), 0o755))

	status, err := s.ToolStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"claude-code"}, status.Installed)
	// First scan has no baseline, so nothing counts as new.
	assert.Empty(t, status.NewlyInstalled)

	require.NoError(t, os.MkdirAll(filepath.Join(home, ".cursor"), 0o755))
	status, err = s.ToolStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"cursor"}, status.NewlyInstalled)
}

func TestLocalCandidatesMissingBase(t *testing.T) {
	s, _ := newTestHub(t, &fakeGit{})
	_, err := s.LocalCandidates(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.True(t, skillerr.IsValidation(err))
}

func TestSkillLookupByIDOrName(t *testing.T) {
	s, _ := newTestHub(t, &fakeGit{})
	src := writeLocalSkill(t, "alpha")
	skill, err := s.InstallLocal(context.Background(), src, "")
	require.NoError(t, err)

	byID, err := s.Skill(context.Background(), skill.ID)
	require.NoError(t, err)
	byName, err := s.Skill(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, byID.ID, byName.ID)

	_, err = s.Skill(context.Background(), "missing")
	assert.True(t, skillerr.IsNotFound(err))
}
