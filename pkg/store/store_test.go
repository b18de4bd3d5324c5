package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillshub/skillshub/pkg/db"
	"github.com/skillshub/skillshub/pkg/skillerr"
	skilltypes "github.com/skillshub/skillshub/pkg/types/skills"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	base := t.TempDir()
	home := filepath.Join(base, "home")
	require.NoError(t, os.MkdirAll(home, 0o755))

	database, err := db.Open(context.Background(), filepath.Join(base, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	opts = append([]Option{WithHome(home)}, opts...)
	s, err := New(context.Background(), database, filepath.Join(base, "skills"), opts...)
	require.NoError(t, err)
	return s, home
}

func writeSkillDir(t *testing.T, dir, name string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := "---\nname: " + name + "\ndescription: test skill\n---\n# " + name + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644))
	return dir
}

func TestInstallAndGet(t *testing.T) {
	s, _ := newTestStore(t)
	src := writeSkillDir(t, filepath.Join(t.TempDir(), "pdf-tools"), "pdf-tools")

	skill, err := s.Install(context.Background(), src, "", skilltypes.LocalSource{Path: src}, "")
	require.NoError(t, err)
	assert.Equal(t, "pdf-tools", skill.Name)
	assert.Equal(t, skilltypes.SourceLocal, skill.SourceKind)
	assert.NotEmpty(t, skill.ContentHash)
	assert.Equal(t, s.CentralPathFor("pdf-tools"), skill.CentralPath)
	assert.FileExists(t, filepath.Join(skill.CentralPath, "SKILL.md"))

	got, err := s.Get(context.Background(), skill.ID)
	require.NoError(t, err)
	assert.Equal(t, skill.ID, got.ID)

	byName, err := s.GetByName(context.Background(), "PDF-Tools")
	require.NoError(t, err)
	assert.Equal(t, skill.ID, byName.ID)
}

func TestInstallDuplicateNameConflicts(t *testing.T) {
	s, _ := newTestStore(t)
	src := writeSkillDir(t, filepath.Join(t.TempDir(), "alpha"), "alpha")

	_, err := s.Install(context.Background(), src, "", skilltypes.LocalSource{Path: src}, "")
	require.NoError(t, err)

	other := writeSkillDir(t, filepath.Join(t.TempDir(), "also-alpha"), "Alpha")
	_, err = s.Install(context.Background(), other, "", skilltypes.LocalSource{Path: other}, "")
	assert.True(t, skillerr.IsConflict(err))
}

func TestInstallRejectsTraversalName(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// The manifest name is untrusted input; a relative segment must never
	// place the central copy outside the repository root.
	src := writeSkillDir(t, filepath.Join(t.TempDir(), "sneaky"), "../escaped")
	_, err := s.Install(ctx, src, "", skilltypes.LocalSource{Path: src}, "")
	assert.True(t, skillerr.IsValidation(err))
	_, statErr := os.Stat(filepath.Join(filepath.Dir(s.RepoRoot()), "escaped"))
	assert.True(t, os.IsNotExist(statErr))

	for _, name := range []string{"a/b", `a\b`, "..", ".", ""} {
		good := writeSkillDir(t, filepath.Join(t.TempDir(), "ok"), "ok")
		_, err := s.Install(ctx, good, name, skilltypes.LocalSource{Path: good}, "")
		if name == "" {
			// Empty falls back to the manifest name, which is valid here.
			require.NoError(t, err)
			require.NoError(t, s.Remove(ctx, mustGetByName(t, s, "ok").ID))
			continue
		}
		assert.True(t, skillerr.IsValidation(err), "name %q should be rejected", name)
	}
}

func mustGetByName(t *testing.T, s *Store, name string) *skilltypes.ManagedSkill {
	t.Helper()
	skill, err := s.GetByName(context.Background(), name)
	require.NoError(t, err)
	return skill
}

func TestInstallRegistry(t *testing.T) {
	installer := func(_ context.Context, packageRef, destDir string) error {
		content := "---\nname: reg-skill\ndescription: from " + packageRef + "\n---\nbody\n"
		return os.WriteFile(filepath.Join(destDir, "SKILL.md"), []byte(content), 0o644)
	}
	s, _ := newTestStore(t, WithRegistryInstaller(installer))

	skill, err := s.InstallRegistry(context.Background(), "acme/reg-skill", "")
	require.NoError(t, err)
	assert.Equal(t, "reg-skill", skill.Name)
	assert.Equal(t, skilltypes.SourceRegistry, skill.SourceKind)
	assert.Equal(t, "acme/reg-skill", skill.SourceRef)
	assert.FileExists(t, filepath.Join(skill.CentralPath, "SKILL.md"))
}

func TestInstallRegistryUnconfigured(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.InstallRegistry(context.Background(), "acme/reg-skill", "")
	assert.True(t, skillerr.IsValidation(err))
}

func TestInstallRejectsMissingManifest(t *testing.T) {
	s, _ := newTestStore(t)
	src := t.TempDir()

	_, err := s.Install(context.Background(), src, "", skilltypes.LocalSource{Path: src}, "")
	assert.True(t, skillerr.IsValidation(err))
}

func TestTargetsLifecycle(t *testing.T) {
	s, _ := newTestStore(t)
	src := writeSkillDir(t, filepath.Join(t.TempDir(), "alpha"), "alpha")
	skill, err := s.Install(context.Background(), src, "", skilltypes.LocalSource{Path: src}, "")
	require.NoError(t, err)

	require.NoError(t, s.UpsertTarget(context.Background(), skilltypes.SyncTarget{
		SkillID:    skill.ID,
		Tool:       "claude-code",
		Mode:       skilltypes.ModeSymlink,
		TargetPath: "/tmp/claude/alpha",
	}))
	// A second upsert for the same tool replaces, not duplicates.
	require.NoError(t, s.UpsertTarget(context.Background(), skilltypes.SyncTarget{
		SkillID:    skill.ID,
		Tool:       "claude-code",
		Mode:       skilltypes.ModeCopy,
		TargetPath: "/tmp/claude/alpha",
	}))

	targets, err := s.ListTargets(context.Background(), skill.ID)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, skilltypes.ModeCopy, targets[0].Mode)
	assert.NotNil(t, targets[0].SyncedAt)

	got, err := s.Get(context.Background(), skill.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastSyncAt)

	paths, err := s.AllTargetPaths(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/claude/alpha"}, paths)

	require.NoError(t, s.DeleteTarget(context.Background(), skill.ID, "claude-code"))
	targets, err = s.ListTargets(context.Background(), skill.ID)
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestRemoveDeletesDirectoryAndRow(t *testing.T) {
	s, _ := newTestStore(t)
	src := writeSkillDir(t, filepath.Join(t.TempDir(), "alpha"), "alpha")
	skill, err := s.Install(context.Background(), src, "", skilltypes.LocalSource{Path: src}, "")
	require.NoError(t, err)

	require.NoError(t, s.Remove(context.Background(), skill.ID))

	_, err = os.Stat(skill.CentralPath)
	assert.True(t, os.IsNotExist(err))
	_, err = s.Get(context.Background(), skill.ID)
	assert.True(t, skillerr.IsNotFound(err))
}

func TestUpdateLocalNoChange(t *testing.T) {
	s, _ := newTestStore(t)
	src := writeSkillDir(t, filepath.Join(t.TempDir(), "alpha"), "alpha")
	skill, err := s.Install(context.Background(), src, "", skilltypes.LocalSource{Path: src}, "")
	require.NoError(t, err)

	result, err := s.Update(context.Background(), skill.ID)
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, skill.ContentHash, result.ContentHash)
}

func TestUpdateLocalChangedRefreshesCopyTargets(t *testing.T) {
	s, home := newTestStore(t)
	src := writeSkillDir(t, filepath.Join(t.TempDir(), "alpha"), "alpha")
	skill, err := s.Install(context.Background(), src, "", skilltypes.LocalSource{Path: src}, "")
	require.NoError(t, err)

	// Simulate a previously synced copy target for an installed tool.
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".cursor"), 0o755))
	targetPath := filepath.Join(home, ".cursor", "skills", "alpha")
	require.NoError(t, os.MkdirAll(filepath.Dir(targetPath), 0o755))
	require.NoError(t, os.CopyFS(targetPath, os.DirFS(skill.CentralPath)))
	require.NoError(t, s.UpsertTarget(context.Background(), skilltypes.SyncTarget{
		SkillID:    skill.ID,
		Tool:       "cursor",
		Mode:       skilltypes.ModeCopy,
		TargetPath: targetPath,
	}))

	require.NoError(t, os.WriteFile(filepath.Join(src, "extra.md"), []byte("more\n"), 0o644))

	result, err := s.Update(context.Background(), skill.ID)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.NotEqual(t, skill.ContentHash, result.ContentHash)
	assert.Equal(t, []string{"cursor"}, result.UpdatedTargets)

	assert.FileExists(t, filepath.Join(skill.CentralPath, "extra.md"))
	assert.FileExists(t, filepath.Join(targetPath, "extra.md"))
}

func TestUpdateSkipsCopyTargetOfUninstalledTool(t *testing.T) {
	s, home := newTestStore(t)
	src := writeSkillDir(t, filepath.Join(t.TempDir(), "alpha"), "alpha")
	skill, err := s.Install(context.Background(), src, "", skilltypes.LocalSource{Path: src}, "")
	require.NoError(t, err)

	targetPath := filepath.Join(home, ".cursor", "skills", "alpha")
	require.NoError(t, s.UpsertTarget(context.Background(), skilltypes.SyncTarget{
		SkillID:    skill.ID,
		Tool:       "cursor",
		Mode:       skilltypes.ModeCopy,
		TargetPath: targetPath,
	}))

	require.NoError(t, os.WriteFile(filepath.Join(src, "extra.md"), []byte("more\n"), 0o644))

	result, err := s.Update(context.Background(), skill.ID)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Empty(t, result.UpdatedTargets)
	_, err = os.Stat(targetPath)
	assert.True(t, os.IsNotExist(err))
}

func TestUpdateMissingLocalSource(t *testing.T) {
	s, _ := newTestStore(t)
	src := writeSkillDir(t, filepath.Join(t.TempDir(), "alpha"), "alpha")
	skill, err := s.Install(context.Background(), src, "", skilltypes.LocalSource{Path: src}, "")
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(src))
	_, err = s.Update(context.Background(), skill.ID)
	assert.True(t, skillerr.IsValidation(err))
}

func TestSettings(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	assert.Equal(t, 15*time.Minute, s.CacheTTL(ctx, 15*time.Minute))
	require.NoError(t, s.SetCacheTTL(ctx, 45*time.Second))
	assert.Equal(t, 45*time.Second, s.CacheTTL(ctx, 15*time.Minute))

	// The TTL is stored as plain seconds so other frontends read it the
	// same way.
	raw, err := s.GetSetting(ctx, "git_cache_ttl_secs")
	require.NoError(t, err)
	assert.Equal(t, "45", raw)

	assert.Equal(t, 7*24*time.Hour, s.CacheCleanupAge(ctx, 7*24*time.Hour))
	require.NoError(t, s.SetCacheCleanupAge(ctx, 3*24*time.Hour))
	assert.Equal(t, 3*24*time.Hour, s.CacheCleanupAge(ctx, 7*24*time.Hour))

	seen, err := s.SeenTools(ctx)
	require.NoError(t, err)
	assert.Empty(t, seen)

	require.NoError(t, s.RecordSeenTools(ctx, []string{"claude-code", "cursor"}))
	seen, err = s.SeenTools(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"claude-code", "cursor"}, seen)
}

func TestRepoPathSetting(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// Unset override falls back, both through the store and through the
	// pre-store read used at startup.
	override, err := s.RepoPathOverride(ctx)
	require.NoError(t, err)
	assert.Empty(t, override)
	assert.Equal(t, "/fallback", RepoPathSetting(ctx, s.db, "/fallback"))

	require.NoError(t, s.SetRepoPath(ctx, "/custom/skills"))
	assert.Equal(t, "/custom/skills", RepoPathSetting(ctx, s.db, "/fallback"))
}
