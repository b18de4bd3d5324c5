package syncer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillshub/skillshub/pkg/db"
	"github.com/skillshub/skillshub/pkg/skillerr"
	"github.com/skillshub/skillshub/pkg/store"
	skilltypes "github.com/skillshub/skillshub/pkg/types/skills"
)

func newTestReconciler(t *testing.T) (*Reconciler, *store.Store, string) {
	t.Helper()
	base := t.TempDir()
	home := filepath.Join(base, "home")
	require.NoError(t, os.MkdirAll(home, 0o755))

	database, err := db.Open(context.Background(), filepath.Join(base, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	st, err := store.New(context.Background(), database, filepath.Join(base, "skills"), store.WithHome(home))
	require.NoError(t, err)
	return New(st), st, home
}

func installSkill(t *testing.T, st *store.Store, name string) *skilltypes.ManagedSkill {
	t.Helper()
	src := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(src, 0o755))
	content := "---\nname: " + name + "\ndescription: d\n---\nbody\n"
	require.NoError(t, os.WriteFile(filepath.Join(src, "SKILL.md"), []byte(content), 0o644))

	skill, err := st.Install(context.Background(), src, "", skilltypes.LocalSource{Path: src}, "")
	require.NoError(t, err)
	return skill
}

func TestSyncToToolSymlink(t *testing.T) {
	r, st, home := newTestReconciler(t)
	skill := installSkill(t, st, "alpha")

	synced, err := r.SyncToTool(context.Background(), skill.ID, "claude-code", false)
	require.NoError(t, err)
	require.Len(t, synced.Targets, 1)
	assert.Equal(t, skilltypes.ModeSymlink, synced.Targets[0].Mode)

	targetPath := filepath.Join(home, ".claude", "skills", "alpha")
	info, err := os.Lstat(targetPath)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink)

	resolved, err := filepath.EvalSymlinks(targetPath)
	require.NoError(t, err)
	central, err := filepath.EvalSymlinks(skill.CentralPath)
	require.NoError(t, err)
	assert.Equal(t, central, resolved)
}

func TestSyncToToolIdempotent(t *testing.T) {
	r, st, _ := newTestReconciler(t)
	skill := installSkill(t, st, "alpha")

	_, err := r.SyncToTool(context.Background(), skill.ID, "claude-code", false)
	require.NoError(t, err)

	// Re-syncing our own symlink must not conflict.
	synced, err := r.SyncToTool(context.Background(), skill.ID, "claude-code", false)
	require.NoError(t, err)
	assert.Len(t, synced.Targets, 1)
}

func TestSyncToToolForcedCopy(t *testing.T) {
	r, st, home := newTestReconciler(t)
	skill := installSkill(t, st, "alpha")

	synced, err := r.SyncToTool(context.Background(), skill.ID, "cursor", false)
	require.NoError(t, err)
	require.Len(t, synced.Targets, 1)
	assert.Equal(t, skilltypes.ModeCopy, synced.Targets[0].Mode)

	targetPath := filepath.Join(home, ".cursor", "skills", "alpha")
	info, err := os.Lstat(targetPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.FileExists(t, filepath.Join(targetPath, "SKILL.md"))
}

func TestSyncToToolConflict(t *testing.T) {
	r, st, home := newTestReconciler(t)
	skill := installSkill(t, st, "alpha")

	// A foreign directory already occupies the target path.
	foreign := filepath.Join(home, ".claude", "skills", "alpha")
	require.NoError(t, os.MkdirAll(foreign, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(foreign, "other.md"), []byte("x"), 0o644))

	_, err := r.SyncToTool(context.Background(), skill.ID, "claude-code", false)
	assert.True(t, skillerr.IsConflict(err))
	// The foreign content survives a refused sync.
	assert.FileExists(t, filepath.Join(foreign, "other.md"))

	synced, err := r.SyncToTool(context.Background(), skill.ID, "claude-code", true)
	require.NoError(t, err)
	assert.Len(t, synced.Targets, 1)

	_, err = os.Stat(filepath.Join(foreign, "other.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestSharedDirectoryPropagation(t *testing.T) {
	r, st, home := newTestReconciler(t)
	skill := installSkill(t, st, "alpha")

	synced, err := r.SyncToTool(context.Background(), skill.ID, "opencode", false)
	require.NoError(t, err)

	// opencode and crush share one skills directory, so one sync yields
	// two records over the same path.
	require.Len(t, synced.Targets, 2)
	keys := []string{synced.Targets[0].Tool, synced.Targets[1].Tool}
	assert.ElementsMatch(t, []string{"opencode", "crush"}, keys)
	assert.Equal(t, synced.Targets[0].TargetPath, synced.Targets[1].TargetPath)

	sharedPath := filepath.Join(home, ".config", "agents", "skills", "alpha")
	_, err = os.Lstat(sharedPath)
	require.NoError(t, err)

	// Unsyncing through either tool drops the entry and both records.
	require.NoError(t, r.UnsyncFromTool(context.Background(), skill.ID, "crush"))
	_, err = os.Lstat(sharedPath)
	assert.True(t, os.IsNotExist(err))

	after, err := st.Get(context.Background(), skill.ID)
	require.NoError(t, err)
	assert.Empty(t, after.Targets)
}

func TestUnsyncMissingTargetIsNoop(t *testing.T) {
	r, st, _ := newTestReconciler(t)
	skill := installSkill(t, st, "alpha")

	assert.NoError(t, r.UnsyncFromTool(context.Background(), skill.ID, "claude-code"))
}

func TestUnsyncSymlinkKeepsCentral(t *testing.T) {
	r, st, _ := newTestReconciler(t)
	skill := installSkill(t, st, "alpha")

	_, err := r.SyncToTool(context.Background(), skill.ID, "claude-code", false)
	require.NoError(t, err)
	require.NoError(t, r.UnsyncFromTool(context.Background(), skill.ID, "claude-code"))

	assert.FileExists(t, filepath.Join(skill.CentralPath, "SKILL.md"))
}

func TestSyncToToolsBestEffort(t *testing.T) {
	r, st, home := newTestReconciler(t)
	skill := installSkill(t, st, "alpha")

	// Occupy one target so that item fails while the other succeeds.
	foreign := filepath.Join(home, ".claude", "skills", "alpha")
	require.NoError(t, os.MkdirAll(foreign, 0o755))

	result := r.SyncToTools(context.Background(), skill.ID, []string{"claude-code", "codex"}, false)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Items, 2)
	assert.NotEmpty(t, result.Items[0].Error)
	assert.Empty(t, result.Items[1].Error)
}

func TestUnsyncAll(t *testing.T) {
	r, st, _ := newTestReconciler(t)
	skill := installSkill(t, st, "alpha")

	_, err := r.SyncToTool(context.Background(), skill.ID, "claude-code", false)
	require.NoError(t, err)
	_, err = r.SyncToTool(context.Background(), skill.ID, "opencode", false)
	require.NoError(t, err)

	result, err := r.UnsyncAll(context.Background(), skill.ID)
	require.NoError(t, err)
	assert.Zero(t, result.Failed)
	// The shared opencode/crush pair counts once.
	assert.Equal(t, 2, result.Succeeded)

	after, err := st.Get(context.Background(), skill.ID)
	require.NoError(t, err)
	assert.Empty(t, after.Targets)
}
