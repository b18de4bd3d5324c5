package onboarding

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
	"github.com/skillshub/skillshub/pkg/syncer"
	"github.com/skillshub/skillshub/pkg/tools"
	skilltypes "github.com/skillshub/skillshub/pkg/types/skills"
)

func newTestScanner(t *testing.T) (*Scanner, *store.Store, string) {
	t.Helper()
	base := t.TempDir()
	home := filepath.Join(base, "home")
	require.NoError(t, os.MkdirAll(home, 0o755))

	database, err := db.Open(context.Background(), filepath.Join(base, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	st, err := store.New(context.Background(), database, filepath.Join(base, "skills"), store.WithHome(home))
	require.NoError(t, err)
	return New(st, syncer.New(st)), st, home
}

// plantSkill drops a loose skill tree directly into a tool's skills dir,
// the way a user who never ran the engine would have.
func plantSkill(t *testing.T, home, toolKey, name, body string) string {
	t.Helper()
	tool, err := tools.Resolve(toolKey)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(tool.DetectPath(home), 0o755))

	dir := filepath.Join(tool.SkillsPath(home), name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := "---\nname: " + name + "\ndescription: d\n---\n" + body
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644))
	return dir
}

func TestBuildPlanFindsLooseSkills(t *testing.T) {
	s, _, home := newTestScanner(t)
	plantSkill(t, home, "claude-code", "alpha", "same\n")
	plantSkill(t, home, "codex", "alpha", "same\n")
	plantSkill(t, home, "claude-code", "beta", "only here\n")

	plan, err := s.BuildPlan(context.Background())
	require.NoError(t, err)
	require.Len(t, plan.Candidates, 2)
	assert.Equal(t, 2, plan.TotalToolsScanned)
	assert.Equal(t, 3, plan.TotalSkillsFound)

	alpha := plan.Candidates[0]
	assert.Equal(t, "alpha", alpha.Name)
	assert.False(t, alpha.Conflict)
	require.Len(t, alpha.Variants, 2)
	assert.Equal(t, "claude-code", alpha.Variants[0].Tool)
	assert.Equal(t, "codex", alpha.Variants[1].Tool)
	assert.Equal(t, alpha.Variants[0].Fingerprint, alpha.Variants[1].Fingerprint)
	assert.False(t, alpha.Variants[0].IsLink)

	beta := plan.Candidates[1]
	assert.Equal(t, "beta", beta.Name)
	require.Len(t, beta.Variants, 1)
}

func TestBuildPlanFlagsContentConflict(t *testing.T) {
	s, _, home := newTestScanner(t)
	plantSkill(t, home, "claude-code", "alpha", "version one\n")
	plantSkill(t, home, "codex", "alpha", "version two\n")

	plan, err := s.BuildPlan(context.Background())
	require.NoError(t, err)
	require.Len(t, plan.Candidates, 1)
	assert.True(t, plan.Candidates[0].Conflict)
}

func TestBuildPlanExcludesManaged(t *testing.T) {
	s, st, home := newTestScanner(t)

	src := plantSkill(t, home, "claude-code", "alpha", "body\n")
	skill, err := st.Install(context.Background(), src, "", skilltypes.LocalSource{Path: src}, "")
	require.NoError(t, err)
	_, err = syncer.New(st).SyncToTool(context.Background(), skill.ID, "claude-code", true)
	require.NoError(t, err)

	// A same-name loose copy in another tool is excluded by name.
	plantSkill(t, home, "codex", "alpha", "divergent copy\n")

	plan, err := s.BuildPlan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, plan.Candidates)
}

func TestBuildPlanIsPureRead(t *testing.T) {
	s, st, home := newTestScanner(t)
	dir := plantSkill(t, home, "claude-code", "alpha", "body\n")

	_, err := s.BuildPlan(context.Background())
	require.NoError(t, err)

	// Nothing was installed or moved.
	skills, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, skills)
	info, err := os.Lstat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestAdoptRelinksAllVariants(t *testing.T) {
	s, st, home := newTestScanner(t)
	claudeDir := plantSkill(t, home, "claude-code", "alpha", "same\n")
	codexDir := plantSkill(t, home, "codex", "alpha", "same\n")

	skill, result, err := s.Adopt(context.Background(), "alpha", "")
	require.NoError(t, err)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 2, result.Succeeded)

	assert.FileExists(t, filepath.Join(skill.CentralPath, "SKILL.md"))

	for _, dir := range []string{claudeDir, codexDir} {
		info, err := os.Lstat(dir)
		require.NoError(t, err)
		assert.NotZero(t, info.Mode()&os.ModeSymlink, "loose copy should be replaced by a link")
	}

	got, err := st.Get(context.Background(), skill.ID)
	require.NoError(t, err)
	assert.Len(t, got.Targets, 2)
}

func TestAdoptSymlinkedVariant(t *testing.T) {
	s, _, home := newTestScanner(t)

	tool, err := tools.Resolve("claude-code")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(tool.DetectPath(home), 0o755))
	require.NoError(t, os.MkdirAll(tool.SkillsPath(home), 0o755))

	// A user-made symlink into the tool directory, pointing at a tree the
	// engine knows nothing about.
	real := filepath.Join(t.TempDir(), "alpha")
	require.NoError(t, os.MkdirAll(real, 0o755))
	content := "---\nname: alpha\ndescription: d\n---\nbody\n"
	require.NoError(t, os.WriteFile(filepath.Join(real, "SKILL.md"), []byte(content), 0o644))
	link := filepath.Join(tool.SkillsPath(home), "alpha")
	require.NoError(t, os.Symlink(real, link))

	plan, err := s.BuildPlan(context.Background())
	require.NoError(t, err)
	require.Len(t, plan.Candidates, 1)
	require.Len(t, plan.Candidates[0].Variants, 1)
	variant := plan.Candidates[0].Variants[0]
	assert.True(t, variant.IsLink)
	resolvedReal, err := filepath.EvalSymlinks(real)
	require.NoError(t, err)
	assert.Equal(t, resolvedReal, variant.LinkTarget)

	skill, result, err := s.Adopt(context.Background(), "alpha", "")
	require.NoError(t, err)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 1, result.Succeeded)

	// The central copy is an independent tree, never a link back into the
	// user's directory.
	info, err := os.Lstat(skill.CentralPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Zero(t, info.Mode()&os.ModeSymlink)
	assert.FileExists(t, filepath.Join(skill.CentralPath, "SKILL.md"))

	// The tool entry now resolves to the central copy.
	resolvedLink, err := filepath.EvalSymlinks(link)
	require.NoError(t, err)
	resolvedCentral, err := filepath.EvalSymlinks(skill.CentralPath)
	require.NoError(t, err)
	assert.Equal(t, resolvedCentral, resolvedLink)
}

func TestAdoptConflictRequiresChoice(t *testing.T) {
	s, _, home := newTestScanner(t)
	plantSkill(t, home, "claude-code", "alpha", "version one\n")
	codexDir := plantSkill(t, home, "codex", "alpha", "version two\n")

	_, _, err := s.Adopt(context.Background(), "alpha", "")
	assert.True(t, skillerr.IsValidation(err))

	skill, result, err := s.Adopt(context.Background(), "alpha", "codex")
	require.NoError(t, err)
	assert.Zero(t, result.Failed)

	// The winning content is codex's version.
	data, err := os.ReadFile(filepath.Join(skill.CentralPath, "SKILL.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "version two")

	info, err := os.Lstat(codexDir)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink)
}

func TestAdoptAll(t *testing.T) {
	s, _, home := newTestScanner(t)
	plantSkill(t, home, "claude-code", "alpha", "same\n")
	plantSkill(t, home, "claude-code", "beta", "one\n")
	plantSkill(t, home, "codex", "beta", "two\n")

	result, err := s.AdoptAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
}

func TestAdoptUnknownName(t *testing.T) {
	s, _, _ := newTestScanner(t)
	_, _, err := s.Adopt(context.Background(), "nope", "")
	assert.True(t, skillerr.IsNotFound(err))
}
