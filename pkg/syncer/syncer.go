// Package syncer reconciles managed skills with tool directories. It owns
// the conflict policy for populated target paths and the propagation rule
// for tools that share a physical skills directory: one filesystem
// operation, one record per sharing tool, so the index never disagrees
// with what a shared directory actually contains.
package syncer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/skillshub/skillshub/pkg/linker"
	"github.com/skillshub/skillshub/pkg/logger"
	"github.com/skillshub/skillshub/pkg/skillerr"
	"github.com/skillshub/skillshub/pkg/store"
	"github.com/skillshub/skillshub/pkg/tools"
	skilltypes "github.com/skillshub/skillshub/pkg/types/skills"
)

// Reconciler applies sync and unsync operations against the store.
type Reconciler struct {
	store *store.Store
}

// New creates a Reconciler over the given store.
func New(st *store.Store) *Reconciler {
	return &Reconciler{store: st}
}

// SyncToTool materializes a skill inside a tool's skills directory and
// records the target for every tool sharing that directory. Re-syncing a
// target the engine already owns is idempotent. A foreign entry at the
// target path fails with a conflict unless overwrite is set.
func (r *Reconciler) SyncToTool(ctx context.Context, skillID, toolKey string, overwrite bool) (*skilltypes.ManagedSkill, error) {
	tool, err := tools.Resolve(toolKey)
	if err != nil {
		return nil, err
	}
	skill, err := r.store.Get(ctx, skillID)
	if err != nil {
		return nil, err
	}

	targetPath := filepath.Join(tool.SkillsPath(r.store.Home()), skill.Name)

	mode, performed, err := r.materialize(skill, tool, targetPath, overwrite)
	if err != nil {
		return nil, err
	}

	shared := tools.SharedWith(tool)
	for _, st := range shared {
		if err := r.store.UpsertTarget(ctx, skilltypes.SyncTarget{
			SkillID:    skill.ID,
			Tool:       st.Key,
			Mode:       mode,
			TargetPath: targetPath,
		}); err != nil {
			return nil, err
		}
	}

	logger.G(ctx).WithFields(map[string]interface{}{
		"skill":     skill.Name,
		"tool":      tool.Key,
		"mode":      string(mode),
		"performed": performed,
		"records":   len(shared),
	}).Info("synced skill to tool")

	return r.store.Get(ctx, skillID)
}

// materialize puts the skill on disk at targetPath and reports the mode
// that landed plus whether a filesystem operation was actually performed.
func (r *Reconciler) materialize(skill *skilltypes.ManagedSkill, tool tools.Tool, targetPath string, overwrite bool) (skilltypes.SyncMode, bool, error) {
	info, err := os.Lstat(targetPath)
	switch {
	case err == nil && info.Mode()&os.ModeSymlink != 0:
		if resolved, rerr := filepath.EvalSymlinks(targetPath); rerr == nil {
			if central, cerr := filepath.EvalSymlinks(skill.CentralPath); cerr == nil && resolved == central && !tool.ForceCopy {
				return skilltypes.ModeSymlink, false, nil
			}
		}
		if !overwrite {
			return "", false, skillerr.NewTargetExists(targetPath)
		}
		if err := linker.Remove(targetPath, skilltypes.ModeSymlink); err != nil {
			return "", false, err
		}
	case err == nil:
		// A real directory or file. A copy we made earlier is
		// indistinguishable from a foreign entry, so only overwrite
		// replaces it.
		if !overwrite {
			return "", false, skillerr.NewTargetExists(targetPath)
		}
		if err := linker.Remove(targetPath, skilltypes.ModeCopy); err != nil {
			return "", false, err
		}
	}

	mode, err := linker.Link(skill.CentralPath, targetPath, tool.ForceCopy)
	if err != nil {
		return "", false, err
	}
	return mode, true, nil
}

// UnsyncFromTool removes a skill from a tool directory. The physical entry
// disappears once, and the records of every tool sharing the directory are
// dropped with it. Unsyncing a tool with no record is a no-op.
func (r *Reconciler) UnsyncFromTool(ctx context.Context, skillID, toolKey string) error {
	tool, err := tools.Resolve(toolKey)
	if err != nil {
		return err
	}
	skill, err := r.store.Get(ctx, skillID)
	if err != nil {
		return err
	}

	var target *skilltypes.SyncTarget
	for i := range skill.Targets {
		if skill.Targets[i].Tool == tool.Key {
			target = &skill.Targets[i]
			break
		}
	}
	if target == nil {
		return nil
	}

	if err := linker.Remove(target.TargetPath, target.Mode); err != nil {
		return err
	}

	for _, st := range tools.SharedWith(tool) {
		if err := r.store.DeleteTarget(ctx, skill.ID, st.Key); err != nil {
			return err
		}
	}

	logger.G(ctx).WithFields(map[string]interface{}{
		"skill": skill.Name,
		"tool":  tool.Key,
	}).Info("unsynced skill from tool")
	return nil
}

// SyncToTools fans a skill out to several tools best-effort: one tool
// failing never aborts the rest.
func (r *Reconciler) SyncToTools(ctx context.Context, skillID string, toolKeys []string, overwrite bool) *skilltypes.BatchResult {
	result := &skilltypes.BatchResult{}
	for _, key := range toolKeys {
		_, err := r.SyncToTool(ctx, skillID, key, overwrite)
		result.Add(key, err)
	}
	return result
}

// UnsyncAll detaches every recorded target of a skill, best-effort. It is
// the teardown half of delete: the caller removes the central copy only
// after this reports zero failures.
func (r *Reconciler) UnsyncAll(ctx context.Context, skillID string) (*skilltypes.BatchResult, error) {
	skill, err := r.store.Get(ctx, skillID)
	if err != nil {
		return nil, err
	}

	result := &skilltypes.BatchResult{}
	seen := make(map[string]bool)
	for _, target := range skill.Targets {
		if seen[target.Tool] {
			continue
		}
		// UnsyncFromTool drops records of directory-sharing tools too.
		for _, st := range toolsSharing(target.Tool) {
			seen[st] = true
		}
		result.Add(target.Tool, r.UnsyncFromTool(ctx, skillID, target.Tool))
	}
	return result, nil
}

func toolsSharing(key string) []string {
	tool, err := tools.Resolve(key)
	if err != nil {
		return []string{key}
	}
	var out []string
	for _, st := range tools.SharedWith(tool) {
		out = append(out, st.Key)
	}
	return out
}
