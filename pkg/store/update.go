package store

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/skillshub/skillshub/pkg/fingerprint"
	"github.com/skillshub/skillshub/pkg/linker"
	"github.com/skillshub/skillshub/pkg/logger"
	"github.com/skillshub/skillshub/pkg/manifest"
	"github.com/skillshub/skillshub/pkg/skillerr"
	"github.com/skillshub/skillshub/pkg/tools"
	skilltypes "github.com/skillshub/skillshub/pkg/types/skills"
)

// Update refreshes a managed skill from its recorded source. When the
// fetched content hashes identically to the central copy the operation is
// a no-op. Otherwise the central directory is replaced through a staged
// swap and every copy-mode target of an installed tool is re-copied;
// symlinked targets observe the new content without any work here.
func (s *Store) Update(ctx context.Context, id string) (*skilltypes.UpdateResult, error) {
	skill, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	srcDir, revision, cleanup, err := s.resolveSource(ctx, skill)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	if _, err := manifest.ParseDir(srcDir); err != nil {
		return nil, err
	}

	newHash, err := fingerprint.HashDir(srcDir)
	if err != nil {
		return nil, err
	}

	result := &skilltypes.UpdateResult{
		SkillID:        skill.ID,
		Name:           skill.Name,
		ContentHash:    newHash,
		SourceRevision: revision,
	}

	if newHash == skill.ContentHash {
		logger.G(ctx).WithField("skill", skill.Name).Debug("skill already up to date")
		return result, nil
	}

	if err := linker.CopyTree(srcDir, skill.CentralPath, true); err != nil {
		return nil, errors.Wrapf(err, "failed to update %s", skill.Name)
	}
	result.Changed = true

	now := time.Now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		UPDATE skills SET content_hash = ?, source_revision = ?, updated_at = ?, metadata = ?
		WHERE id = ?
	`, newHash, nullable(revision), now, metadataJSON(manifest.LoadMetadata(skill.CentralPath)), id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update skill record")
	}

	for _, target := range skill.Targets {
		tool, terr := tools.Resolve(target.Tool)
		if terr != nil {
			continue
		}
		if target.Mode != skilltypes.ModeCopy && !tool.ForceCopy {
			continue
		}
		if !tool.IsInstalled(s.home) {
			logger.G(ctx).WithFields(map[string]interface{}{
				"skill": skill.Name,
				"tool":  tool.Key,
			}).Debug("skipping copy refresh for uninstalled tool")
			continue
		}

		if err := linker.CopyTree(skill.CentralPath, target.TargetPath, true); err != nil {
			logger.G(ctx).WithError(err).WithFields(map[string]interface{}{
				"skill": skill.Name,
				"tool":  tool.Key,
			}).Warn("failed to refresh copied target")
			continue
		}
		if err := s.UpsertTarget(ctx, skilltypes.SyncTarget{
			SkillID:    skill.ID,
			Tool:       tool.Key,
			Mode:       skilltypes.ModeCopy,
			TargetPath: target.TargetPath,
		}); err != nil {
			return nil, err
		}
		result.UpdatedTargets = append(result.UpdatedTargets, tool.Key)
	}

	return result, nil
}

// resolveSource materializes the skill's source into a readable directory.
// The returned cleanup, when non-nil, removes temporary state.
func (s *Store) resolveSource(ctx context.Context, skill *skilltypes.ManagedSkill) (string, string, func(), error) {
	switch src := skill.Source.(type) {
	case skilltypes.GitSource:
		if s.git == nil {
			return "", "", nil, errors.New("git cache not configured")
		}
		dir, head, err := s.git.Export(ctx, src.RepoURL, "")
		if err != nil {
			return "", "", nil, err
		}
		return dir, head, nil, nil

	case skilltypes.LocalSource:
		info, err := os.Stat(src.Path)
		if err != nil || !info.IsDir() {
			return "", "", nil, skillerr.NewValidation(skillerr.ReasonSourceMissing, src.Path)
		}
		return src.Path, "", nil, nil

	case skilltypes.RegistrySource:
		if s.registry == nil {
			return "", "", nil, errors.New("registry installer not configured")
		}
		tmp, err := os.MkdirTemp("", "skillshub-registry-")
		if err != nil {
			return "", "", nil, errors.Wrap(err, "failed to create temp directory")
		}
		if err := s.registry(ctx, src.PackageRef, tmp); err != nil {
			os.RemoveAll(tmp)
			return "", "", nil, err
		}
		return tmp, "", func() { os.RemoveAll(tmp) }, nil

	default:
		return "", "", nil, skillerr.NewValidation(skillerr.ReasonUnsupportedSource, skill.SourceRef)
	}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
