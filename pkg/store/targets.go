package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	skilltypes "github.com/skillshub/skillshub/pkg/types/skills"
)

// UpsertTarget records that a skill is synced into a tool directory.
// The (skill_id, tool) pair is unique, so a repeated sync with a new
// mode or path replaces the previous record.
func (s *Store) UpsertTarget(ctx context.Context, target skilltypes.SyncTarget) error {
	syncedAt := time.Now().UnixMilli()
	if target.SyncedAt != nil {
		syncedAt = target.SyncedAt.UnixMilli()
	}
	status := target.Status
	if status == "" {
		status = StatusOK
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO skill_targets (id, skill_id, tool, target_path, mode, status, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(skill_id, tool) DO UPDATE SET
			target_path = excluded.target_path,
			mode = excluded.mode,
			status = excluded.status,
			synced_at = excluded.synced_at
	`, uuid.New().String(), target.SkillID, target.Tool, target.TargetPath, string(target.Mode), status, syncedAt)
	if err != nil {
		return errors.Wrapf(err, "failed to upsert target %s/%s", target.SkillID, target.Tool)
	}

	return s.TouchLastSync(ctx, target.SkillID)
}

// DeleteTarget removes the sync record for a skill and tool. Deleting a
// record that does not exist is not an error.
func (s *Store) DeleteTarget(ctx context.Context, skillID, tool string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM skill_targets WHERE skill_id = ? AND tool = ?`, skillID, tool)
	if err != nil {
		return errors.Wrapf(err, "failed to delete target %s/%s", skillID, tool)
	}
	return nil
}

// ListTargets returns the sync targets of one skill, ordered by tool key.
func (s *Store) ListTargets(ctx context.Context, skillID string) ([]skilltypes.SyncTarget, error) {
	var rows []targetRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM skill_targets WHERE skill_id = ? ORDER BY tool`, skillID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list targets")
	}

	out := make([]skilltypes.SyncTarget, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// AllTargetPaths returns every recorded target path across all skills.
// The onboarding scan uses it to exclude directories the engine already
// manages.
func (s *Store) AllTargetPaths(ctx context.Context) ([]string, error) {
	var paths []string
	if err := s.db.SelectContext(ctx, &paths, `SELECT target_path FROM skill_targets`); err != nil {
		return nil, errors.Wrap(err, "failed to list target paths")
	}
	return paths, nil
}

// TouchLastSync bumps a skill's last_sync_at to now.
func (s *Store) TouchLastSync(ctx context.Context, skillID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE skills SET last_sync_at = ? WHERE id = ?`, time.Now().UnixMilli(), skillID)
	if err != nil {
		return errors.Wrap(err, "failed to update last sync time")
	}
	return nil
}
