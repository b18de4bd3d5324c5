package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	skilltypes "github.com/skillshub/skillshub/pkg/types/skills"
)

// skillRow is the skills table shape. Timestamps are unix milliseconds.
type skillRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	SourceType     string         `db:"source_type"`
	SourceRef      sql.NullString `db:"source_ref"`
	SourceRevision sql.NullString `db:"source_revision"`
	CentralPath    string         `db:"central_path"`
	ContentHash    sql.NullString `db:"content_hash"`
	CreatedAt      int64          `db:"created_at"`
	UpdatedAt      int64          `db:"updated_at"`
	LastSyncAt     sql.NullInt64  `db:"last_sync_at"`
	Status         string         `db:"status"`
	Metadata       sql.NullString `db:"metadata"`
}

type targetRow struct {
	ID         string        `db:"id"`
	SkillID    string        `db:"skill_id"`
	Tool       string        `db:"tool"`
	TargetPath string        `db:"target_path"`
	Mode       string        `db:"mode"`
	Status     string        `db:"status"`
	SyncedAt   sql.NullInt64 `db:"synced_at"`
}

func (r skillRow) toDomain() (*skilltypes.ManagedSkill, error) {
	source, err := skilltypes.DecodeSource(r.SourceType, r.SourceRef.String)
	if err != nil {
		return nil, errors.Wrapf(err, "skill %s has a corrupt source", r.ID)
	}

	skill := &skilltypes.ManagedSkill{
		ID:             r.ID,
		Name:           r.Name,
		Source:         source,
		SourceKind:     source.Kind(),
		SourceRef:      r.SourceRef.String,
		SourceRevision: r.SourceRevision.String,
		CentralPath:    r.CentralPath,
		ContentHash:    r.ContentHash.String,
		CreatedAt:      time.UnixMilli(r.CreatedAt),
		UpdatedAt:      time.UnixMilli(r.UpdatedAt),
		Status:         r.Status,
	}

	if r.LastSyncAt.Valid {
		t := time.UnixMilli(r.LastSyncAt.Int64)
		skill.LastSyncAt = &t
	}

	if r.Metadata.Valid && r.Metadata.String != "" {
		var m skilltypes.Metadata
		if err := json.Unmarshal([]byte(r.Metadata.String), &m); err == nil {
			skill.Metadata = &m
		}
	}

	return skill, nil
}

func (r targetRow) toDomain() skilltypes.SyncTarget {
	target := skilltypes.SyncTarget{
		SkillID:    r.SkillID,
		Tool:       r.Tool,
		Mode:       skilltypes.SyncMode(r.Mode),
		Status:     r.Status,
		TargetPath: r.TargetPath,
	}
	if r.SyncedAt.Valid {
		t := time.UnixMilli(r.SyncedAt.Int64)
		target.SyncedAt = &t
	}
	return target
}

func metadataJSON(m *skilltypes.Metadata) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}
