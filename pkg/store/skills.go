package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/skillshub/skillshub/pkg/fingerprint"
	"github.com/skillshub/skillshub/pkg/linker"
	"github.com/skillshub/skillshub/pkg/logger"
	"github.com/skillshub/skillshub/pkg/manifest"
	"github.com/skillshub/skillshub/pkg/skillerr"
	skilltypes "github.com/skillshub/skillshub/pkg/types/skills"
)

// StatusOK is the steady-state status of a healthy skill or target.
const StatusOK = "ok"

// Install copies srcDir into a fresh directory under the repository root
// and persists a new managed skill. The manifest must be present and
// parseable. Name uniqueness is case-insensitive.
func (s *Store) Install(ctx context.Context, srcDir, name string, source skilltypes.Source, revision string) (*skilltypes.ManagedSkill, error) {
	mf, err := manifest.ParseDir(srcDir)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = mf.Name
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	existing, err := s.GetByName(ctx, name)
	if err != nil && !skillerr.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, skillerr.NewAlreadyExists(name)
	}

	centralPath := s.CentralPathFor(name)
	if _, err := os.Lstat(centralPath); err == nil {
		return nil, skillerr.NewAlreadyExists(name)
	}

	if err := linker.CopyTree(srcDir, centralPath, false); err != nil {
		return nil, errors.Wrapf(err, "failed to copy %s into repository", srcDir)
	}

	hash, err := fingerprint.HashDir(centralPath)
	if err != nil {
		os.RemoveAll(centralPath)
		return nil, err
	}

	now := time.Now().UnixMilli()
	row := skillRow{
		ID:          uuid.New().String(),
		Name:        name,
		SourceType:  string(source.Kind()),
		SourceRef:   sql.NullString{String: source.Ref(), Valid: source.Ref() != ""},
		CentralPath: centralPath,
		ContentHash: sql.NullString{String: hash, Valid: true},
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      StatusOK,
		Metadata:    metadataJSON(manifest.LoadMetadata(centralPath)),
	}
	if revision != "" {
		row.SourceRevision = sql.NullString{String: revision, Valid: true}
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO skills (id, name, source_type, source_ref, source_revision, central_path,
			content_hash, created_at, updated_at, last_sync_at, status, metadata)
		VALUES (:id, :name, :source_type, :source_ref, :source_revision, :central_path,
			:content_hash, :created_at, :updated_at, :last_sync_at, :status, :metadata)
	`, row)
	if err != nil {
		os.RemoveAll(centralPath)
		return nil, errors.Wrap(err, "failed to insert skill record")
	}

	logger.G(ctx).WithFields(map[string]interface{}{
		"skill": name,
		"id":    row.ID,
	}).Info("installed skill into central repository")

	return s.Get(ctx, row.ID)
}

// InstallRegistry stages a registry package through the configured
// external installer and imports the staged directory. The staging dir is
// always removed; the central copy is the only surviving tree.
func (s *Store) InstallRegistry(ctx context.Context, packageRef, name string) (*skilltypes.ManagedSkill, error) {
	if s.registry == nil {
		return nil, skillerr.NewValidation(skillerr.ReasonUnsupportedSource, "no registry installer configured")
	}

	stage, err := os.MkdirTemp("", "skillshub-registry-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create registry staging directory")
	}
	defer os.RemoveAll(stage)

	if err := s.registry(ctx, packageRef, stage); err != nil {
		return nil, errors.Wrapf(err, "registry install of %s failed", packageRef)
	}

	return s.Install(ctx, stage, name, skilltypes.RegistrySource{PackageRef: packageRef}, "")
}

// Get returns a managed skill with its sync targets.
func (s *Store) Get(ctx context.Context, id string) (*skilltypes.ManagedSkill, error) {
	var row skillRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM skills WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, skillerr.NewNotFound("skill", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query skill")
	}

	skill, err := row.toDomain()
	if err != nil {
		return nil, err
	}

	targets, err := s.ListTargets(ctx, id)
	if err != nil {
		return nil, err
	}
	skill.Targets = targets
	return skill, nil
}

// GetByName returns a managed skill by case-insensitive name.
func (s *Store) GetByName(ctx context.Context, name string) (*skilltypes.ManagedSkill, error) {
	var row skillRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM skills WHERE LOWER(name) = LOWER(?) LIMIT 1`, name)
	if err == sql.ErrNoRows {
		return nil, skillerr.NewNotFound("skill", name)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query skill by name")
	}

	skill, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	targets, err := s.ListTargets(ctx, skill.ID)
	if err != nil {
		return nil, err
	}
	skill.Targets = targets
	return skill, nil
}

// List returns every managed skill with targets, most recently updated first.
func (s *Store) List(ctx context.Context) ([]skilltypes.ManagedSkill, error) {
	var rows []skillRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM skills ORDER BY updated_at DESC`); err != nil {
		return nil, errors.Wrap(err, "failed to list skills")
	}

	out := make([]skilltypes.ManagedSkill, 0, len(rows))
	for _, row := range rows {
		skill, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		targets, err := s.ListTargets(ctx, skill.ID)
		if err != nil {
			return nil, err
		}
		skill.Targets = targets
		out = append(out, *skill)
	}
	return out, nil
}

// Remove deletes the central directory and then the index row. Callers
// must have detached every sync target first; the row is kept whenever
// the filesystem removal fails so the skill never silently leaks.
func (s *Store) Remove(ctx context.Context, id string) error {
	skill, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if isUnder(skill.CentralPath, s.repoRoot) {
		if err := os.RemoveAll(skill.CentralPath); err != nil {
			return errors.Wrapf(err, "failed to remove %s", skill.CentralPath)
		}
	} else {
		logger.G(ctx).WithField("path", skill.CentralPath).
			Warn("central path outside repository root, skipping filesystem removal")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM skills WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "failed to delete skill record")
	}
	return nil
}

// validateName rejects skill names that would escape the repository root
// or a tool directory when joined into a path. The name comes from
// untrusted manifest frontmatter, so separators and dot segments are
// refused rather than cleaned.
func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
	case strings.ContainsAny(name, `/\`):
	case !filepath.IsLocal(name):
	default:
		return nil
	}
	return skillerr.NewValidation(skillerr.ReasonInvalidName, name)
}

func isUnder(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return filepath.IsLocal(rel)
}
