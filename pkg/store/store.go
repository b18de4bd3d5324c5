// Package store owns the central skill repository: the on-disk store
// holding the canonical copy of every managed skill, and the SQLite index
// recording skill and sync-target state. Index rows are written only after
// the corresponding filesystem change has succeeded, so a crash leaves the
// index trailing reality rather than ahead of it.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/skillshub/skillshub/pkg/db"
	"github.com/skillshub/skillshub/pkg/gitcache"
)

// RegistryInstaller materializes a registry package into destDir. The
// registry facility itself is an opaque external command; the store only
// needs something that can produce a skill directory from a package ref.
type RegistryInstaller func(ctx context.Context, packageRef, destDir string) error

// Store is the central repository plus its persisted index.
type Store struct {
	db       *sqlx.DB
	repoRoot string
	home     string
	git      *gitcache.Manager
	registry RegistryInstaller
}

// Option configures a Store.
type Option func(*Store)

// WithGitCache attaches the git cache manager used by git-sourced updates.
func WithGitCache(git *gitcache.Manager) Option {
	return func(s *Store) { s.git = git }
}

// WithRegistryInstaller attaches the external registry install command.
func WithRegistryInstaller(installer RegistryInstaller) Option {
	return func(s *Store) { s.registry = installer }
}

// WithHome overrides the home directory used for tool path resolution,
// primarily for tests.
func WithHome(home string) Option {
	return func(s *Store) { s.home = home }
}

// New opens a Store over the given database, rooted at repoRoot.
func New(ctx context.Context, database *sqlx.DB, repoRoot string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(repoRoot, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create repository root %s", repoRoot)
	}

	s := &Store{db: database, repoRoot: repoRoot}
	for _, opt := range opts {
		opt(s)
	}

	if s.home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get home directory")
		}
		s.home = home
	}

	if err := db.Migrate(ctx, database, migrations()); err != nil {
		return nil, err
	}

	return s, nil
}

// RepoRoot returns the repository root directory.
func (s *Store) RepoRoot() string { return s.repoRoot }

// Home returns the home directory used for tool path resolution.
func (s *Store) Home() string { return s.home }

// CentralPathFor returns where a skill with the given name would live.
func (s *Store) CentralPathFor(name string) string {
	return filepath.Join(s.repoRoot, name)
}

func migrations() []db.Migration {
	return []db.Migration{
		{
			Version:     20260115090000,
			Description: "Create skills, skill_targets and settings tables",
			Up: func(tx *sql.Tx) error {
				if _, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS skills (
						id TEXT PRIMARY KEY,
						name TEXT NOT NULL,
						source_type TEXT NOT NULL,
						source_ref TEXT,
						source_revision TEXT,
						central_path TEXT NOT NULL UNIQUE,
						content_hash TEXT,
						created_at INTEGER NOT NULL,
						updated_at INTEGER NOT NULL,
						last_sync_at INTEGER,
						status TEXT NOT NULL,
						metadata TEXT
					)
				`); err != nil {
					return errors.Wrap(err, "failed to create skills table")
				}

				if _, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS skill_targets (
						id TEXT PRIMARY KEY,
						skill_id TEXT NOT NULL,
						tool TEXT NOT NULL,
						target_path TEXT NOT NULL,
						mode TEXT NOT NULL,
						status TEXT NOT NULL,
						synced_at INTEGER,
						UNIQUE(skill_id, tool),
						FOREIGN KEY(skill_id) REFERENCES skills(id) ON DELETE CASCADE
					)
				`); err != nil {
					return errors.Wrap(err, "failed to create skill_targets table")
				}

				if _, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS settings (
						key TEXT PRIMARY KEY,
						value TEXT NOT NULL
					)
				`); err != nil {
					return errors.Wrap(err, "failed to create settings table")
				}

				if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_skills_name ON skills(name)`); err != nil {
					return errors.Wrap(err, "failed to create skills name index")
				}
				return nil
			},
		},
	}
}
