// Package skills defines the shared data model for the central skill
// repository: managed skills, sync targets, import candidates, and the
// batch result type used by fan-out operations.
package skills

import (
	"time"

	"github.com/pkg/errors"
)

// SyncMode describes how a skill is materialized inside a tool directory.
type SyncMode string

const (
	// ModeSymlink means the target resolves to the central copy.
	ModeSymlink SyncMode = "symlink"
	// ModeCopy means the target is an independent tree refreshed on update.
	ModeCopy SyncMode = "copy"
)

// SourceKind tags the origin of a managed skill.
type SourceKind string

const (
	SourceLocal    SourceKind = "local"
	SourceGit      SourceKind = "git"
	SourceRegistry SourceKind = "registry"
)

// Source is the tagged variant describing where a skill came from.
// Exactly three implementations exist; consumers switch on the concrete
// type so new variants fail loudly at the switch sites.
type Source interface {
	Kind() SourceKind
	Ref() string
}

// LocalSource is a skill imported from a local directory.
type LocalSource struct {
	Path string
}

func (s LocalSource) Kind() SourceKind { return SourceLocal }
func (s LocalSource) Ref() string      { return s.Path }

// GitSource is a skill imported from a remote git repository.
type GitSource struct {
	RepoURL string
}

func (s GitSource) Kind() SourceKind { return SourceGit }
func (s GitSource) Ref() string      { return s.RepoURL }

// RegistrySource is a skill installed through the external registry command.
type RegistrySource struct {
	PackageRef string
}

func (s RegistrySource) Kind() SourceKind { return SourceRegistry }
func (s RegistrySource) Ref() string      { return s.PackageRef }

// DecodeSource reconstructs a Source from its persisted kind and ref.
func DecodeSource(kind, ref string) (Source, error) {
	switch SourceKind(kind) {
	case SourceLocal:
		return LocalSource{Path: ref}, nil
	case SourceGit:
		return GitSource{RepoURL: ref}, nil
	case SourceRegistry:
		return RegistrySource{PackageRef: ref}, nil
	default:
		return nil, errors.Errorf("unknown source kind %q", kind)
	}
}

// Metadata is the optional sidecar metadata of a skill (skill.yaml/skill.json).
type Metadata struct {
	Name         string   `yaml:"name" json:"name"`
	Version      string   `yaml:"version" json:"version"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	Author       string   `yaml:"author,omitempty" json:"author,omitempty"`
	Tags         []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
}

// ManagedSkill is the canonical record of a skill owned by the central
// repository. CentralPath always lies under the repository root.
type ManagedSkill struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Source         Source       `json:"-"`
	SourceKind     SourceKind   `json:"source_type"`
	SourceRef      string       `json:"source_ref,omitempty"`
	SourceRevision string       `json:"source_revision,omitempty"`
	CentralPath    string       `json:"central_path"`
	ContentHash    string       `json:"content_hash,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	LastSyncAt     *time.Time   `json:"last_sync_at,omitempty"`
	Status         string       `json:"status"`
	Metadata       *Metadata    `json:"metadata,omitempty"`
	Targets        []SyncTarget `json:"targets"`
}

// SyncTarget is the materialized presence of one skill inside one tool's
// directory. At most one exists per (skill, tool) pair.
type SyncTarget struct {
	SkillID    string     `json:"skill_id"`
	Tool       string     `json:"tool"`
	Mode       SyncMode   `json:"mode"`
	Status     string     `json:"status"`
	TargetPath string     `json:"target_path"`
	SyncedAt   *time.Time `json:"synced_at,omitempty"`
}

// GitCandidate is one installable skill discovered in a git repository.
type GitCandidate struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Subpath     string `json:"subpath"`
}

// LocalCandidate is one skill folder discovered under a local base path.
// Invalid candidates are reported with a machine-readable reason instead
// of being dropped, so the caller can explain why a folder was skipped.
type LocalCandidate struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Subpath     string `json:"subpath"`
	Valid       bool   `json:"valid"`
	Reason      string `json:"reason,omitempty"`
}

// UpdateResult reports the outcome of re-fetching a skill from its source.
type UpdateResult struct {
	SkillID        string   `json:"skill_id"`
	Name           string   `json:"name"`
	ContentHash    string   `json:"content_hash,omitempty"`
	SourceRevision string   `json:"source_revision,omitempty"`
	Changed        bool     `json:"changed"`
	UpdatedTargets []string `json:"updated_targets"`
}

// BatchOutcome is the result of one item inside a fan-out operation.
type BatchOutcome struct {
	Key   string `json:"key"`
	Error string `json:"error,omitempty"`
}

// BatchResult aggregates per-item outcomes of a best-effort batch.
// One item failing never aborts the remainder; the caller inspects the
// tally to decide whether to retry failures.
type BatchResult struct {
	Items     []BatchOutcome `json:"items"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
}

// Add records one item outcome.
func (r *BatchResult) Add(key string, err error) {
	item := BatchOutcome{Key: key}
	if err != nil {
		item.Error = err.Error()
		r.Failed++
	} else {
		r.Succeeded++
	}
	r.Items = append(r.Items, item)
}
