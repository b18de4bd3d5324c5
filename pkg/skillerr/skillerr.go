// Package skillerr defines the error taxonomy shared across the skill
// repository: validation, conflict, not-found, and network failures.
// Callers classify errors with errors.As/Is so transport layers can map
// them to exit codes or HTTP statuses without string matching.
package skillerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Validation reason codes.
const (
	ReasonMissingSkillFile    = "missing_skill_md"
	ReasonInvalidFrontmatter  = "invalid_frontmatter"
	ReasonMissingName         = "missing_name"
	ReasonReadFailed          = "read_failed"
	ReasonUnsupportedSource   = "unsupported_source"
	ReasonNoSkillFound        = "no_skill_found"
	ReasonMultipleSkills      = "multi_skills"
	ReasonSourceMissing       = "source_missing"
	ReasonConflictingVariants = "conflicting_variants"
	ReasonInvalidName         = "invalid_name"
	ReasonInvalidSetting      = "invalid_setting"
)

// ValidationError reports an invalid or missing skill manifest.
type ValidationError struct {
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("invalid skill: %s (%s)", e.Reason, e.Detail)
	}
	return fmt.Sprintf("invalid skill: %s", e.Reason)
}

// NewValidation creates a ValidationError with a reason code.
func NewValidation(reason, detail string) error {
	return &ValidationError{Reason: reason, Detail: detail}
}

// ConflictError reports that an operation would clobber existing state.
// Path carries the offending filesystem path or name.
type ConflictError struct {
	Path   string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s at %s", e.Reason, e.Path)
}

// NewTargetExists reports a populated target path with overwrite disabled.
func NewTargetExists(path string) error {
	return &ConflictError{Path: path, Reason: "target exists"}
}

// NewAlreadyExists reports a duplicate skill name in the central repository.
func NewAlreadyExists(name string) error {
	return &ConflictError{Path: name, Reason: "skill already exists"}
}

// MultiSkillsError signals that a single-candidate install was attempted
// against a repository exposing multiple skills. The caller must list
// candidates and install a selection instead.
type MultiSkillsError struct {
	RepoURL    string
	Candidates int
}

func (e *MultiSkillsError) Error() string {
	return fmt.Sprintf("repository %s contains %d skills, select one to install", e.RepoURL, e.Candidates)
}

// NotFoundError reports an unknown skill or tool identifier.
type NotFoundError struct {
	Kind string // "skill", "tool", "target"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFound creates a NotFoundError.
func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// NetworkError reports a clone/fetch failure or timeout.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsMultiSkills reports whether err is a MultiSkillsError.
func IsMultiSkills(err error) bool {
	var target *MultiSkillsError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsNetwork reports whether err is a NetworkError.
func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}
