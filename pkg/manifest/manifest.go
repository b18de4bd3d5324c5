// Package manifest parses skill manifests and discovers skill folders.
// A skill is a directory containing a SKILL.md file with YAML frontmatter
// (name required) plus arbitrary assets, optionally accompanied by a
// skill.yaml/skill.json sidecar carrying richer metadata.
package manifest

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v3"

	"github.com/skillshub/skillshub/pkg/logger"
	"github.com/skillshub/skillshub/pkg/skillerr"
	skilltypes "github.com/skillshub/skillshub/pkg/types/skills"
)

// SkillFileName is the manifest file every skill directory must contain.
const SkillFileName = "SKILL.md"

// Manifest is the parsed SKILL.md of one skill directory.
type Manifest struct {
	Name        string
	Description string
	Body        string // content below the frontmatter
}

// Parse reads and validates the SKILL.md at path.
func Parse(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, skillerr.NewValidation(skillerr.ReasonMissingSkillFile, path)
		}
		return nil, skillerr.NewValidation(skillerr.ReasonReadFailed, err.Error())
	}

	md := goldmark.New(goldmark.WithExtensions(meta.Meta))

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, skillerr.NewValidation(skillerr.ReasonInvalidFrontmatter, err.Error())
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return nil, skillerr.NewValidation(skillerr.ReasonInvalidFrontmatter, "missing frontmatter")
	}

	name, _ := metaData["name"].(string)
	description, _ := metaData["description"].(string)
	if name == "" {
		return nil, skillerr.NewValidation(skillerr.ReasonMissingName, path)
	}

	return &Manifest{
		Name:        name,
		Description: description,
		Body:        extractBody(string(content)),
	}, nil
}

// ParseDir validates the manifest of a skill directory.
func ParseDir(dir string) (*Manifest, error) {
	return Parse(filepath.Join(dir, SkillFileName))
}

// ReadBody returns the SKILL.md body of a skill directory.
func ReadBody(dir string) (string, error) {
	m, err := ParseDir(dir)
	if err != nil {
		return "", err
	}
	return m.Body, nil
}

func extractBody(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return content
	}
	return strings.TrimLeft(strings.Join(lines[end+1:], "\n"), "\n")
}

// LoadMetadata reads the optional sidecar metadata of a skill directory.
// Returns nil when absent; a malformed sidecar is logged and ignored so a
// bad skill.yaml never blocks an install.
func LoadMetadata(dir string) *skilltypes.Metadata {
	for _, name := range []string{"skill.yaml", "skill.yml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var m skilltypes.Metadata
		if err := yaml.Unmarshal(data, &m); err != nil {
			logger.L.WithError(err).WithField("path", path).Warn("failed to parse sidecar metadata")
			return nil
		}
		return &m
	}

	path := filepath.Join(dir, "skill.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var m skilltypes.Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		logger.L.WithError(err).WithField("path", path).Warn("failed to parse sidecar metadata")
		return nil
	}
	return &m
}

// reason extracts the machine-readable reason from a validation error.
func reason(err error) string {
	var v *skillerr.ValidationError
	if errors.As(err, &v) {
		return v.Reason
	}
	return err.Error()
}
