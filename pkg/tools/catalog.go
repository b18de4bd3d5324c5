// Package tools holds the static catalog of tool integrations: every
// external application that consumes skills from a conventional directory
// under the user's home. New tools are rows in the table, not new code.
package tools

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/skillshub/skillshub/pkg/skillerr"
)

// Tool describes one integration. SkillsDir and DetectDir are relative to
// the user's home directory. ForceCopy marks tools that do not follow
// symlinks when discovering skills, so sync always materializes a copy.
type Tool struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	SkillsDir string `json:"skills_dir"`
	DetectDir string `json:"detect_dir"`
	ForceCopy bool   `json:"force_copy,omitempty"`
}

// catalog is the authoritative integration table. Note opencode and crush
// share one physical skills directory; the sync reconciler relies on
// GroupByDirectory to keep their records consistent.
var catalog = []Tool{
	{Key: "claude-code", Label: "Claude Code", SkillsDir: ".claude/skills", DetectDir: ".claude"},
	{Key: "cursor", Label: "Cursor", SkillsDir: ".cursor/skills", DetectDir: ".cursor", ForceCopy: true},
	{Key: "codex", Label: "Codex CLI", SkillsDir: ".codex/skills", DetectDir: ".codex"},
	{Key: "gemini-cli", Label: "Gemini CLI", SkillsDir: ".gemini/skills", DetectDir: ".gemini"},
	{Key: "windsurf", Label: "Windsurf", SkillsDir: ".codeium/windsurf/skills", DetectDir: ".codeium/windsurf"},
	{Key: "cline", Label: "Cline", SkillsDir: ".cline/skills", DetectDir: ".cline"},
	{Key: "roo-code", Label: "Roo Code", SkillsDir: ".roo/skills", DetectDir: ".roo"},
	{Key: "opencode", Label: "OpenCode", SkillsDir: ".config/agents/skills", DetectDir: ".config/opencode"},
	{Key: "crush", Label: "Crush", SkillsDir: ".config/agents/skills", DetectDir: ".local/share/crush"},
	{Key: "amp", Label: "Amp", SkillsDir: ".config/amp/skills", DetectDir: ".config/amp"},
	{Key: "aider", Label: "Aider", SkillsDir: ".aider/skills", DetectDir: ".aider"},
	{Key: "continue", Label: "Continue", SkillsDir: ".continue/skills", DetectDir: ".continue"},
}

// All returns every catalog entry in stable order.
func All() []Tool {
	out := make([]Tool, len(catalog))
	copy(out, catalog)
	return out
}

// Resolve looks up a tool by key.
func Resolve(key string) (Tool, error) {
	for _, t := range catalog {
		if t.Key == key {
			return t, nil
		}
	}
	return Tool{}, skillerr.NewNotFound("tool", key)
}

// GroupByDirectory maps each relative skills directory to the tool keys
// sharing it, sorted for deterministic iteration.
func GroupByDirectory() map[string][]string {
	groups := make(map[string][]string)
	for _, t := range catalog {
		groups[t.SkillsDir] = append(groups[t.SkillsDir], t.Key)
	}
	for dir := range groups {
		sort.Strings(groups[dir])
	}
	return groups
}

// SharedWith returns every tool whose skills directory equals the given
// tool's, including the tool itself.
func SharedWith(tool Tool) []Tool {
	var out []Tool
	for _, t := range catalog {
		if t.SkillsDir == tool.SkillsDir {
			out = append(out, t)
		}
	}
	return out
}

// SkillsPath returns the absolute skills directory for a tool.
func (t Tool) SkillsPath(home string) string {
	return filepath.Join(home, filepath.FromSlash(t.SkillsDir))
}

// DetectPath returns the absolute detection-marker directory for a tool.
func (t Tool) DetectPath(home string) string {
	return filepath.Join(home, filepath.FromSlash(t.DetectDir))
}

// IsInstalled reports whether the tool's detection directory exists.
func (t Tool) IsInstalled(home string) bool {
	info, err := os.Stat(t.DetectPath(home))
	return err == nil && info.IsDir()
}
