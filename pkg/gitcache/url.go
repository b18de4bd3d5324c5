package gitcache

import "strings"

// ParsedSource is a normalized git import reference. GitHub folder URLs
// (/tree/<branch>/<path>) carry the branch and subpath segments; anything
// that is not recognizably GitHub passes through as a plain clone URL.
type ParsedSource struct {
	CloneURL string
	Branch   string
	Subpath  string
}

const githubPrefix = "https://github.com/"

// ParseSourceURL normalizes user input into a clone URL plus optional
// branch/subpath. Accepted forms:
//
//	https://github.com/owner/repo[.git]
//	https://github.com/owner/repo/tree/<branch>/<path>
//	https://github.com/owner/repo/blob/<branch>/<path>
//	github.com/owner/repo, owner/repo (shorthand)
//	<any of the above>//<subpath> (go-getter style subdirectory)
//	any other URL, passed through untouched
func ParseSourceURL(input string) ParsedSource {
	trimmed := strings.TrimSuffix(strings.TrimSpace(input), "/")

	// The double-slash subdirectory form pins a subpath onto remotes whose
	// URL shape cannot carry one, which is how selection installs persist
	// the chosen candidate.
	if base, subpath, ok := splitSubdir(trimmed); ok {
		parsed := ParseSourceURL(base)
		if parsed.Subpath == "" {
			parsed.Subpath = subpath
		}
		return parsed
	}

	var normalized string
	switch {
	case strings.HasPrefix(trimmed, githubPrefix):
		normalized = trimmed
	case strings.HasPrefix(trimmed, "http://github.com/"):
		normalized = strings.Replace(trimmed, "http://github.com/", githubPrefix, 1)
	case strings.HasPrefix(trimmed, "github.com/"):
		normalized = "https://" + trimmed
	case looksLikeShorthand(trimmed):
		normalized = githubPrefix + trimmed
	default:
		return ParsedSource{CloneURL: trimmed}
	}

	normalized = strings.TrimSuffix(normalized, "/")
	rest := strings.TrimPrefix(normalized, githubPrefix)
	parts := strings.Split(rest, "/")
	if len(parts) < 2 {
		return ParsedSource{CloneURL: normalized}
	}

	owner := parts[0]
	repo := strings.TrimSuffix(parts[1], ".git")
	cloneURL := githubPrefix + owner + "/" + repo + ".git"

	if len(parts) >= 4 && (parts[2] == "tree" || parts[2] == "blob") {
		return ParsedSource{
			CloneURL: cloneURL,
			Branch:   parts[3],
			Subpath:  strings.Join(parts[4:], "/"),
		}
	}

	return ParsedSource{CloneURL: cloneURL}
}

// splitSubdir detects the go-getter style "url//subpath" form, ignoring
// the scheme separator.
func splitSubdir(input string) (string, string, bool) {
	rest := input
	offset := 0
	if idx := strings.Index(input, "://"); idx >= 0 {
		offset = idx + 3
		rest = input[offset:]
	}
	idx := strings.Index(rest, "//")
	if idx < 0 {
		return "", "", false
	}
	base := input[:offset+idx]
	subpath := strings.Trim(rest[idx+2:], "/")
	if base == "" || subpath == "" {
		return "", "", false
	}
	return base, subpath, true
}

// FormatSourceRef encodes a repository URL plus selected subpath into a
// single reference that ParseSourceURL round-trips. A URL that already
// resolves to the same subpath is kept as the user wrote it.
func FormatSourceRef(repoURL, subpath string) string {
	if subpath == "" || subpath == "." {
		return repoURL
	}
	if ParseSourceURL(repoURL).Subpath == subpath {
		return repoURL
	}
	return strings.TrimSuffix(repoURL, "/") + "//" + subpath
}

// looksLikeShorthand reports whether input is a bare owner/repo reference.
// Local paths, scp-style ssh remotes, and explicit schemes are excluded.
func looksLikeShorthand(input string) bool {
	if input == "" {
		return false
	}
	if strings.HasPrefix(input, "/") || strings.HasPrefix(input, "~") || strings.HasPrefix(input, ".") {
		return false
	}
	if strings.Contains(input, "://") || strings.Contains(input, "@") || strings.Contains(input, ":") {
		return false
	}

	parts := strings.Split(input, "/")
	if len(parts) < 2 {
		return false
	}
	owner, repo := parts[0], parts[1]
	if owner == "" || repo == "" || owner == "." || owner == ".." || repo == "." || repo == ".." {
		return false
	}

	safe := func(s string) bool {
		for _, c := range s {
			if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_' || c == '.') {
				return false
			}
		}
		return true
	}
	if !safe(owner) || !safe(strings.TrimSuffix(repo, ".git")) {
		return false
	}

	if len(parts) > 2 {
		return parts[2] == "tree" || parts[2] == "blob"
	}
	return true
}

// DeriveName picks a skill name from a parsed source: the last subpath
// segment when present, otherwise the repository name.
func DeriveName(parsed ParsedSource) string {
	if parsed.Subpath != "" {
		segments := strings.Split(parsed.Subpath, "/")
		if name := segments[len(segments)-1]; name != "" {
			return name
		}
	}
	name := parsed.CloneURL
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSuffix(name, ".git")
	if name == "" {
		return "skill"
	}
	return name
}
