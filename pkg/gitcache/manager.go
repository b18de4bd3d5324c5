// Package gitcache imports skills from remote git repositories through a
// local cache keyed by clone URL and branch. Cache entries are refreshed
// when older than a freshness window and reaped by a cleanup pass after a
// retention period; operations against the same URL are serialized so
// concurrent imports never corrupt a shared entry.
package gitcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/skillshub/skillshub/pkg/logger"
	"github.com/skillshub/skillshub/pkg/manifest"
	"github.com/skillshub/skillshub/pkg/skillerr"
	skilltypes "github.com/skillshub/skillshub/pkg/types/skills"
)

const metaFileName = ".skillshub-cache.json"

// Option configures a Manager.
type Option func(*Manager)

// WithFreshness sets how long a fetched cache entry is reused without
// contacting the remote.
func WithFreshness(ttl time.Duration) Option {
	return func(m *Manager) { m.freshness = ttl }
}

// WithGitTimeout bounds every git invocation. Git runs non-interactively,
// so a credential prompt fails fast instead of hanging.
func WithGitTimeout(timeout time.Duration) Option {
	return func(m *Manager) { m.gitTimeout = timeout }
}

// WithGitRunner swaps the git executor, used by tests to avoid spawning
// real git processes.
func WithGitRunner(run func(ctx context.Context, dir string, args ...string) (string, error)) Option {
	return func(m *Manager) { m.runGit = run }
}

// Manager owns the on-disk git cache.
type Manager struct {
	root       string
	freshness  time.Duration
	gitTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// runGit is swappable in tests.
	runGit func(ctx context.Context, dir string, args ...string) (string, error)
}

// NewManager creates a Manager rooted at cacheRoot.
func NewManager(cacheRoot string, opts ...Option) *Manager {
	m := &Manager{
		root:       cacheRoot,
		freshness:  15 * time.Minute,
		gitTimeout: 2 * time.Minute,
		locks:      make(map[string]*sync.Mutex),
	}
	m.runGit = m.execGit
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the cache root directory.
func (m *Manager) Root() string { return m.root }

// SetFreshness adjusts the freshness window after construction, used when
// a persisted setting overrides the configured default.
func (m *Manager) SetFreshness(ttl time.Duration) { m.freshness = ttl }

type cacheMeta struct {
	LastFetchedMs int64  `json:"last_fetched_ms"`
	Head          string `json:"head"`
}

// urlLock returns the mutex serializing operations for one cache entry.
func (m *Manager) urlLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

func cacheKey(cloneURL, branch string) string {
	h := sha256.New()
	h.Write([]byte(cloneURL))
	h.Write([]byte("\n"))
	h.Write([]byte(branch))
	return hex.EncodeToString(h.Sum(nil))
}

// EnsureClone guarantees a usable cached clone for the given source and
// returns its directory and HEAD revision. A fresh entry is reused without
// network access; a stale or absent entry is fetched, with one clean-state
// retry if the cached clone turns out to be corrupted.
func (m *Manager) EnsureClone(ctx context.Context, cloneURL, branch string) (string, string, error) {
	key := cacheKey(cloneURL, branch)
	lock := m.urlLock(key)
	lock.Lock()
	defer lock.Unlock()

	repoDir := filepath.Join(m.root, key)
	metaPath := filepath.Join(repoDir, metaFileName)

	if meta, err := readMeta(metaPath); err == nil && meta.Head != "" {
		age := time.Since(time.UnixMilli(meta.LastFetchedMs))
		if m.freshness > 0 && age < m.freshness {
			if _, err := os.Stat(filepath.Join(repoDir, ".git")); err == nil {
				logger.G(ctx).WithFields(map[string]interface{}{
					"url": cloneURL,
					"age": age.Truncate(time.Second).String(),
				}).Debug("git cache hit")
				return repoDir, meta.Head, nil
			}
		}
	}

	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return "", "", errors.Wrapf(err, "failed to create cache root %s", m.root)
	}

	var head string
	err := retry.Do(
		func() error {
			var err error
			head, err = m.cloneOrFetch(ctx, cloneURL, branch, repoDir)
			return err
		},
		retry.Attempts(2),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(_ uint, err error) {
			// A corrupted cache entry poisons fetch; retry from a clean slate.
			logger.G(ctx).WithError(err).WithField("url", cloneURL).
				Warn("git cache fetch failed, retrying from clean state")
			os.RemoveAll(repoDir)
		}),
	)
	if err != nil {
		return "", "", &skillerr.NetworkError{Op: "clone", URL: cloneURL, Err: err}
	}

	if err := writeMeta(metaPath, cacheMeta{LastFetchedMs: time.Now().UnixMilli(), Head: head}); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to write cache meta")
	}

	return repoDir, head, nil
}

func (m *Manager) cloneOrFetch(ctx context.Context, cloneURL, branch, repoDir string) (string, error) {
	if _, err := os.Stat(filepath.Join(repoDir, ".git")); err == nil {
		fetchArgs := []string{"fetch", "--depth", "1", "origin"}
		if branch != "" {
			fetchArgs = append(fetchArgs, branch)
		} else {
			fetchArgs = append(fetchArgs, "HEAD")
		}
		if _, err := m.runGit(ctx, repoDir, fetchArgs...); err != nil {
			return "", err
		}
		if _, err := m.runGit(ctx, repoDir, "reset", "--hard", "FETCH_HEAD"); err != nil {
			return "", err
		}
	} else {
		cloneArgs := []string{"clone", "--depth", "1"}
		if branch != "" {
			cloneArgs = append(cloneArgs, "--branch", branch)
		}
		cloneArgs = append(cloneArgs, cloneURL, repoDir)
		if _, err := m.runGit(ctx, "", cloneArgs...); err != nil {
			return "", err
		}
	}

	head, err := m.runGit(ctx, repoDir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(head), nil
}

func (m *Manager) execGit(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	// Never block on a credential prompt.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", errors.Wrapf(err, "git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// ListCandidates enumerates installable skills in a remote repository. A
// folder URL yields at most one candidate; a repo URL is searched with the
// shared discovery rule.
func (m *Manager) ListCandidates(ctx context.Context, repoURL string) ([]skilltypes.GitCandidate, error) {
	parsed := ParseSourceURL(repoURL)
	repoDir, _, err := m.EnsureClone(ctx, parsed.CloneURL, parsed.Branch)
	if err != nil {
		return nil, err
	}

	if parsed.Subpath != "" {
		dir := filepath.Join(repoDir, filepath.FromSlash(parsed.Subpath))
		mf, err := manifest.ParseDir(dir)
		if err != nil {
			return nil, err
		}
		return []skilltypes.GitCandidate{{
			Name:        mf.Name,
			Description: mf.Description,
			Subpath:     parsed.Subpath,
		}}, nil
	}

	discovered, err := manifest.Discover(repoDir)
	if err != nil {
		return nil, err
	}

	var out []skilltypes.GitCandidate
	for _, c := range manifest.Valid(discovered) {
		out = append(out, skilltypes.GitCandidate{
			Name:        c.Name,
			Description: c.Description,
			Subpath:     c.Subpath,
		})
	}
	return out, nil
}

// Export resolves the on-disk source directory for one subpath of a cached
// repository, fetching the cache first if needed. Returns the directory
// and the cache HEAD revision.
func (m *Manager) Export(ctx context.Context, repoURL, subpath string) (string, string, error) {
	parsed := ParseSourceURL(repoURL)
	repoDir, head, err := m.EnsureClone(ctx, parsed.CloneURL, parsed.Branch)
	if err != nil {
		return "", "", err
	}

	if subpath == "" {
		subpath = parsed.Subpath
	}
	src := repoDir
	if subpath != "" && subpath != "." {
		src = filepath.Join(repoDir, filepath.FromSlash(subpath))
	}
	if _, err := os.Stat(src); err != nil {
		return "", "", skillerr.NewValidation(skillerr.ReasonSourceMissing, src)
	}
	return src, head, nil
}

// DetectOrigin inspects a local directory for a git checkout carrying an
// origin remote, so a local install can record its true upstream. ok is
// false for plain directories and for checkouts without an origin.
func (m *Manager) DetectOrigin(ctx context.Context, dir string) (string, string, bool) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		resolved = dir
	}
	if _, err := os.Stat(filepath.Join(resolved, ".git")); err != nil {
		return "", "", false
	}

	out, err := m.runGit(ctx, resolved, "config", "--get", "remote.origin.url")
	originURL := strings.TrimSpace(out)
	if err != nil || originURL == "" {
		return "", "", false
	}

	head := ""
	if rev, err := m.runGit(ctx, resolved, "rev-parse", "HEAD"); err == nil {
		head = strings.TrimSpace(rev)
	}
	return originURL, head, true
}

// Cleanup removes cache entries whose last fetch is older than retention.
// Returns how many entries were removed.
func (m *Manager) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "failed to read cache root %s", m.root)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(m.root, entry.Name())
		meta, err := readMeta(filepath.Join(dir, metaFileName))
		if err != nil {
			// Unreadable meta means an interrupted clone; reap it too.
			meta = cacheMeta{}
		}
		if time.Since(time.UnixMilli(meta.LastFetchedMs)) < retention {
			continue
		}

		lock := m.urlLock(entry.Name())
		lock.Lock()
		err = os.RemoveAll(dir)
		lock.Unlock()
		if err != nil {
			logger.G(ctx).WithError(err).WithField("dir", dir).Warn("failed to remove cache entry")
			continue
		}
		removed++
	}
	return removed, nil
}

// ClearAll removes every cache entry.
func (m *Manager) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.RemoveAll(m.root); err != nil {
		return errors.Wrapf(err, "failed to clear cache root %s", m.root)
	}
	return nil
}

func readMeta(path string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(path)
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, err
	}
	return meta, nil
}

func writeMeta(path string, meta cacheMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
