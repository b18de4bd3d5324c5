package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/skillshub/skillshub/pkg/db"
	"github.com/skillshub/skillshub/pkg/gitcache"
	"github.com/skillshub/skillshub/pkg/hub"
	"github.com/skillshub/skillshub/pkg/logger"
	"github.com/skillshub/skillshub/pkg/store"
)

// basePath resolves the state directory holding the repository, index and
// cache. SKILLSHUB_BASE_PATH overrides the default ~/.skillshub.
func basePath() (string, error) {
	if base := os.Getenv("SKILLSHUB_BASE_PATH"); base != "" {
		return base, nil
	}
	if base := viper.GetString("base_path"); base != "" {
		return base, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, ".skillshub"), nil
}

// openService builds the full service stack. The returned closer releases
// the database handle.
func openService(ctx context.Context) (*hub.Service, func(), error) {
	base, err := basePath()
	if err != nil {
		return nil, nil, err
	}

	database, err := db.Open(ctx, filepath.Join(base, "skillshub.db"))
	if err != nil {
		return nil, nil, err
	}

	defaultTTL := time.Duration(viper.GetInt("cache.freshness_secs")) * time.Second
	git := gitcache.NewManager(
		filepath.Join(base, "cache", "git"),
		gitcache.WithFreshness(defaultTTL),
	)

	opts := []store.Option{store.WithGitCache(git)}
	if command := viper.GetString("registry.command"); command != "" {
		opts = append(opts, store.WithRegistryInstaller(registryInstaller(command)))
	}

	// The repository root may be overridden by a persisted setting, which
	// has to be read before the store that owns the settings table exists.
	repoRoot := store.RepoPathSetting(ctx, database, filepath.Join(base, "skills"))

	st, err := store.New(ctx, database, repoRoot, opts...)
	if err != nil {
		database.Close()
		return nil, nil, err
	}

	git.SetFreshness(st.CacheTTL(ctx, defaultTTL))

	return hub.New(st, git), func() { database.Close() }, nil
}

// registryInstaller adapts an external install command into the store's
// registry hook. The command is invoked as <command> <package-ref> <dest>.
func registryInstaller(command string) store.RegistryInstaller {
	return func(ctx context.Context, packageRef, destDir string) error {
		cmd := exec.CommandContext(ctx, command, packageRef, destDir)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return errors.Wrapf(err, "registry install failed: %s", string(out))
		}
		logger.G(ctx).WithField("package", packageRef).Debug("registry install finished")
		return nil
	}
}

func cacheRetention() time.Duration {
	return time.Duration(viper.GetInt("cache.retention_days")) * 24 * time.Hour
}
