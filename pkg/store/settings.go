package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const (
	settingCacheTTL     = "git_cache_ttl_secs"
	settingCacheCleanup = "git_cache_cleanup_days"
	settingRepoPath     = "central_repo_path"
	settingSeenTools    = "seen_tools"
)

// GetSetting returns a settings value, or "" when the key is unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to read setting %s", key)
	}
	return value, nil
}

// SetSetting writes a settings value, replacing any previous one.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return errors.Wrapf(err, "failed to write setting %s", key)
	}
	return nil
}

// CacheTTL returns the configured git cache freshness window, falling
// back to the given default when unset or malformed.
func (s *Store) CacheTTL(ctx context.Context, fallback time.Duration) time.Duration {
	raw, err := s.GetSetting(ctx, settingCacheTTL)
	if err != nil || raw == "" {
		return fallback
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

// SetCacheTTL persists the git cache freshness window in seconds.
func (s *Store) SetCacheTTL(ctx context.Context, ttl time.Duration) error {
	return s.SetSetting(ctx, settingCacheTTL, strconv.Itoa(int(ttl.Seconds())))
}

// CacheCleanupAge returns the retention age for unused cache entries.
func (s *Store) CacheCleanupAge(ctx context.Context, fallback time.Duration) time.Duration {
	raw, err := s.GetSetting(ctx, settingCacheCleanup)
	if err != nil || raw == "" {
		return fallback
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return fallback
	}
	return time.Duration(days) * 24 * time.Hour
}

// SetCacheCleanupAge persists the cache retention period in whole days.
func (s *Store) SetCacheCleanupAge(ctx context.Context, age time.Duration) error {
	return s.SetSetting(ctx, settingCacheCleanup, strconv.Itoa(int(age.Hours()/24)))
}

// RepoPathOverride returns the persisted repository root override, or ""
// when the default location is in use.
func (s *Store) RepoPathOverride(ctx context.Context) (string, error) {
	return s.GetSetting(ctx, settingRepoPath)
}

// SetRepoPath persists a repository root override. It takes effect the
// next time the store is opened; moving existing content is the caller's
// responsibility.
func (s *Store) SetRepoPath(ctx context.Context, path string) error {
	return s.SetSetting(ctx, settingRepoPath, path)
}

// RepoPathSetting reads the persisted repository root override directly
// from the index database, before a Store exists. fallback is returned
// when the setting is unset or the settings table is not there yet.
func RepoPathSetting(ctx context.Context, database *sqlx.DB, fallback string) string {
	var value string
	err := database.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, settingRepoPath)
	if err != nil || value == "" {
		return fallback
	}
	return value
}

// SeenTools returns the tool keys observed installed on a previous run.
// Tool detection diffs against this set to report newly installed tools.
func (s *Store) SeenTools(ctx context.Context) ([]string, error) {
	raw, err := s.GetSetting(ctx, settingSeenTools)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		// A corrupt value means we simply re-learn the installed set.
		return nil, nil
	}
	return keys, nil
}

// RecordSeenTools persists the currently installed tool set.
func (s *Store) RecordSeenTools(ctx context.Context, keys []string) error {
	data, err := json.Marshal(keys)
	if err != nil {
		return errors.Wrap(err, "failed to encode seen tools")
	}
	return s.SetSetting(ctx, settingSeenTools, string(data))
}
