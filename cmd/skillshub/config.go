package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillshub/skillshub/pkg/hub"
	"github.com/skillshub/skillshub/pkg/presenter"
	"github.com/skillshub/skillshub/pkg/skillerr"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change persisted engine settings",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the persisted settings",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		service, closer, err := openService(ctx)
		if err != nil {
			presenter.Error(err, "failed to open the skill repository")
			os.Exit(1)
		}
		defer closer()

		settings, err := service.GetSettings(ctx)
		if err != nil {
			presenter.Error(err, "failed to read settings")
			os.Exit(1)
		}
		printSettings(settings)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one persisted setting",
	Long: `Change one persisted setting. Keys:

  cache-ttl-secs      How long a fetched git cache entry is reused, in seconds
  cache-cleanup-days  Retention period for unused cache entries, in days
  repo-path           Absolute path of the central skill repository`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		key, value := args[0], args[1]

		service, closer, err := openService(ctx)
		if err != nil {
			presenter.Error(err, "failed to open the skill repository")
			os.Exit(1)
		}
		defer closer()

		if err := applySetting(cmd, service, key, value); err != nil {
			presenter.Error(err, "failed to change setting")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Set %s to %s", key, value))
	},
}

func applySetting(cmd *cobra.Command, service *hub.Service, key, value string) error {
	ctx := cmd.Context()
	switch key {
	case "cache-ttl-secs":
		secs, err := strconv.Atoi(value)
		if err != nil {
			return skillerr.NewValidation(skillerr.ReasonInvalidSetting, "cache-ttl-secs must be an integer")
		}
		return service.SetCacheTTL(ctx, time.Duration(secs)*time.Second)
	case "cache-cleanup-days":
		days, err := strconv.Atoi(value)
		if err != nil {
			return skillerr.NewValidation(skillerr.ReasonInvalidSetting, "cache-cleanup-days must be an integer")
		}
		return service.SetCacheCleanupAge(ctx, time.Duration(days)*24*time.Hour)
	case "repo-path":
		return service.SetRepoPath(ctx, value)
	default:
		return skillerr.NewValidation(skillerr.ReasonInvalidSetting, fmt.Sprintf("unknown setting %s", key))
	}
}

func printSettings(settings hub.Settings) {
	ttl := "default"
	if settings.CacheTTLSecs > 0 {
		ttl = strconv.Itoa(settings.CacheTTLSecs)
	}
	cleanup := "default"
	if settings.CacheCleanupDays > 0 {
		cleanup = strconv.Itoa(settings.CacheCleanupDays)
	}
	presenter.Info(fmt.Sprintf("cache-ttl-secs:     %s", ttl))
	presenter.Info(fmt.Sprintf("cache-cleanup-days: %s", cleanup))
	presenter.Info(fmt.Sprintf("repo-path:          %s", settings.RepoPath))
}

func init() {
	configCmd.AddCommand(withTracing(configGetCmd))
	configCmd.AddCommand(withTracing(configSetCmd))
	rootCmd.AddCommand(configCmd)
}
