package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillshub/skillshub/pkg/presenter"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the git import cache",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove cache entries older than the retention period",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		days, _ := cmd.Flags().GetInt("days")

		service, closer, err := openService(ctx)
		if err != nil {
			presenter.Error(err, "failed to open the skill repository")
			os.Exit(1)
		}
		defer closer()

		retention := cacheRetention()
		if days > 0 {
			retention = time.Duration(days) * 24 * time.Hour
		}
		removed, err := service.CacheCleanup(ctx, retention)
		if err != nil {
			presenter.Error(err, "cache cleanup failed")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Removed %d cache entries", removed))
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cache entry",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		service, closer, err := openService(ctx)
		if err != nil {
			presenter.Error(err, "failed to open the skill repository")
			os.Exit(1)
		}
		defer closer()

		if err := service.CacheClear(ctx); err != nil {
			presenter.Error(err, "cache clear failed")
			os.Exit(1)
		}
		presenter.Success("Cache cleared")
	},
}

func init() {
	cacheCleanupCmd.Flags().Int("days", 0, "Override the retention period in days")
	cacheCmd.AddCommand(cacheCleanupCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
