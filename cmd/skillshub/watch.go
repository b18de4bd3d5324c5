package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/skillshub/skillshub/pkg/logger"
	"github.com/skillshub/skillshub/pkg/presenter"
	"github.com/skillshub/skillshub/pkg/tools"
)

// WatchConfig holds configuration for the watch command
type WatchConfig struct {
	DebounceTime int
}

// NewWatchConfig creates a new WatchConfig with default values
func NewWatchConfig() *WatchConfig {
	return &WatchConfig{
		DebounceTime: 2000,
	}
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch for newly installed tools",
	Long: `Continuously watch the home directory for tool installations and report
when a catalog tool appears or disappears, so newly installed tools can be
onboarded right away.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getWatchConfigFromFlags(cmd)
		if err := runWatchCommand(ctx, config); err != nil {
			presenter.Error(err, "watch failed")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewWatchConfig()
	watchCmd.Flags().Int("debounce", defaults.DebounceTime, "Debounce time in milliseconds between rescans")
	rootCmd.AddCommand(watchCmd)
}

func getWatchConfigFromFlags(cmd *cobra.Command) *WatchConfig {
	config := NewWatchConfig()
	if debounce, err := cmd.Flags().GetInt("debounce"); err == nil && debounce > 0 {
		config.DebounceTime = debounce
	}
	return config
}

func runWatchCommand(ctx context.Context, config *WatchConfig) error {
	service, closer, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closer()

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the parents of every detection directory. Most are directly
	// under home; a few live one level deeper (.config, .local/share).
	parents := make(map[string]bool)
	for _, tool := range tools.All() {
		parent := filepath.Dir(tool.DetectPath(home))
		if parents[parent] {
			continue
		}
		if _, err := os.Stat(parent); err != nil {
			continue
		}
		if err := watcher.Add(parent); err != nil {
			logger.G(ctx).WithError(err).WithField("dir", parent).Warn("failed to watch directory")
			continue
		}
		parents[parent] = true
	}

	// Prime the baseline.
	status, err := service.ToolStatus(ctx)
	if err != nil {
		return err
	}
	presenter.Info(fmt.Sprintf("Watching for tool changes (%d installed). Press Ctrl-C to stop.",
		len(status.Installed)))

	debounce := time.Duration(config.DebounceTime) * time.Millisecond
	var timer *time.Timer
	rescan := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case rescan <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.G(ctx).WithError(err).Warn("watch error")

		case <-rescan:
			status, err := service.ToolStatus(ctx)
			if err != nil {
				logger.G(ctx).WithError(err).Warn("tool rescan failed")
				continue
			}
			for _, key := range status.NewlyInstalled {
				presenter.Success(fmt.Sprintf("New tool detected: %s", key))
				presenter.Info("Review unmanaged skills with: skillshub onboard")
			}
		}
	}
}
