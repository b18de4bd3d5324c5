package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillshub/skillshub/pkg/logger"
	"github.com/skillshub/skillshub/pkg/presenter"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("SKILLSHUB")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillshub")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()

	viper.SetDefault("log_level", "warn")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("cache.freshness_secs", 900)
	viper.SetDefault("cache.retention_days", 7)
}

var rootCmd = &cobra.Command{
	Use:   "skillshub",
	Short: "Manage AI coding skills across tools from one central repository",
	Long: `Skillshub keeps a single central repository of skills and syncs them into
the directories of every AI coding tool on this machine, as symlinks where
the tool supports them and as managed copies where it does not.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetLogLevel(viper.GetString("log_level"))
		logger.SetGlobalFormat(viper.GetString("log_format"))
		if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
			presenter.SetQuiet(true)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json)")
	rootCmd.PersistentFlags().Bool("quiet", false, "Suppress informational output")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	shutdownTracing, err := initTracing(ctx)
	if err != nil {
		logger.L.WithError(err).Warn("failed to initialize tracing")
	}

	code := 0
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code = 1
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.L.WithError(err).Debug("failed to shut down tracing")
		}
	}
	os.Exit(code)
}
