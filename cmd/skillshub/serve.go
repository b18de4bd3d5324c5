package main

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skillshub/skillshub/pkg/api"
	"github.com/skillshub/skillshub/pkg/presenter"
)

// ServeConfig holds configuration for the serve command
type ServeConfig struct {
	Host string
	Port int
}

// NewServeConfig creates a new ServeConfig with default values
func NewServeConfig() *ServeConfig {
	return &ServeConfig{
		Host: "localhost",
		Port: 8323,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local HTTP API server",
	Long: `Start a local HTTP server exposing the skill repository as a JSON API,
so desktop shells and scripts can manage skills without the CLI.

The server will be available at http://localhost:8323 by default.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getServeConfigFromFlags(cmd)

		if err := validateServeConfig(config); err != nil {
			presenter.Error(err, "invalid serve configuration")
			os.Exit(1)
		}

		service, closer, err := openService(ctx)
		if err != nil {
			presenter.Error(err, "failed to open the skill repository")
			os.Exit(1)
		}
		defer closer()

		server, err := api.NewServer(service, &api.ServerConfig{
			Host: config.Host,
			Port: config.Port,
		})
		if err != nil {
			presenter.Error(err, "failed to create API server")
			os.Exit(1)
		}

		if err := server.Start(ctx); err != nil {
			presenter.Error(err, "API server failed")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewServeConfig()
	serveCmd.Flags().String("host", defaults.Host, "Host to bind the API server to")
	serveCmd.Flags().Int("port", defaults.Port, "Port to bind the API server to")
	rootCmd.AddCommand(serveCmd)
}

func getServeConfigFromFlags(cmd *cobra.Command) *ServeConfig {
	config := NewServeConfig()
	if host, err := cmd.Flags().GetString("host"); err == nil && host != "" {
		config.Host = host
	}
	if port, err := cmd.Flags().GetInt("port"); err == nil && port != 0 {
		config.Port = port
	}
	return config
}

func validateServeConfig(config *ServeConfig) error {
	if config.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if config.Host != "localhost" && config.Host != "0.0.0.0" {
		if ip := net.ParseIP(config.Host); ip == nil {
			if strings.Contains(config.Host, " ") || strings.Contains(config.Host, ":") {
				return fmt.Errorf("invalid host: %s", config.Host)
			}
		}
	}
	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", config.Port)
	}
	return nil
}
