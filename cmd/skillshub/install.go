package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillshub/skillshub/pkg/hub"
	"github.com/skillshub/skillshub/pkg/presenter"
	"github.com/skillshub/skillshub/pkg/skillerr"
	skilltypes "github.com/skillshub/skillshub/pkg/types/skills"
)

// InstallConfig holds configuration for the install command
type InstallConfig struct {
	Name      string
	Subpath   string
	Tools     []string
	Overwrite bool
	All       bool
	Registry  bool
}

// NewInstallConfig creates a new InstallConfig with default values
func NewInstallConfig() *InstallConfig {
	return &InstallConfig{}
}

var installCmd = &cobra.Command{
	Use:   "install <path-or-repo>",
	Short: "Install a skill into the central repository",
	Long: `Install a skill from a local directory or a git repository into the
central repository, optionally syncing it into tool directories right away.

Sources:
  - A local directory containing SKILL.md
  - A GitHub repository: owner/repo or https://github.com/owner/repo
  - A GitHub folder URL: https://github.com/owner/repo/tree/main/skills/x
  - A registry package reference, with --registry

A repository exposing several skills requires either --subpath to pick one
or --all to install every candidate.

Examples:
  skillshub install ./my-skill
  skillshub install owner/skills --subpath skills/pdf-tools
  skillshub install owner/skills --all
  skillshub install owner/skill --tool claude-code --tool cursor`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getInstallConfigFromFlags(cmd)
		runInstallCommand(cmd, args[0], config)
	},
}

func init() {
	defaults := NewInstallConfig()
	installCmd.Flags().StringP("name", "n", defaults.Name, "Override the skill name")
	installCmd.Flags().StringP("subpath", "d", defaults.Subpath, "Path to a specific skill directory within the source")
	installCmd.Flags().StringSliceP("tool", "t", defaults.Tools, "Sync the installed skill to this tool (repeatable)")
	installCmd.Flags().Bool("overwrite", defaults.Overwrite, "Replace existing entries at sync target paths")
	installCmd.Flags().Bool("all", defaults.All, "Install every candidate of a multi-skill source")
	installCmd.Flags().Bool("registry", defaults.Registry, "Treat the source as a registry package reference")
	rootCmd.AddCommand(withTracing(installCmd))
}

func getInstallConfigFromFlags(cmd *cobra.Command) *InstallConfig {
	config := NewInstallConfig()
	config.Name, _ = cmd.Flags().GetString("name")
	config.Subpath, _ = cmd.Flags().GetString("subpath")
	config.Tools, _ = cmd.Flags().GetStringSlice("tool")
	config.Overwrite, _ = cmd.Flags().GetBool("overwrite")
	config.All, _ = cmd.Flags().GetBool("all")
	config.Registry, _ = cmd.Flags().GetBool("registry")
	return config
}

func runInstallCommand(cmd *cobra.Command, source string, config *InstallConfig) {
	ctx := cmd.Context()
	service, closer, err := openService(ctx)
	if err != nil {
		presenter.Error(err, "failed to open the skill repository")
		os.Exit(1)
	}
	defer closer()

	var skill *skilltypes.ManagedSkill
	if config.Registry {
		skill, err = service.InstallRegistry(ctx, source, config.Name)
	} else if info, statErr := os.Stat(source); statErr == nil && info.IsDir() {
		if config.Subpath != "" {
			skill, err = service.InstallLocalSelection(ctx, source, config.Subpath, config.Name)
		} else {
			skill, err = service.InstallLocal(ctx, source, config.Name)
		}
	} else {
		skill, err = installGit(cmd, service, source, config)
	}
	if err != nil {
		presenter.Error(err, "installation failed")
		os.Exit(1)
	}
	if skill == nil {
		return
	}

	presenter.Success(fmt.Sprintf("Installed %s (%s)", skill.Name, skill.ID))

	if len(config.Tools) > 0 {
		result, err := service.SyncSkillToTools(ctx, skill.ID, config.Tools, config.Overwrite)
		if err != nil {
			presenter.Error(err, "sync failed")
			os.Exit(1)
		}
		reportBatch(result)
	}
}

func installGit(cmd *cobra.Command, service *hub.Service, source string, config *InstallConfig) (*skilltypes.ManagedSkill, error) {
	ctx := cmd.Context()

	if config.Subpath != "" {
		return service.InstallGitSelection(ctx, source, config.Subpath, config.Name)
	}

	if config.All {
		candidates, err := service.GitCandidates(ctx, source)
		if err != nil {
			return nil, err
		}
		subpaths := make([]string, 0, len(candidates))
		for _, c := range candidates {
			subpaths = append(subpaths, c.Subpath)
		}
		result, err := service.InstallGitSelections(ctx, source, subpaths)
		if err != nil {
			return nil, err
		}
		reportBatch(result)
		return nil, nil
	}

	skill, err := service.InstallGit(ctx, source, config.Name)
	if skillerr.IsMultiSkills(err) {
		presenter.Warning("This repository contains several skills:")
		candidates, listErr := service.GitCandidates(ctx, source)
		if listErr == nil {
			for _, c := range candidates {
				presenter.Info(fmt.Sprintf("  %-24s %s", c.Name, c.Subpath))
			}
		}
		presenter.Info("Pick one with --subpath, or install everything with --all.")
		os.Exit(1)
	}
	return skill, err
}

func reportBatch(result *skilltypes.BatchResult) {
	for _, item := range result.Items {
		if item.Error != "" {
			presenter.Warning(fmt.Sprintf("%s: %s", item.Key, item.Error))
		} else {
			presenter.Success(item.Key)
		}
	}
	if result.Failed > 0 {
		presenter.Warning(fmt.Sprintf("%d succeeded, %d failed", result.Succeeded, result.Failed))
	} else {
		presenter.Info(fmt.Sprintf("%d succeeded", result.Succeeded))
	}
}
