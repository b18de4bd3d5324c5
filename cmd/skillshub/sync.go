package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillshub/skillshub/pkg/hub"
	"github.com/skillshub/skillshub/pkg/presenter"
	"github.com/skillshub/skillshub/pkg/skillerr"
)

var syncCmd = &cobra.Command{
	Use:   "sync <skill> <tool>...",
	Short: "Sync a managed skill into tool directories",
	Long: `Materialize a managed skill inside one or more tool directories, as a
symlink where the tool supports it and as a managed copy otherwise.

A populated target path that the repository does not own fails with a
conflict; pass --overwrite to replace it.

Examples:
  skillshub sync pdf-tools claude-code
  skillshub sync pdf-tools claude-code cursor --overwrite`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		service, closer, err := openService(ctx)
		if err != nil {
			presenter.Error(err, "failed to open the skill repository")
			os.Exit(1)
		}
		defer closer()

		skill, err := service.Skill(ctx, args[0])
		if err != nil {
			presenter.Error(err, "failed to load skill")
			os.Exit(1)
		}

		toolKeys := args[1:]
		if len(toolKeys) == 1 {
			synced, err := service.SyncSkillToTool(ctx, hub.SyncRequest{
				SkillID:   skill.ID,
				Tool:      toolKeys[0],
				Overwrite: overwrite,
			})
			if err != nil {
				if skillerr.IsConflict(err) {
					presenter.Error(err, "target already exists, re-run with --overwrite to replace it")
				} else {
					presenter.Error(err, "sync failed")
				}
				os.Exit(1)
			}
			for _, target := range synced.Targets {
				presenter.Success(fmt.Sprintf("%s -> %s [%s]", skill.Name, target.Tool, target.Mode))
			}
			return
		}

		result, err := service.SyncSkillToTools(ctx, skill.ID, toolKeys, overwrite)
		if err != nil {
			presenter.Error(err, "sync failed")
			os.Exit(1)
		}
		reportBatch(result)
		if result.Failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	syncCmd.Flags().Bool("overwrite", false, "Replace existing entries at the target path")
	rootCmd.AddCommand(withTracing(syncCmd))
}
