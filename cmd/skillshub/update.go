package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillshub/skillshub/pkg/presenter"
)

var updateCmd = &cobra.Command{
	Use:   "update [skill]",
	Short: "Update managed skills from their sources",
	Long: `Re-fetch a skill from its recorded source and refresh every copied
target when the content changed. Symlinked targets pick up the new content
automatically. Without an argument every managed skill is updated.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		service, closer, err := openService(ctx)
		if err != nil {
			presenter.Error(err, "failed to open the skill repository")
			os.Exit(1)
		}
		defer closer()

		if len(args) == 0 {
			result, err := service.UpdateAll(ctx)
			if err != nil {
				presenter.Error(err, "update failed")
				os.Exit(1)
			}
			reportBatch(result)
			if result.Failed > 0 {
				os.Exit(1)
			}
			return
		}

		skill, err := service.Skill(ctx, args[0])
		if err != nil {
			presenter.Error(err, "failed to load skill")
			os.Exit(1)
		}

		result, err := service.UpdateSkill(ctx, skill.ID)
		if err != nil {
			presenter.Error(err, "update failed")
			os.Exit(1)
		}
		if !result.Changed {
			presenter.Info(fmt.Sprintf("%s is already up to date", result.Name))
			return
		}
		presenter.Success(fmt.Sprintf("Updated %s", result.Name))
		for _, tool := range result.UpdatedTargets {
			presenter.Info(fmt.Sprintf("  refreshed copy in %s", tool))
		}
	},
}

func init() {
	rootCmd.AddCommand(withTracing(updateCmd))
}
