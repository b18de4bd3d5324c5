package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillshub/skillshub/pkg/presenter"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <skill>",
	Short: "Delete a managed skill",
	Long: `Detach a skill from every tool directory and remove it from the central
repository. The delete is refused while any target fails to detach, so a
synced tool is never left pointing at nothing.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
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

		if err := service.DeleteSkill(ctx, skill.ID); err != nil {
			presenter.Error(err, "delete failed")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Deleted %s", skill.Name))
	},
}

func init() {
	rootCmd.AddCommand(withTracing(deleteCmd))
}
