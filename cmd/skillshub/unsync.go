package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillshub/skillshub/pkg/presenter"
)

var unsyncCmd = &cobra.Command{
	Use:   "unsync <skill> <tool>...",
	Short: "Remove a managed skill from tool directories",
	Long: `Remove a skill's entry from one or more tool directories without touching
the central copy. Tools sharing a physical skills directory are detached
together.`,
	Args: cobra.MinimumNArgs(2),
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

		failed := false
		for _, tool := range args[1:] {
			if err := service.UnsyncSkillFromTool(ctx, skill.ID, tool); err != nil {
				presenter.Warning(fmt.Sprintf("%s: %s", tool, err))
				failed = true
				continue
			}
			presenter.Success(fmt.Sprintf("%s removed from %s", skill.Name, tool))
		}
		if failed {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(withTracing(unsyncCmd))
}
