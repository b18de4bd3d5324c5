package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillshub/skillshub/pkg/presenter"
)

var showCmd = &cobra.Command{
	Use:   "show <skill>",
	Short: "Show a managed skill",
	Long:  `Show the details and SKILL.md content of a managed skill, by name or id.`,
	Args:  cobra.ExactArgs(1),
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

		presenter.Section(skill.Name)
		fmt.Printf("id:        %s\n", skill.ID)
		fmt.Printf("source:    %s", skill.SourceKind)
		if skill.SourceRef != "" {
			fmt.Printf(" (%s)", skill.SourceRef)
		}
		fmt.Println()
		if skill.SourceRevision != "" {
			fmt.Printf("revision:  %s\n", skill.SourceRevision)
		}
		fmt.Printf("path:      %s\n", skill.CentralPath)
		if skill.ContentHash != "" {
			fmt.Printf("hash:      %s\n", skill.ContentHash)
		}
		for _, target := range skill.Targets {
			fmt.Printf("target:    %s [%s] %s\n", target.Tool, target.Mode, target.TargetPath)
		}

		body, err := service.ReadSkillContent(ctx, skill.ID)
		if err != nil {
			presenter.Error(err, "failed to read skill content")
			os.Exit(1)
		}
		fmt.Println()
		fmt.Println(body)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
