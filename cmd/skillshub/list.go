package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillshub/skillshub/pkg/presenter"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List managed skills",
	Long:  `List every skill in the central repository with its source and sync targets.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		service, closer, err := openService(ctx)
		if err != nil {
			presenter.Error(err, "failed to open the skill repository")
			os.Exit(1)
		}
		defer closer()

		skills, err := service.ManagedSkills(ctx)
		if err != nil {
			presenter.Error(err, "failed to list skills")
			os.Exit(1)
		}
		if len(skills) == 0 {
			presenter.Info("No managed skills. Install one with: skillshub install <path-or-repo>")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSOURCE\tTARGETS\tUPDATED")
		for _, skill := range skills {
			targets := make([]string, 0, len(skill.Targets))
			for _, target := range skill.Targets {
				suffix := ""
				if target.Mode == "copy" {
					suffix = "(copy)"
				}
				targets = append(targets, target.Tool+suffix)
			}
			targetCol := strings.Join(targets, ", ")
			if targetCol == "" {
				targetCol = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				skill.Name, string(skill.SourceKind), targetCol,
				skill.UpdatedAt.Format(time.DateOnly))
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
