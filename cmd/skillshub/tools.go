package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skillshub/skillshub/pkg/presenter"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Show detected AI coding tools",
	Long: `Scan the machine for catalog tools and show which are installed, which
skills directory each uses, and which tools appeared since the last scan.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		service, closer, err := openService(ctx)
		if err != nil {
			presenter.Error(err, "failed to open the skill repository")
			os.Exit(1)
		}
		defer closer()

		status, err := service.ToolStatus(ctx)
		if err != nil {
			presenter.Error(err, "failed to detect tools")
			os.Exit(1)
		}

		newly := make(map[string]bool, len(status.NewlyInstalled))
		for _, key := range status.NewlyInstalled {
			newly[key] = true
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL\tINSTALLED\tSKILLS DIR")
		for _, state := range status.Tools {
			installed := "no"
			switch {
			case state.Installed && newly[state.Tool.Key]:
				installed = "yes (new)"
			case state.Installed:
				installed = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t~/%s\n", state.Tool.Key, installed, state.Tool.SkillsDir)
		}
		w.Flush()

		if len(status.NewlyInstalled) > 0 {
			presenter.Info(fmt.Sprintf("Newly installed since last scan: %v", status.NewlyInstalled))
		}
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
