package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skillshub/skillshub/pkg/presenter"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates <path-or-repo>",
	Short: "List installable skills in a source",
	Long: `Enumerate the skill candidates of a local directory or git repository
without installing anything. Invalid local folders are listed with the
reason they were rejected.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		source := args[0]

		service, closer, err := openService(ctx)
		if err != nil {
			presenter.Error(err, "failed to open the skill repository")
			os.Exit(1)
		}
		defer closer()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		if info, statErr := os.Stat(source); statErr == nil && info.IsDir() {
			candidates, err := service.LocalCandidates(ctx, source)
			if err != nil {
				presenter.Error(err, "discovery failed")
				os.Exit(1)
			}
			fmt.Fprintln(w, "NAME\tSUBPATH\tVALID\tREASON")
			for _, c := range candidates {
				valid := "yes"
				if !c.Valid {
					valid = "no"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.Subpath, valid, c.Reason)
			}
			w.Flush()
			return
		}

		candidates, err := service.GitCandidates(ctx, source)
		if err != nil {
			presenter.Error(err, "discovery failed")
			os.Exit(1)
		}
		fmt.Fprintln(w, "NAME\tSUBPATH\tDESCRIPTION")
		for _, c := range candidates {
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.Subpath, c.Description)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(candidatesCmd)
}
