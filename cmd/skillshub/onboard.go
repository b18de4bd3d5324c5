package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skillshub/skillshub/pkg/presenter"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Discover and adopt skills already living in tool directories",
	Long: `Scan every installed tool's skills directory for skills that are not yet
managed and show an adoption plan. Nothing changes until you adopt.

Skills appearing in several tools with identical content adopt cleanly;
diverging copies are flagged as conflicts and require choosing a winning
tool with 'onboard adopt --from'.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		service, closer, err := openService(ctx)
		if err != nil {
			presenter.Error(err, "failed to open the skill repository")
			os.Exit(1)
		}
		defer closer()

		plan, err := service.OnboardingPlan(ctx)
		if err != nil {
			presenter.Error(err, "scan failed")
			os.Exit(1)
		}
		if len(plan.Candidates) == 0 {
			presenter.Info("No unmanaged skills found.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTOOLS\tSTATE")
		for _, candidate := range plan.Candidates {
			tools := make([]string, 0, len(candidate.Variants))
			for _, v := range candidate.Variants {
				tools = append(tools, v.Tool)
			}
			state := "ready"
			if candidate.Conflict {
				state = "conflict"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", candidate.Name, strings.Join(tools, ", "), state)
		}
		w.Flush()
		presenter.Info("Adopt with: skillshub onboard adopt <name> [--from <tool>], or --all")
	},
}

var onboardAdoptCmd = &cobra.Command{
	Use:   "adopt [name]",
	Short: "Adopt unmanaged skills into the central repository",
	Long: `Adopt a discovered skill: its content moves into the central repository
and every tool that carried a copy is re-linked to it.

Examples:
  skillshub onboard adopt pdf-tools
  skillshub onboard adopt pdf-tools --from cursor
  skillshub onboard adopt --all`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		all, _ := cmd.Flags().GetBool("all")
		fromTool, _ := cmd.Flags().GetString("from")

		service, closer, err := openService(ctx)
		if err != nil {
			presenter.Error(err, "failed to open the skill repository")
			os.Exit(1)
		}
		defer closer()

		if all {
			result, err := service.AdoptAll(ctx)
			if err != nil {
				presenter.Error(err, "adoption failed")
				os.Exit(1)
			}
			reportBatch(result)
			if result.Failed > 0 {
				os.Exit(1)
			}
			return
		}

		if len(args) == 0 {
			presenter.Warning("A skill name or --all is required")
			os.Exit(1)
		}

		skill, result, err := service.AdoptSkill(ctx, args[0], fromTool)
		if err != nil {
			presenter.Error(err, "adoption failed")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Adopted %s into the central repository", skill.Name))
		reportBatch(result)
	},
}

func init() {
	onboardAdoptCmd.Flags().Bool("all", false, "Adopt every non-conflicted candidate")
	onboardAdoptCmd.Flags().String("from", "", "Tool whose copy wins when variants conflict")
	onboardCmd.AddCommand(onboardAdoptCmd)
	rootCmd.AddCommand(onboardCmd)
}
