package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/VinayDangodra28/botbuddy/internal/flowgraph"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the flow graph for consistency",
	Long:  `Loads the flow file and reports broken transitions, unreachable branches, dead ends and cycles.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(cmd); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Flow is valid! ✅")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command) error {
	project, err := setupProject(cmd)
	if err != nil {
		return err
	}
	doc, err := project.loadFlow()
	if err != nil {
		return err
	}
	graph := flowgraph.New(doc)

	problems := graph.ValidateAll()
	if len(problems) > 0 {
		ids := make([]string, 0, len(problems))
		for id := range problems {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			for _, p := range problems[id] {
				fmt.Printf("  %s: %s\n", id, p)
			}
		}
		return fmt.Errorf("%d branch(es) with problems", len(problems))
	}

	report := graph.Audit()
	if !report.Clean() {
		for _, id := range report.Unreachable {
			fmt.Printf("  unreachable: %s\n", id)
		}
		for _, id := range report.DeadEnds {
			fmt.Printf("  dead end: %s\n", id)
		}
		for _, id := range report.NoTerminalPath {
			fmt.Printf("  no path to a terminal branch: %s\n", id)
		}
		for _, id := range report.InCycle {
			fmt.Printf("  on a cycle: %s\n", id)
		}
		return fmt.Errorf("audit found structural issues")
	}
	return nil
}
