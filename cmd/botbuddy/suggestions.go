package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var suggestionsCmd = &cobra.Command{
	Use:   "suggestions",
	Short: "Review pending flow improvements",
	Long: `Conversations that go off-script stage branch suggestions instead of
mutating the live flow. These commands list, preview, apply and discard
the pending log.`,
}

var suggestionsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List pending suggestions",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := setupProject(cmd)
		if err != nil {
			return err
		}
		eng, closeStore, err := project.newEngine(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		ops := eng.Graph().PendingOperations()
		if len(ops) == 0 {
			fmt.Println("No pending suggestions.")
			return nil
		}

		for i, op := range ops {
			fmt.Printf("[%d] %s %s", i, strings.ToUpper(string(op.Type)), op.BranchID)
			if len(op.CalledWhen) > 0 {
				fmt.Printf("  (rewires: %d)", len(op.CalledWhen))
			}
			fmt.Printf("  %s\n", op.Timestamp.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var suggestionsPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Preview the effect of applying the pending suggestions",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := setupProject(cmd)
		if err != nil {
			return err
		}
		eng, closeStore, err := project.newEngine(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		preview := eng.Graph().PreviewEffect()
		printList := func(label string, ids []string) {
			if len(ids) == 0 {
				return
			}
			fmt.Printf("%s:\n", label)
			for _, id := range ids {
				fmt.Println("  - " + id)
			}
		}
		printList("Creates", preview.Creates)
		printList("Updates", preview.Updates)
		printList("Deletes", preview.Deletes)
		printList("Conflicts", preview.Conflicts)
		if len(preview.Creates)+len(preview.Updates)+len(preview.Deletes)+len(preview.Conflicts) == 0 {
			fmt.Println("Nothing to apply.")
		}
		return nil
	},
}

var suggestionsApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply pending suggestions to the flow file",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := setupProject(cmd)
		if err != nil {
			return err
		}
		eng, closeStore, err := project.newEngine(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		indices, _ := cmd.Flags().GetIntSlice("indices")
		result := eng.Graph().ApplySuggestions(indices)

		fmt.Printf("Applied %d, failed %d\n", result.Applied, result.Failed)
		for _, msg := range result.Errors {
			fmt.Println("  ! " + msg)
		}
		if result.Failed > 0 {
			os.Exit(1)
		}
		return nil
	},
}

var suggestionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard all pending suggestions",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := setupProject(cmd)
		if err != nil {
			return err
		}
		eng, closeStore, err := project.newEngine(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		eng.Graph().ClearSuggestions()
		fmt.Println("Pending suggestions cleared.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(suggestionsCmd)
	suggestionsCmd.AddCommand(suggestionsLsCmd)
	suggestionsCmd.AddCommand(suggestionsPreviewCmd)
	suggestionsCmd.AddCommand(suggestionsApplyCmd)
	suggestionsCmd.AddCommand(suggestionsClearCmd)

	suggestionsApplyCmd.Flags().IntSlice("indices", nil, "Log indices to apply (default: all)")
}
