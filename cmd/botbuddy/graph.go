package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/VinayDangodra28/botbuddy/pkg/domain"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the flow graph visualization",
	Long:  `Inspects the flow file and outputs a Mermaid diagram (graph TD) representing the call logic.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := setupProject(cmd)
		if err != nil {
			return err
		}
		doc, err := project.loadFlow()
		if err != nil {
			return fmt.Errorf("error loading flow: %w", err)
		}

		fmt.Fprint(os.Stdout, generateMermaid(doc))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

// generateMermaid renders the branch transitions as a Mermaid graph.
// Output is sorted so diffs stay stable across runs.
func generateMermaid(doc *domain.Document) string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	ids := make([]string, 0, len(doc.Branches))
	for id := range doc.Branches {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		branch := doc.Branches[id]
		if branch.IsTerminal() {
			fmt.Fprintf(&b, "    %s([%s])\n", id, id)
		} else {
			fmt.Fprintf(&b, "    %s[%s]\n", id, id)
		}

		keys := make([]string, 0, len(branch.ExpectedResponses))
		for key := range branch.ExpectedResponses {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			rule := branch.ExpectedResponses[key]
			if rule.Next == "" {
				continue
			}
			fmt.Fprintf(&b, "    %s -->|%s| %s\n", id, key, rule.Next)
		}
	}
	return b.String()
}
