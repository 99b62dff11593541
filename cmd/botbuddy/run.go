package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/VinayDangodra28/botbuddy"
	"github.com/VinayDangodra28/botbuddy/internal/tui"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interactive conversation in the terminal",
	Long: `Starts a call against the flow file and lets you play the customer.
Type 'exit' or 'quit' to hang up early.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := setupProject(cmd)
		if err != nil {
			return err
		}

		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		plain, _ := cmd.Flags().GetBool("plain")

		eng, closeStore, err := project.newEngine(cmd)
		if err != nil {
			return fmt.Errorf("error initializing botbuddy: %w", err)
		}
		defer closeStore()

		interactive := term.IsTerminal(int(os.Stdout.Fd())) && !plain
		render := func(s string) string { return s }
		if interactive {
			tui.PrintBanner(botbuddy.Version)
			render = tui.NewRenderer()
		}

		ctx := cmd.Context()
		opening, err := eng.Open(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to open session: %w", err)
		}
		fmt.Print(render("**Agent:** " + opening.Reply))
		fmt.Println()

		reader := bufio.NewReader(os.Stdin)
		for {
			fmt.Print("> ")
			text, err := reader.ReadString('\n')
			if err != nil {
				fmt.Println("\nBye!")
				return nil
			}
			utterance := strings.TrimSpace(text)
			if utterance == "" {
				continue
			}
			if utterance == "exit" || utterance == "quit" {
				fmt.Println("Bye!")
				return nil
			}

			result, err := eng.Converse(ctx, sessionID, utterance)
			if err != nil {
				return fmt.Errorf("turn failed: %w", err)
			}
			fmt.Print(render("**Agent:** " + result.Reply))
			fmt.Println()

			if !result.Continue {
				if result.FinalMessage != "" && result.FinalMessage != result.Reply {
					fmt.Print(render("**Agent:** " + result.FinalMessage))
					fmt.Println()
				}
				return nil
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("session", "", "Session ID to open or resume (default: random)")
	runCmd.Flags().Bool("plain", false, "Disable markdown rendering and the banner")
}
