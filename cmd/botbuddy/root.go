package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "botbuddy",
	Short: "BotBuddy runs scripted, interruptible phone conversations",
	Long: `BotBuddy drives insurance renewal calls from a declarative flow file.
The agent follows the script, survives interruptions and side questions,
and records branch suggestions whenever a customer goes off-map.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Directory containing the BotBuddy project")
	rootCmd.PersistentFlags().String("flow", "", "Flow definition file (default <dir>/flow.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}
