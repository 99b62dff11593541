package main

import (
	"fmt"
	"strings"

	"github.com/VinayDangodra28/botbuddy"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of botbuddy",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("botbuddy version %s\n", strings.TrimSpace(botbuddy.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
