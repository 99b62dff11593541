package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/VinayDangodra28/botbuddy/pkg/adapters/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the conversation engine as an MCP server, so AI agents can drive
calls and review branch suggestions as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := setupProject(cmd)
		if err != nil {
			return err
		}
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		eng, closeStore, err := project.newEngine(cmd)
		if err != nil {
			log.Fatalf("Error initializing botbuddy: %v", err)
		}
		defer closeStore()

		// Keep Stdout clean for JSON-RPC; everything else goes to Stderr.
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		slog.SetDefault(logger)

		srv := mcp.NewServer(eng.Graph(), eng.Controller(), eng.SessionManager())

		switch transport {
		case "stdio":
			log.SetOutput(os.Stderr)
			slog.Info("Starting BotBuddy MCP server (stdio)...")
			if err := srv.ServeStdio(); err != nil {
				slog.Error("MCP server execution failed", "error", err)
				os.Exit(1)
			}
		case "sse":
			slog.Info("Starting BotBuddy MCP server (SSE)", "port", port)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ServeSSE(ctx, port); err != nil {
				if err != http.ErrServerClosed {
					slog.Error("MCP server execution failed", "error", err)
					os.Exit(1)
				}
			}
			slog.Info("MCP server stopped gracefully")
		default:
			log.Fatalf("Unknown transport: %s. Supported: stdio, sse", transport)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
}
