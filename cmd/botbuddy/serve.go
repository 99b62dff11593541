package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/VinayDangodra28/botbuddy"
	httpadapter "github.com/VinayDangodra28/botbuddy/pkg/adapters/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the conversation engine in server mode, exposing a JSON API over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := setupProject(cmd)
		if err != nil {
			return err
		}
		port, _ := cmd.Flags().GetString("port")

		reg := prometheus.NewRegistry()
		eng, closeStore, err := project.newEngine(cmd, botbuddy.WithMetrics(reg))
		if err != nil {
			return fmt.Errorf("error initializing botbuddy: %w", err)
		}
		defer closeStore()

		handler := httpadapter.NewHandler(
			eng.Graph(), eng.Controller(), eng.SessionManager(),
			httpadapter.WithLogger(project.logger),
			httpadapter.WithMetricsGatherer(reg),
		)

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: handler,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting BotBuddy server on %s\n", srv.Addr)
			fmt.Printf("Serving flow from: %s\n", project.flowPath)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			fmt.Println("BotBuddy server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
}
