package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	port  int
	watch bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the comparison and chat API server",
		Long: `Start the HTTP API server used by the TUI, the CLI and the web front end.

Endpoints:
  GET  /api/health
  GET  /api/compare/health
  GET  /api/compare/colleges?query=
  POST /api/compare/branches
  POST /api/compare/compare
  GET  /api/chat/status
  POST /api/chat
  POST /api/chat/clear`,
		Run: func(cmd *cobra.Command, args []string) {
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("watch") {
				cfg.Server.Watch = watch
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Printf("Starting CET Compare API server...\n")
			fmt.Printf("Data directory: %s\n", cfg.DataDir)
			fmt.Printf("Port: %d\n\n", cfg.Server.Port)

			if err := StartServer(ctx, cfg); err != nil {
				HandleError(err, "Server failed")
			}
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&port, "port", "p", 5000, "Port to run the server on")
	serveCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload cutoff data when the CSV files change")
}
