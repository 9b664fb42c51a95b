/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/admingate/apiserver/config"
	"github.com/admingate/apiserver/internal/server"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the admingate backend server",
	Long: `Starts the admingate backend server. Usage:

	admingate server
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

		srv, err := server.New(cmd.Context(), cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
			os.Exit(1)
		}
		if err := srv.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
