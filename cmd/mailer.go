/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/admingate/apiserver/config"
	"github.com/admingate/apiserver/internal/mailer"
	"github.com/admingate/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// mailerCmd runs the worker that drains the mail queue. It is only useful
// when MQ_BACKEND is set; without a broker the server delivers mail itself.
var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Runs the outbound mail worker",
	Long: `Consumes queued mail jobs from the configured broker and delivers
them over SMTP. Requires MQ_BACKEND to be set to rabbitmq or pubsub.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

		backend, err := mq.NewBackend(cmd.Context(), cfg.MQ)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect broker: %v\n", err)
			os.Exit(1)
		}
		if backend == nil {
			fmt.Fprintln(os.Stderr, "MQ_BACKEND must be configured for the mailer worker")
			os.Exit(1)
		}
		defer backend.Close()

		worker := mailer.NewWorker(mailer.NewSMTPSender(cfg.Mail), backend, cfg.MQ.Channel, logger)
		if err := worker.Run(cmd.Context()); err != nil && !errors.Is(err, cmd.Context().Err()) {
			fmt.Fprintf(os.Stderr, "mailer worker error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mailerCmd)
}
