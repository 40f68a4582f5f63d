package main

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the scraping schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer application.Close()

		logger.Info("pmn starting",
			"port", cfg.Server.Port,
			"schedule", cfg.Scheduler.CronExpression,
			"scheduler_disabled", cfg.Scheduler.Disabled,
			"database", cfg.Database.Driver,
		)
		return application.Serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
