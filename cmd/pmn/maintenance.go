package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var remindDays int

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Mark active tenders past their deadline as expired",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer application.Close()

		n, err := application.Expire(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d tender(s) expired\n", n)
		return nil
	},
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send deadline reminders for tenders closing soon",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer application.Close()

		report, err := application.Remind(cmd.Context(), remindDays)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recipients=%d sent=%d failed=%d\n", report.Recipients, report.Sent, report.Failed)
		return nil
	},
}

func init() {
	remindCmd.Flags().IntVar(&remindDays, "days", 0, "reminder window in days (defaults to scheduler.reminderDays)")
	rootCmd.AddCommand(expireCmd, remindCmd)
}
