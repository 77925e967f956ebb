package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/goodtune/taglock/internal/storage"
)

var purgeOlderThanDays int

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete events and closed sessions older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store storage.Store) error {
			cutoff := time.Now().AddDate(0, 0, -purgeOlderThanDays)

			deletedEvents, err := store.Events().DeleteEventsBefore(cmd.Context(), cutoff)
			if err != nil {
				return fmt.Errorf("failed to purge events: %w", err)
			}
			deletedSessions, err := store.Sessions().DeleteClosedBefore(cmd.Context(), cutoff)
			if err != nil {
				return fmt.Errorf("failed to purge sessions: %w", err)
			}

			fmt.Printf("Deleted %d events and %d sessions older than %s.\n",
				deletedEvents, deletedSessions, cutoff.Format("2006-01-02"))
			return nil
		})
	},
}

func init() {
	purgeCmd.Flags().IntVar(&purgeOlderThanDays, "older-than", 90, "Retention window in days")
	rootCmd.AddCommand(purgeCmd)
}
