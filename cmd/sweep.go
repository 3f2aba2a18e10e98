package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/loan-desk/internal/reminder"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one overdue sweep and exit",
	Long:  `Notify every overdue reservation that has not been reminded yet, then print the holders reached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := initializeDependencies()
		if err != nil {
			return err
		}
		defer deps.Close()

		notifier, stop := newNotifier(deps)
		scheduler := reminder.NewScheduler(deps.Reservations, notifier, deps.Config.Reservation.SweepInterval, deps.Logger)

		notified, err := scheduler.SweepOverdue(cmd.Context())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		stop(ctx)

		if err != nil {
			return fmt.Errorf("overdue sweep: %w", err)
		}
		for _, holder := range reminder.Holders(notified) {
			fmt.Fprintln(cmd.OutOrStdout(), holder)
		}
		return nil
	},
}
