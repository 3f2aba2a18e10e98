package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/loan-desk/internal/notifygateway"
	"github.com/frahmantamala/loan-desk/internal/reminder"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start and manage background workers such as the overdue reminder scheduler.`,
}

var reminderWorkerCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Start the overdue reminder scheduler",
	Long:  `Sweep overdue reservations on a fixed interval and deliver one reminder per reservation`,
	Run: func(cmd *cobra.Command, args []string) {
		startReminderWorker()
	},
}

var (
	maxWorkers    int
	jobQueueSize  int
	apiKey        string
	webhookURL    string
	sweepInterval time.Duration
)

// newNotifier picks the webhook gateway when one is configured and falls
// back to publishing reminders on the event bus. The returned stop func
// drains the gateway.
func newNotifier(deps *Dependencies) (reminder.Notifier, func(context.Context)) {
	cfg := notifygateway.ConfigFrom(deps.Config.Notification)
	cfg.WebhookURL = getStringFlag(webhookURL, cfg.WebhookURL)
	cfg.APIKey = getStringFlag(apiKey, cfg.APIKey)
	cfg.MaxWorkers = getIntFlag(maxWorkers, cfg.MaxWorkers)
	cfg.JobQueueSize = getIntFlag(jobQueueSize, cfg.JobQueueSize)

	if cfg.WebhookURL == "" {
		deps.Logger.Info("no webhook configured, reminders go to the event bus")
		return reminder.NewEventNotifier(deps.EventBus), func(context.Context) {}
	}

	deps.Logger.Info("delivering reminders by webhook",
		"webhook_url", cfg.WebhookURL,
		"max_workers", cfg.MaxWorkers,
		"job_queue_size", cfg.JobQueueSize)

	client := notifygateway.NewClient(cfg, deps.Logger)
	return client, func(ctx context.Context) {
		client.Shutdown(ctx)
		delivered, failed := client.Stats()
		deps.Logger.Info("notification gateway drained", "delivered", delivered, "failed", failed)
	}
}

func startReminderWorker() {
	deps, err := initializeDependencies()
	if err != nil {
		exitOnError("failed to initialize dependencies", err)
	}
	defer deps.Close()

	notifier, stop := newNotifier(deps)
	interval := deps.Config.Reservation.SweepInterval
	if sweepInterval > 0 {
		interval = sweepInterval
	}
	scheduler := reminder.NewScheduler(deps.Reservations, notifier, interval, deps.Logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps.Logger.Info("reminder worker is running. Press Ctrl+C to stop.")
	if err := scheduler.Run(ctx); err != nil {
		deps.Logger.Error("reminder scheduler stopped with error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	stop(shutdownCtx)
	deps.Logger.Info("reminder worker shutdown complete")
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	reminderWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of webhook workers")
	reminderWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Reminder job queue size")
	reminderWorkerCmd.Flags().StringVar(&apiKey, "api-key", "", "Webhook API key")
	reminderWorkerCmd.Flags().StringVar(&webhookURL, "webhook-url", "", "Webhook URL for reminders")
	reminderWorkerCmd.Flags().DurationVar(&sweepInterval, "interval", 0, "Sweep interval")

	workerCmd.AddCommand(reminderWorkerCmd)
}
