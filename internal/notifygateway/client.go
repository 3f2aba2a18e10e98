package notifygateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/loan-desk/internal"
	"github.com/frahmantamala/loan-desk/internal/core/events"
	"github.com/frahmantamala/loan-desk/internal/reminder"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrQueueFull    = errors.New("reminder queue full, please try again later")
	ErrShuttingDown = errors.New("reminder gateway is shutting down")
)

type ReminderJob struct {
	Reminder   reminder.Reminder
	EnqueuedAt time.Time
}

// Payload is the JSON body POSTed to the webhook for every reminder.
type Payload struct {
	Type          string    `json:"type"`
	ReservationID string    `json:"reservation_id"`
	Holder        string    `json:"holder"`
	ItemID        string    `json:"item_id"`
	ExpiryDate    string    `json:"expiry_date"`
	SentAt        time.Time `json:"sent_at"`
}

type Worker struct {
	ID         int
	WorkerPool chan chan ReminderJob
	JobChannel chan ReminderJob
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan ReminderJob, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan ReminderJob),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(ReminderJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing reminder", "worker_id", w.ID, "reservation_id", job.Reminder.ReservationID)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type Config struct {
	WebhookURL     string
	APIKey         string
	RequestTimeout time.Duration
	MaxWorkers     int
	JobQueueSize   int
}

func ConfigFrom(cfg internal.NotificationConfig) Config {
	return Config{
		WebhookURL:     cfg.WebhookURL,
		APIKey:         cfg.APIKey,
		RequestTimeout: cfg.RequestTimeout,
		MaxWorkers:     cfg.MaxWorkers,
		JobQueueSize:   cfg.JobQueueSize,
	}
}

// Client delivers reminders to an HTTP webhook through a bounded worker pool.
// Notify only enqueues; delivery failures are logged by the worker.
type Client struct {
	webhookURL string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	jobQueue   chan ReminderJob
	workerPool chan chan ReminderJob
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	pending    sync.WaitGroup
	mu         sync.RWMutex
	closed     bool
	once       sync.Once

	delivered atomic.Int64
	failed    atomic.Int64
}

func NewClient(config Config, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		webhookURL: config.WebhookURL,
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan ReminderJob, jobQueueSize),
		workerPool: make(chan chan ReminderJob, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}

	client.startWorkerPool()

	return client
}

func (c *Client) startWorkerPool() {
	c.once.Do(func() {
		for i := 0; i < c.maxWorkers; i++ {
			worker := NewWorker(i, c.workerPool, c.logger)
			worker.Start(c.ctx, &c.wg, c.processReminderJob)
		}

		c.wg.Add(1)
		go c.dispatch()

		c.logger.Info("reminder gateway worker pool started",
			"max_workers", c.maxWorkers,
			"queue_size", cap(c.jobQueue))
	})
}

func (c *Client) dispatch() {
	defer c.wg.Done()

	for {
		select {
		case job := <-c.jobQueue:
			select {
			case jobChannel := <-c.workerPool:
				select {
				case jobChannel <- job:
				case <-c.ctx.Done():
					c.pending.Done()
					c.logger.Info("dispatcher shutting down")
					return
				}
			case <-c.ctx.Done():
				c.pending.Done()
				c.logger.Info("dispatcher shutting down")
				return
			}
		case <-c.ctx.Done():
			c.logger.Info("dispatcher shutting down")
			return
		}
	}
}

// Notify queues a reminder for delivery. A full queue is reported as an error
// so the caller can retry the reminder on its next pass.
func (c *Client) Notify(ctx context.Context, r reminder.Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrShuttingDown
	}

	c.pending.Add(1)
	select {
	case c.jobQueue <- ReminderJob{Reminder: r, EnqueuedAt: time.Now().UTC()}:
		c.logger.Debug("reminder queued",
			"reservation_id", r.ReservationID,
			"holder", r.Holder,
			"queue_length", len(c.jobQueue))
		return nil
	default:
		c.pending.Done()
		c.logger.Warn("reminder queue full, rejecting",
			"reservation_id", r.ReservationID,
			"queue_capacity", cap(c.jobQueue))
		return ErrQueueFull
	}
}

// Shutdown stops accepting reminders and waits for queued ones to be
// delivered until ctx expires. Whatever is still queued then is dropped.
func (c *Client) Shutdown(ctx context.Context) {
	c.logger.Info("shutting down reminder gateway client")
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		c.logger.Warn("reminder gateway shutdown timed out", "dropped", len(c.jobQueue))
	}

	c.cancel()
	c.wg.Wait()
	c.logger.Info("reminder gateway client shutdown complete",
		"delivered", c.delivered.Load(),
		"failed", c.failed.Load())
}

// Stats returns the number of delivered and failed reminders so far.
func (c *Client) Stats() (delivered, failed int64) {
	return c.delivered.Load(), c.failed.Load()
}

func (c *Client) processReminderJob(job ReminderJob) {
	defer c.pending.Done()

	if err := c.send(job.Reminder); err != nil {
		c.failed.Add(1)
		c.logger.Error("reminder delivery failed",
			"reservation_id", job.Reminder.ReservationID,
			"holder", job.Reminder.Holder,
			"error", err)
		return
	}

	c.delivered.Add(1)
	c.logger.Info("reminder delivered",
		"reservation_id", job.Reminder.ReservationID,
		"holder", job.Reminder.Holder,
		"queued_ms", time.Since(job.EnqueuedAt).Milliseconds())
}

func (c *Client) send(r reminder.Reminder) error {
	payload := Payload{
		Type:          events.EventTypeReservationOverdue,
		ReservationID: r.ReservationID,
		Holder:        r.Holder,
		ItemID:        r.ItemID,
		ExpiryDate:    r.ExpiryDate,
		SentAt:        time.Now().UTC(),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal reminder: %w", err)
	}

	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
