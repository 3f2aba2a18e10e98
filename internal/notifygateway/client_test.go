package notifygateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/loan-desk/internal/notifygateway"
	"github.com/frahmantamala/loan-desk/internal/reminder"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestNotifyGateway(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Notify Gateway Suite")
}

type webhookRecorder struct {
	mu       sync.Mutex
	payloads []notifygateway.Payload
	auth     []string
}

func (w *webhookRecorder) received() []notifygateway.Payload {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]notifygateway.Payload(nil), w.payloads...)
}

var _ = Describe("Client", func() {
	var (
		logger   *slog.Logger
		recorder *webhookRecorder
		server   *httptest.Server
		status   int
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		recorder = &webhookRecorder{}
		status = http.StatusAccepted

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var p notifygateway.Payload
			if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			recorder.mu.Lock()
			recorder.payloads = append(recorder.payloads, p)
			recorder.auth = append(recorder.auth, r.Header.Get("Authorization"))
			recorder.mu.Unlock()
			w.WriteHeader(status)
		}))
		DeferCleanup(server.Close)
	})

	keyboard := reminder.Reminder{
		ReservationID: "res-1",
		Holder:        "alice",
		ItemID:        "keyboard",
		ExpiryDate:    "2025-03-08",
	}

	It("posts each queued reminder to the webhook", func() {
		client := notifygateway.NewClient(notifygateway.Config{
			WebhookURL: server.URL,
			APIKey:     "relay-key",
			MaxWorkers: 2,
		}, logger)

		Expect(client.Notify(context.Background(), keyboard)).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Shutdown(ctx)

		payloads := recorder.received()
		Expect(payloads).To(HaveLen(1))
		Expect(payloads[0].Type).To(Equal("reservation.overdue"))
		Expect(payloads[0].Holder).To(Equal("alice"))
		Expect(payloads[0].ItemID).To(Equal("keyboard"))
		Expect(payloads[0].ExpiryDate).To(Equal("2025-03-08"))
		Expect(recorder.auth[0]).To(Equal("Bearer relay-key"))

		delivered, failed := client.Stats()
		Expect(delivered).To(Equal(int64(1)))
		Expect(failed).To(BeZero())
	})

	It("counts webhook rejections as failed deliveries", func() {
		status = http.StatusInternalServerError
		client := notifygateway.NewClient(notifygateway.Config{WebhookURL: server.URL}, logger)

		Expect(client.Notify(context.Background(), keyboard)).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Shutdown(ctx)

		delivered, failed := client.Stats()
		Expect(delivered).To(BeZero())
		Expect(failed).To(Equal(int64(1)))
	})

	It("reports a full queue instead of blocking", func() {
		release := make(chan struct{})
		blocking := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
			w.WriteHeader(http.StatusOK)
		}))
		DeferCleanup(blocking.Close)

		client := notifygateway.NewClient(notifygateway.Config{
			WebhookURL:   blocking.URL,
			MaxWorkers:   1,
			JobQueueSize: 1,
		}, logger)

		var queueFull error
		Eventually(func() error {
			queueFull = client.Notify(context.Background(), keyboard)
			return queueFull
		}, 2*time.Second, time.Millisecond).Should(MatchError(notifygateway.ErrQueueFull))

		close(release)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Shutdown(ctx)
	})

	It("refuses reminders after shutdown", func() {
		client := notifygateway.NewClient(notifygateway.Config{WebhookURL: server.URL}, logger)
		client.Shutdown(context.Background())

		err := client.Notify(context.Background(), keyboard)
		Expect(errors.Is(err, notifygateway.ErrShuttingDown)).To(BeTrue())
	})

	It("does not queue for a cancelled caller", func() {
		client := notifygateway.NewClient(notifygateway.Config{WebhookURL: server.URL}, logger)
		defer client.Shutdown(context.Background())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(client.Notify(ctx, keyboard)).To(MatchError(context.Canceled))
	})
})
