package events_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frahmantamala/loan-desk/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestEvents(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Events Suite")
}

var _ = Describe("EventBus", func() {
	var bus *events.EventBus

	BeforeEach(func() {
		bus = events.NewEventBus(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
	})

	It("delivers async events to every subscriber, even after the caller's context ends", func() {
		var calls, cancelled atomic.Int32
		for i := 0; i < 3; i++ {
			bus.Subscribe(events.EventTypeItemCheckedOut, func(ctx context.Context, event events.Event) error {
				if ctx.Err() != nil {
					cancelled.Add(1)
				}
				calls.Add(1)
				return nil
			})
		}

		ctx, cancel := context.WithCancel(context.Background())
		evt := events.NewItemCheckedOutEvent("r1", "keyboard", "u1", "u1", 1, time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC))
		Expect(bus.Publish(ctx, evt)).To(Succeed())
		cancel()
		bus.Wait()

		Expect(calls.Load()).To(Equal(int32(3)))
		Expect(cancelled.Load()).To(BeZero())
	})

	It("surfaces the first synchronous handler failure", func() {
		bus.Subscribe(events.EventTypeReservationOverdue, func(ctx context.Context, event events.Event) error {
			return errors.New("mailbox full")
		})

		err := bus.PublishSync(context.Background(), events.NewReservationOverdueEvent("r1", "keyboard", "u1", "2025-03-08"))
		Expect(err).To(MatchError(ContainSubstring("mailbox full")))
	})

	It("ignores events nobody listens to", func() {
		Expect(bus.PublishSync(context.Background(), events.NewItemCheckedInEvent("r1", "keyboard", "u1", "u1", 1, false))).To(Succeed())
	})

	It("carries the payload fields in the event data", func() {
		evt := events.NewReservationOverdueEvent("r1", "keyboard", "u1", "2025-03-08")
		Expect(evt.EventType()).To(Equal(events.EventTypeReservationOverdue))
		Expect(evt.EventID()).NotTo(BeEmpty())
		Expect(evt.Payload()).To(HaveKeyWithValue("expiry_date", "2025-03-08"))
	})
})
