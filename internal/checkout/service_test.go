package checkout_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/loan-desk/internal"
	"github.com/frahmantamala/loan-desk/internal/access"
	accessPostgres "github.com/frahmantamala/loan-desk/internal/access/postgres"
	"github.com/frahmantamala/loan-desk/internal/checkout"
	"github.com/frahmantamala/loan-desk/internal/clock"
	"github.com/frahmantamala/loan-desk/internal/core/events"
	"github.com/frahmantamala/loan-desk/internal/reservation"
	reservationPostgres "github.com/frahmantamala/loan-desk/internal/reservation/postgres"
	"github.com/frahmantamala/loan-desk/internal/testutil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCheckout(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Checkout Suite")
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) record(_ context.Context, e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) all() []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]events.Event(nil), l.events...)
}

var _ = Describe("Checkout Service", func() {
	var (
		ctx     context.Context
		clk     *clock.Manual
		bus     *events.EventBus
		log     *eventLog
		acl     *access.Service
		store   *reservation.Service
		service *checkout.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err := testutil.NewSQLite()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)
		Expect(testutil.SeedItem(db, "Keyboard", "Keyboard", 2)).To(Succeed())

		clk = clock.NewManual(time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC))
		store = reservation.NewService(reservationPostgres.NewReservationRepository(db.Gorm), logger,
			reservation.WithClock(clk),
			reservation.WithReport(reservationPostgres.NewOverdueReport(db.SQL)))
		acl = access.NewService(accessPostgres.NewAccessRepository(db.Gorm), logger)

		bus = events.NewEventBus(logger)
		log = &eventLog{}
		bus.Subscribe(events.EventTypeItemCheckedOut, log.record)
		bus.Subscribe(events.EventTypeItemCheckedIn, log.record)

		service = checkout.NewService(store, acl, bus, logger)

		student, err := acl.CreatePermissionFlag(ctx, access.CreateFlagDTO{Name: "student", Actions: []access.Action{access.ActionCheckout}})
		Expect(err).NotTo(HaveOccurred())
		desk, err := acl.CreatePermissionFlag(ctx, access.CreateFlagDTO{
			Name:    "desk",
			Actions: []access.Action{access.ActionCheckout, access.ActionCheckin, access.ActionViewReservations},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(acl.Promote(ctx, "alice", student.ID)).To(Succeed())
		Expect(acl.Promote(ctx, "bob", student.ID)).To(Succeed())
		Expect(acl.Promote(ctx, "desk-1", desk.ID)).To(Succeed())
	})

	Describe("Checkout", func() {
		It("reserves for a permitted holder and publishes the checkout", func() {
			res, err := service.Checkout(ctx, checkout.CheckoutRequest{Actor: "alice", Holder: "alice", ItemID: "Keyboard", Quantity: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Holder).To(Equal("alice"))

			bus.Wait()
			recorded := log.all()
			Expect(recorded).To(HaveLen(1))
			out, ok := recorded[0].(*events.ItemCheckedOutEvent)
			Expect(ok).To(BeTrue())
			Expect(out.ReservationID).To(Equal(res.ID))
			Expect(out.Quantity).To(Equal(2))
		})

		It("fails fast when the holder lacks the checkout action", func() {
			_, err := service.Checkout(ctx, checkout.CheckoutRequest{Actor: "mallory", Holder: "mallory", ItemID: "Keyboard", Quantity: 1})
			Expect(errors.Is(err, internal.ErrForbiddenAction)).To(BeTrue())

			active, err := store.FindActive(ctx, "Keyboard")
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeNil())

			bus.Wait()
			Expect(log.all()).To(BeEmpty())
		})

		It("requires a holder", func() {
			_, err := service.Checkout(ctx, checkout.CheckoutRequest{Actor: "alice", ItemID: "Keyboard", Quantity: 1})
			Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeTrue())
		})

		It("lets desk staff check out for a permitted holder", func() {
			res, err := service.Checkout(ctx, checkout.CheckoutRequest{Actor: "desk-1", Holder: "bob", ItemID: "Keyboard", Quantity: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Holder).To(Equal("bob"))
		})

		It("refuses an actor without checkout acting for someone else", func() {
			_, err := service.Checkout(ctx, checkout.CheckoutRequest{Actor: "mallory", Holder: "bob", ItemID: "Keyboard", Quantity: 1})
			Expect(errors.Is(err, internal.ErrForbiddenAction)).To(BeTrue())
		})

		It("passes store errors through unchanged", func() {
			_, err := service.Checkout(ctx, checkout.CheckoutRequest{Actor: "alice", Holder: "alice", ItemID: "Keyboard", Quantity: 3})
			Expect(errors.Is(err, internal.ErrInsufficientQuantity)).To(BeTrue())

			_, err = service.Checkout(ctx, checkout.CheckoutRequest{Actor: "alice", Holder: "alice", ItemID: "Keyboard", Quantity: 0})
			Expect(errors.Is(err, internal.ErrInvalidQuantity)).To(BeTrue())
		})

		It("stops allowing checkout once the holder is demoted", func() {
			flags, err := acl.FlagsOf(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(acl.Demote(ctx, "alice", flags[0].ID)).To(Succeed())

			_, err = service.Checkout(ctx, checkout.CheckoutRequest{Actor: "alice", Holder: "alice", ItemID: "Keyboard", Quantity: 1})
			Expect(errors.Is(err, internal.ErrForbiddenAction)).To(BeTrue())
		})
	})

	Describe("Checkin", func() {
		BeforeEach(func() {
			_, err := service.Checkout(ctx, checkout.CheckoutRequest{Actor: "alice", Holder: "alice", ItemID: "Keyboard", Quantity: 2})
			Expect(err).NotTo(HaveOccurred())
		})

		It("requires the checkin action of the actor", func() {
			_, err := service.Checkin(ctx, checkout.CheckinRequest{Actor: "alice", ItemID: "Keyboard"})
			Expect(errors.Is(err, internal.ErrForbiddenAction)).To(BeTrue())

			active, err := service.FindActive(ctx, "Keyboard")
			Expect(err).NotTo(HaveOccurred())
			Expect(active).NotTo(BeNil())
		})

		It("returns the item and reports an overdue return", func() {
			clk.Advance(8 * 24 * time.Hour)

			res, err := service.Checkin(ctx, checkout.CheckinRequest{Actor: "desk-1", ItemID: "Keyboard"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Holder).To(Equal("alice"))

			bus.Wait()
			var in *events.ItemCheckedInEvent
			for _, e := range log.all() {
				if ev, ok := e.(*events.ItemCheckedInEvent); ok {
					in = ev
				}
			}
			Expect(in).NotTo(BeNil())
			Expect(in.Overdue).To(BeTrue())
			Expect(in.Actor).To(Equal("desk-1"))

			item, err := store.GetItem(ctx, "Keyboard")
			Expect(err).NotTo(HaveOccurred())
			Expect(item.Available).To(Equal(2))
		})
	})

	Describe("read models", func() {
		BeforeEach(func() {
			_, err := service.Checkout(ctx, checkout.CheckoutRequest{Actor: "alice", Holder: "alice", ItemID: "Keyboard", Quantity: 1})
			Expect(err).NotTo(HaveOccurred())
		})

		It("lists the caller's own loans without extra permission", func() {
			rs, err := service.ListByHolder(ctx, "alice", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(rs).To(HaveLen(1))
		})

		It("needs view_reservations to read another holder's loans", func() {
			_, err := service.ListByHolder(ctx, "bob", "alice")
			Expect(errors.Is(err, internal.ErrForbiddenAction)).To(BeTrue())

			rs, err := service.ListByHolder(ctx, "desk-1", "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(rs).To(HaveLen(1))
		})

		It("shows the overdue report to desk staff only", func() {
			clk.Advance(8 * 24 * time.Hour)

			_, err := service.ListOverdue(ctx, "alice")
			Expect(errors.Is(err, internal.ErrForbiddenAction)).To(BeTrue())

			entries, err := service.ListOverdue(ctx, "desk-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Holder).To(Equal("alice"))
		})
	})
})
