package reservation_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/frahmantamala/loan-desk/internal"
	"github.com/frahmantamala/loan-desk/internal/clock"
	itemDatamodel "github.com/frahmantamala/loan-desk/internal/core/datamodel/item"
	reservationDatamodel "github.com/frahmantamala/loan-desk/internal/core/datamodel/reservation"
	"github.com/frahmantamala/loan-desk/internal/reservation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestReservationService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Reservation Service Suite")
}

// MockRepository keeps items and reservations in maps and can be told to fail.
type MockRepository struct {
	items        map[string]*itemDatamodel.Item
	reservations map[string]*reservationDatamodel.Reservation
	failError    error
	reserveCalls int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		items:        make(map[string]*itemDatamodel.Item),
		reservations: make(map[string]*reservationDatamodel.Reservation),
	}
}

func (m *MockRepository) SetShouldFail(err error) {
	m.failError = err
}

func (m *MockRepository) CreateItem(_ context.Context, item *itemDatamodel.Item) error {
	if m.failError != nil {
		return m.failError
	}
	m.items[item.ID] = item
	return nil
}

func (m *MockRepository) GetItem(_ context.Context, itemID string) (*itemDatamodel.Item, error) {
	if m.failError != nil {
		return nil, m.failError
	}
	item, ok := m.items[itemID]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (m *MockRepository) Reserve(_ context.Context, res *reservationDatamodel.Reservation) (bool, error) {
	m.reserveCalls++
	if m.failError != nil {
		return false, m.failError
	}
	item, ok := m.items[res.ItemID]
	if !ok || item.ReservationID != nil || item.Available < res.Quantity {
		return false, nil
	}
	item.Available -= res.Quantity
	id := res.ID
	item.ReservationID = &id
	cp := *res
	m.reservations[res.ItemID] = &cp
	return true, nil
}

func (m *MockRepository) Release(_ context.Context, res *reservationDatamodel.Reservation) (bool, error) {
	if m.failError != nil {
		return false, m.failError
	}
	item, ok := m.items[res.ItemID]
	if !ok || item.ReservationID == nil || *item.ReservationID != res.ID {
		return false, nil
	}
	item.Available += res.Quantity
	item.ReservationID = nil
	delete(m.reservations, res.ItemID)
	return true, nil
}

func (m *MockRepository) FindByItem(_ context.Context, itemID string) (*reservationDatamodel.Reservation, error) {
	if m.failError != nil {
		return nil, m.failError
	}
	res, ok := m.reservations[itemID]
	if !ok {
		return nil, nil
	}
	cp := *res
	return &cp, nil
}

func (m *MockRepository) ListByHolder(_ context.Context, holder string) ([]*reservationDatamodel.Reservation, error) {
	if m.failError != nil {
		return nil, m.failError
	}
	var out []*reservationDatamodel.Reservation
	for _, res := range m.reservations {
		if res.Holder == holder {
			out = append(out, res)
		}
	}
	return out, nil
}

func (m *MockRepository) ListDue(_ context.Context, now time.Time) ([]*reservationDatamodel.Reservation, error) {
	if m.failError != nil {
		return nil, m.failError
	}
	var out []*reservationDatamodel.Reservation
	for _, res := range m.reservations {
		if !res.ExpiryTime.After(now) && !res.Notified {
			out = append(out, res)
		}
	}
	return out, nil
}

func (m *MockRepository) ClaimNotification(_ context.Context, id string) (bool, error) {
	if m.failError != nil {
		return false, m.failError
	}
	for _, res := range m.reservations {
		if res.ID == id && !res.Notified {
			res.Notified = true
			return true, nil
		}
	}
	return false, nil
}

func (m *MockRepository) ReleaseNotification(_ context.Context, id string) error {
	if m.failError != nil {
		return m.failError
	}
	for _, res := range m.reservations {
		if res.ID == id {
			res.Notified = false
		}
	}
	return nil
}

var _ = Describe("Reservation Service", func() {
	var (
		ctx      context.Context
		mockRepo *MockRepository
		service  *reservation.Service
		clk      *clock.Manual
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockRepo = NewMockRepository()
		clk = clock.NewManual(time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC))
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = reservation.NewService(mockRepo, logger,
			reservation.WithClock(clk),
			reservation.WithDefaultDuration(48*time.Hour),
		)

		_, err := service.RegisterItem(ctx, reservation.RegisterItemInput{ID: "laptop", Name: "Laptop", Available: 1})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Checkout", func() {
		It("uses the configured default duration", func() {
			res, err := service.Checkout(ctx, reservation.CheckoutInput{ItemID: "laptop", Holder: "alice", Quantity: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ExpiryTime.Sub(res.CheckoutTime)).To(Equal(48 * time.Hour))
			Expect(res.ExpiryDate()).To(Equal("2025-01-12"))
		})

		It("validates before touching the store", func() {
			_, err := service.Checkout(ctx, reservation.CheckoutInput{ItemID: "laptop", Holder: "alice", Quantity: 0})
			Expect(errors.Is(err, internal.ErrInvalidQuantity)).To(BeTrue())

			_, err = service.Checkout(ctx, reservation.CheckoutInput{ItemID: "", Holder: "alice", Quantity: 1})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeValidationFailed))

			_, err = service.Checkout(ctx, reservation.CheckoutInput{ItemID: "laptop", Holder: "  ", Quantity: 1})
			Expect(err).To(HaveOccurred())

			Expect(mockRepo.reserveCalls).To(Equal(0))
		})

		It("wraps store failures as STORE_UNAVAILABLE", func() {
			mockRepo.SetShouldFail(errors.New("connection refused"))

			_, err := service.Checkout(ctx, reservation.CheckoutInput{ItemID: "laptop", Holder: "alice", Quantity: 1})
			Expect(errors.Is(err, internal.ErrStoreUnavailable)).To(BeTrue())

			appErr, _ := internal.IsAppError(err)
			Expect(appErr.StatusCode).To(Equal(503))
		})

		It("does not retry a rejected conditional write", func() {
			_, err := service.Checkout(ctx, reservation.CheckoutInput{ItemID: "laptop", Holder: "alice", Quantity: 1})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Checkout(ctx, reservation.CheckoutInput{ItemID: "laptop", Holder: "bob", Quantity: 1})
			Expect(errors.Is(err, internal.ErrAlreadyCheckedOut)).To(BeTrue())
			Expect(mockRepo.reserveCalls).To(Equal(2))

			appErr, _ := internal.IsAppError(err)
			Expect(appErr.Details).To(HaveKeyWithValue("holder", "alice"))
		})
	})

	Describe("Checkin", func() {
		It("rejects a non-positive quantity", func() {
			zero := 0
			_, err := service.Checkin(ctx, reservation.CheckinInput{ItemID: "laptop", Quantity: &zero})
			Expect(errors.Is(err, internal.ErrInvalidQuantity)).To(BeTrue())
		})

		It("returns NotReserved for an item with no reservation", func() {
			_, err := service.Checkin(ctx, reservation.CheckinInput{ItemID: "laptop"})
			Expect(errors.Is(err, internal.ErrNotReserved)).To(BeTrue())
		})
	})

	Describe("ListOverdue", func() {
		It("fails when no report backend is wired", func() {
			_, err := service.ListOverdue(ctx)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Reservation", func() {
		It("is overdue from its expiry instant onwards", func() {
			expiry := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
			res := &reservation.Reservation{ExpiryTime: expiry}
			Expect(res.IsOverdue(expiry.Add(-time.Second))).To(BeFalse())
			Expect(res.IsOverdue(expiry)).To(BeTrue())
			Expect(res.IsOverdue(expiry.Add(time.Hour))).To(BeTrue())
		})
	})
})
