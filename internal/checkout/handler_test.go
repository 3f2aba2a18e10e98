package checkout_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/frahmantamala/loan-desk/internal"
	"github.com/frahmantamala/loan-desk/internal/checkout"
	"github.com/frahmantamala/loan-desk/internal/reservation"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type MockService struct {
	now          time.Time
	lastCheckout checkout.CheckoutRequest
	lastCheckin  checkout.CheckinRequest
	active       *reservation.Reservation
	err          error
}

func (m *MockService) Now() time.Time { return m.now }

func (m *MockService) Checkout(_ context.Context, req checkout.CheckoutRequest) (*reservation.Reservation, error) {
	m.lastCheckout = req
	if m.err != nil {
		return nil, m.err
	}
	return &reservation.Reservation{
		ID:           "res-1",
		ItemID:       req.ItemID,
		Holder:       req.Holder,
		Quantity:     req.Quantity,
		CheckoutTime: m.now,
		ExpiryTime:   m.now.Add(7 * 24 * time.Hour),
	}, nil
}

func (m *MockService) Checkin(_ context.Context, req checkout.CheckinRequest) (*reservation.Reservation, error) {
	m.lastCheckin = req
	if m.err != nil {
		return nil, m.err
	}
	return m.active, nil
}

func (m *MockService) FindActive(_ context.Context, _ string) (*reservation.Reservation, error) {
	return m.active, m.err
}

func (m *MockService) ListByHolder(_ context.Context, _, _ string) ([]*reservation.Reservation, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.active == nil {
		return nil, nil
	}
	return []*reservation.Reservation{m.active}, nil
}

func (m *MockService) ListOverdue(_ context.Context, _ string) ([]reservation.OverdueEntry, error) {
	return nil, m.err
}

var _ = Describe("Checkout Handler", func() {
	var (
		mock   *MockService
		router *chi.Mux
	)

	BeforeEach(func() {
		mock = &MockService{now: time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)}
		handler := checkout.NewHandler(mock)

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(internal.ContextWithUserID(r.Context(), "alice")))
			})
		})
		router.Post("/items/{id}/checkout", handler.Checkout)
		router.Post("/items/{id}/checkin", handler.Checkin)
		router.Get("/items/{id}/reservation", handler.GetReservation)
		router.Get("/reservations/mine", handler.ListMine)
		router.Get("/reservations/overdue", handler.ListOverdue)
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	Describe("POST /items/{id}/checkout", func() {
		It("defaults holder to the caller and quantity to one", func() {
			rec := do(http.MethodPost, "/items/Keyboard/checkout", "")
			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(mock.lastCheckout.Holder).To(Equal("alice"))
			Expect(mock.lastCheckout.Actor).To(Equal("alice"))
			Expect(mock.lastCheckout.Quantity).To(Equal(1))
			Expect(mock.lastCheckout.Duration).To(BeNil())

			var resp reservation.ReservationResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.ItemID).To(Equal("Keyboard"))
			Expect(resp.ExpiryDate).To(Equal("2025-03-08"))
		})

		It("passes an explicit zero quantity to the service", func() {
			mock.err = internal.ErrInvalidQuantity
			rec := do(http.MethodPost, "/items/Keyboard/checkout", `{"quantity":0}`)
			Expect(mock.lastCheckout.Quantity).To(Equal(0))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("INVALID_QUANTITY"))
		})

		It("converts duration_hours, negative included", func() {
			rec := do(http.MethodPost, "/items/Keyboard/checkout", `{"holder":"bob","duration_hours":-1}`)
			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(mock.lastCheckout.Holder).To(Equal("bob"))
			Expect(*mock.lastCheckout.Duration).To(Equal(-time.Hour))
		})

		It("rejects unknown fields", func() {
			rec := do(http.MethodPost, "/items/Keyboard/checkout", `{"qty":2}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("maps a conflict with the holder in the details", func() {
			mock.err = internal.AlreadyCheckedOutBy("Keyboard", "bob")
			rec := do(http.MethodPost, "/items/Keyboard/checkout", `{}`)
			Expect(rec.Code).To(Equal(http.StatusConflict))

			var body map[string]map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body["error"]["code"]).To(Equal("ALREADY_CHECKED_OUT"))
			Expect(body["error"]["details"]).To(HaveKeyWithValue("holder", "bob"))
		})

		It("maps forbidden to 403", func() {
			mock.err = internal.ErrForbiddenAction
			rec := do(http.MethodPost, "/items/Keyboard/checkout", `{}`)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})
	})

	Describe("POST /items/{id}/checkin", func() {
		It("forwards the optional quantity", func() {
			mock.active = &reservation.Reservation{ID: "res-1", ItemID: "Keyboard", Holder: "alice", Quantity: 2, ExpiryTime: mock.now}
			rec := do(http.MethodPost, "/items/Keyboard/checkin", `{"quantity":2}`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(*mock.lastCheckin.Quantity).To(Equal(2))
			Expect(mock.lastCheckin.Actor).To(Equal("alice"))
		})

		It("maps NotReserved to 404", func() {
			mock.err = internal.ErrNotReserved
			rec := do(http.MethodPost, "/items/Keyboard/checkin", "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /items/{id}/reservation", func() {
		It("is 404 when nothing is attached", func() {
			rec := do(http.MethodGet, "/items/Keyboard/reservation", "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("marks an overdue reservation", func() {
			mock.active = &reservation.Reservation{ID: "res-1", ItemID: "Keyboard", Holder: "alice", Quantity: 1, ExpiryTime: mock.now.Add(-time.Hour)}
			rec := do(http.MethodGet, "/items/Keyboard/reservation", "")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp reservation.ReservationResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Overdue).To(BeTrue())
		})
	})

	Describe("GET /reservations", func() {
		It("returns an empty list rather than null", func() {
			rec := do(http.MethodGet, "/reservations/mine", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"reservations":[]`))

			rec = do(http.MethodGet, "/reservations/overdue", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"entries":[]`))
		})
	})
})
