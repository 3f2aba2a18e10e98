package checkout

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/loan-desk/internal"
	"github.com/frahmantamala/loan-desk/internal/reservation"
	"github.com/frahmantamala/loan-desk/internal/transport"
	"github.com/frahmantamala/loan-desk/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Now() time.Time
	Checkout(ctx context.Context, req CheckoutRequest) (*reservation.Reservation, error)
	Checkin(ctx context.Context, req CheckinRequest) (*reservation.Reservation, error)
	FindActive(ctx context.Context, itemID string) (*reservation.Reservation, error)
	ListByHolder(ctx context.Context, actor, holder string) ([]*reservation.Reservation, error)
	ListOverdue(ctx context.Context, actor string) ([]reservation.OverdueEntry, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor := internal.UserIDFromContext(r.Context())
	itemID := chi.URLParam(r, "id")

	var dto CheckoutDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	req, err := dto.ToRequest(actor, itemID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	res, err := h.Service.Checkout(r.Context(), req)
	if err != nil {
		logger.From(r.Context()).Info("Checkout: rejected", "item_id", itemID, "holder", req.Holder, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, res.ToResponse(h.Service.Now()))
}

func (h *Handler) Checkin(w http.ResponseWriter, r *http.Request) {
	actor := internal.UserIDFromContext(r.Context())
	itemID := chi.URLParam(r, "id")

	var dto CheckinDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	res, err := h.Service.Checkin(r.Context(), CheckinRequest{Actor: actor, ItemID: itemID, Quantity: dto.Quantity})
	if err != nil {
		logger.From(r.Context()).Info("Checkin: rejected", "item_id", itemID, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, res.ToResponse(h.Service.Now()))
}

func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	res, err := h.Service.FindActive(r.Context(), itemID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if res == nil {
		h.HandleServiceError(w, internal.ErrNotReserved)
		return
	}

	h.WriteJSON(w, http.StatusOK, res.ToResponse(h.Service.Now()))
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor := internal.UserIDFromContext(r.Context())
	holder := r.URL.Query().Get("holder")

	rs, err := h.Service.ListByHolder(r.Context(), actor, holder)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	now := h.Service.Now()
	resp := reservation.ReservationsResponse{Reservations: make([]reservation.ReservationResponse, 0, len(rs))}
	for _, res := range rs {
		resp.Reservations = append(resp.Reservations, res.ToResponse(now))
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	actor := internal.UserIDFromContext(r.Context())

	entries, err := h.Service.ListOverdue(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []reservation.OverdueEntry{}
	}
	h.WriteJSON(w, http.StatusOK, reservation.OverdueReportResponse{Entries: entries})
}
