package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/loan-desk/internal"
	"github.com/frahmantamala/loan-desk/internal/access"
	"github.com/frahmantamala/loan-desk/internal/core/events"
	"github.com/frahmantamala/loan-desk/internal/reservation"
)

// Evaluator answers permission questions. It must never fail; anything it
// cannot decide is a deny.
type Evaluator interface {
	IsAllowed(ctx context.Context, userID string, action access.Action) bool
}

// StoreAPI is the part of the reservation store the desk drives.
type StoreAPI interface {
	Now() time.Time
	Checkout(ctx context.Context, in reservation.CheckoutInput) (*reservation.Reservation, error)
	Checkin(ctx context.Context, in reservation.CheckinInput) (*reservation.Reservation, error)
	FindActive(ctx context.Context, itemID string) (*reservation.Reservation, error)
	ListByHolder(ctx context.Context, holder string) ([]*reservation.Reservation, error)
	ListOverdue(ctx context.Context) ([]reservation.OverdueEntry, error)
}

type Service struct {
	store     StoreAPI
	evaluator Evaluator
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(store StoreAPI, evaluator Evaluator, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		evaluator: evaluator,
		publisher: publisher,
		logger:    logger,
	}
}

// Checkout reserves an item for Holder. The holder must be allowed to check
// out; an actor acting for someone else must be allowed as well.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*reservation.Reservation, error) {
	holder := strings.TrimSpace(req.Holder)
	if holder == "" {
		return nil, internal.ErrUserNotFound.WithMessage("holder is required")
	}

	if !s.evaluator.IsAllowed(ctx, holder, access.ActionCheckout) {
		s.logger.Warn("checkout denied", "holder", holder, "item_id", req.ItemID)
		return nil, forbidden(holder, access.ActionCheckout)
	}
	if req.Actor != "" && req.Actor != holder && !s.evaluator.IsAllowed(ctx, req.Actor, access.ActionCheckout) {
		s.logger.Warn("checkout on behalf denied", "actor", req.Actor, "holder", holder, "item_id", req.ItemID)
		return nil, forbidden(req.Actor, access.ActionCheckout)
	}

	res, err := s.store.Checkout(ctx, reservation.CheckoutInput{
		ItemID:   req.ItemID,
		Holder:   holder,
		Quantity: req.Quantity,
		Duration: req.Duration,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewItemCheckedOutEvent(res.ID, res.ItemID, res.Holder, actorOr(req.Actor, holder), res.Quantity, res.ExpiryTime))
	return res, nil
}

// Checkin returns an item. Only the actor's permission is checked; the
// holder may already have lost theirs.
func (s *Service) Checkin(ctx context.Context, req CheckinRequest) (*reservation.Reservation, error) {
	if strings.TrimSpace(req.Actor) == "" {
		return nil, internal.ErrUserNotFound.WithMessage("actor is required")
	}
	if !s.evaluator.IsAllowed(ctx, req.Actor, access.ActionCheckin) {
		s.logger.Warn("checkin denied", "actor", req.Actor, "item_id", req.ItemID)
		return nil, forbidden(req.Actor, access.ActionCheckin)
	}

	res, err := s.store.Checkin(ctx, reservation.CheckinInput{ItemID: req.ItemID, Quantity: req.Quantity})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewItemCheckedInEvent(res.ID, res.ItemID, res.Holder, req.Actor, res.Quantity, res.IsOverdue(s.store.Now())))
	return res, nil
}

func (s *Service) FindActive(ctx context.Context, itemID string) (*reservation.Reservation, error) {
	return s.store.FindActive(ctx, itemID)
}

// ListByHolder lists holder's reservations. Reading someone else's loans
// needs view_reservations.
func (s *Service) ListByHolder(ctx context.Context, actor, holder string) ([]*reservation.Reservation, error) {
	if holder == "" {
		holder = actor
	}
	if holder == "" {
		return nil, internal.ErrUserNotFound.WithMessage("holder is required")
	}
	if actor != holder && !s.evaluator.IsAllowed(ctx, actor, access.ActionViewReservations) {
		return nil, forbidden(actor, access.ActionViewReservations)
	}
	return s.store.ListByHolder(ctx, holder)
}

func (s *Service) ListOverdue(ctx context.Context, actor string) ([]reservation.OverdueEntry, error) {
	if !s.evaluator.IsAllowed(ctx, actor, access.ActionViewReservations) {
		return nil, forbidden(actor, access.ActionViewReservations)
	}
	return s.store.ListOverdue(ctx)
}

func (s *Service) Now() time.Time {
	return s.store.Now()
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event", "event_type", event.EventType(), "event_id", event.EventID(), "error", err)
	}
}

func forbidden(userID string, action access.Action) *internal.AppError {
	return internal.ErrForbiddenAction.
		WithMessage(fmt.Sprintf("user %s is not allowed to %s", userID, action)).
		WithDetails(map[string]interface{}{"user_id": userID, "action": action})
}

func actorOr(actor, fallback string) string {
	if actor == "" {
		return fallback
	}
	return actor
}
