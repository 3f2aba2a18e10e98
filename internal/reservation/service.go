package reservation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/loan-desk/internal"
	"github.com/frahmantamala/loan-desk/internal/clock"
	itemDatamodel "github.com/frahmantamala/loan-desk/internal/core/datamodel/item"
	reservationDatamodel "github.com/frahmantamala/loan-desk/internal/core/datamodel/reservation"
	"github.com/google/uuid"
)

// RepositoryAPI is the persistent substrate of the reservation store.
// Lookups return nil, nil when the row does not exist.
type RepositoryAPI interface {
	CreateItem(ctx context.Context, item *itemDatamodel.Item) error
	GetItem(ctx context.Context, itemID string) (*itemDatamodel.Item, error)

	// Reserve attaches res to its item with one conditional write. It
	// returns false, nil when the item was missing, short or already taken.
	Reserve(ctx context.Context, res *reservationDatamodel.Reservation) (bool, error)
	// Release deletes the reservation and restores the item's availability,
	// guarded by the item still pointing at it.
	Release(ctx context.Context, res *reservationDatamodel.Reservation) (bool, error)

	FindByItem(ctx context.Context, itemID string) (*reservationDatamodel.Reservation, error)
	ListByHolder(ctx context.Context, holder string) ([]*reservationDatamodel.Reservation, error)
	ListDue(ctx context.Context, now time.Time) ([]*reservationDatamodel.Reservation, error)

	ClaimNotification(ctx context.Context, reservationID string) (bool, error)
	ReleaseNotification(ctx context.Context, reservationID string) error
}

// ReportAPI serves read-only desk reports.
type ReportAPI interface {
	Overdue(ctx context.Context, now time.Time) ([]OverdueEntry, error)
}

type Service struct {
	repo            RepositoryAPI
	report          ReportAPI
	clock           clock.Clock
	defaultDuration time.Duration
	logger          *slog.Logger
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithDefaultDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.defaultDuration = d
		}
	}
}

func WithReport(report ReportAPI) Option {
	return func(s *Service) {
		s.report = report
	}
}

const DefaultDuration = 7 * 24 * time.Hour

func NewService(repo RepositoryAPI, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:            repo,
		clock:           clock.NewSystem(),
		defaultDuration: DefaultDuration,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Now() time.Time {
	return s.clock.Now()
}

func (s *Service) RegisterItem(ctx context.Context, in RegisterItemInput) (*Item, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	item := &Item{ID: in.ID, Name: in.Name, Available: in.Available}
	if err := s.repo.CreateItem(ctx, ItemToDataModel(item)); err != nil {
		s.logger.Error("failed to register item", "item_id", in.ID, "error", err)
		return nil, internal.NewStoreUnavailableError("register item", err)
	}

	s.logger.Info("item registered", "item_id", item.ID, "available", item.Available)
	return item, nil
}

func (s *Service) GetItem(ctx context.Context, itemID string) (*Item, error) {
	data, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, internal.NewStoreUnavailableError("get item", err)
	}
	if data == nil {
		return nil, internal.ErrItemNotFound.WithMessage(fmt.Sprintf("item %s not found", itemID))
	}
	return ItemFromDataModel(data), nil
}

func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*Reservation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	duration := s.defaultDuration
	if in.Duration != nil {
		duration = *in.Duration
	}

	now := s.clock.Now()
	res := &Reservation{
		ID:           uuid.NewString(),
		ItemID:       in.ItemID,
		Holder:       in.Holder,
		Quantity:     in.Quantity,
		CheckoutTime: now,
		ExpiryTime:   now.Add(duration),
	}

	reserved, err := s.repo.Reserve(ctx, ToDataModel(res))
	if err != nil {
		s.logger.Error("checkout write failed", "item_id", in.ItemID, "holder", in.Holder, "error", err)
		return nil, internal.NewStoreUnavailableError("checkout", err)
	}
	if !reserved {
		conflict := s.classifyRejectedCheckout(ctx, in.ItemID, in.Quantity)
		s.logger.Info("checkout rejected", "item_id", in.ItemID, "holder", in.Holder, "reason", conflict.Code)
		return nil, conflict
	}

	s.logger.Info("item checked out",
		"reservation_id", res.ID,
		"item_id", res.ItemID,
		"holder", res.Holder,
		"quantity", res.Quantity,
		"expiry_time", res.ExpiryTime)
	return res, nil
}

// classifyRejectedCheckout re-reads the item once after the conditional
// write was refused. It never retries the write.
func (s *Service) classifyRejectedCheckout(ctx context.Context, itemID string, requested int) *internal.AppError {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return internal.NewStoreUnavailableError("checkout", err)
	}
	if item == nil {
		return internal.ErrItemNotFound.WithMessage(fmt.Sprintf("item %s not found", itemID))
	}

	if item.ReservationID != nil {
		holder := ""
		current, err := s.repo.FindByItem(ctx, itemID)
		if err == nil && current != nil {
			holder = current.Holder
		}
		return internal.AlreadyCheckedOutBy(itemID, holder)
	}

	if item.Available < requested {
		return internal.InsufficientQuantityFor(itemID, requested, item.Available)
	}

	// the blocking reservation was returned between the write and the re-read
	return internal.AlreadyCheckedOutBy(itemID, "")
}

func (s *Service) Checkin(ctx context.Context, in CheckinInput) (*Reservation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	current, err := s.repo.FindByItem(ctx, in.ItemID)
	if err != nil {
		return nil, internal.NewStoreUnavailableError("checkin", err)
	}
	if current == nil {
		return nil, internal.ErrNotReserved.WithMessage(fmt.Sprintf("item %s has no active reservation", in.ItemID))
	}

	if in.Quantity != nil && *in.Quantity != current.Quantity {
		return nil, internal.ErrInvalidQuantity.WithMessage(
			fmt.Sprintf("check-in quantity %d does not match reserved quantity %d", *in.Quantity, current.Quantity))
	}

	released, err := s.repo.Release(ctx, current)
	if err != nil {
		s.logger.Error("checkin write failed", "item_id", in.ItemID, "reservation_id", current.ID, "error", err)
		return nil, internal.NewStoreUnavailableError("checkin", err)
	}
	if !released {
		return nil, internal.ErrNotReserved.WithMessage(fmt.Sprintf("item %s has no active reservation", in.ItemID))
	}

	res := FromDataModel(current)
	s.logger.Info("item checked in",
		"reservation_id", res.ID,
		"item_id", res.ItemID,
		"holder", res.Holder,
		"quantity", res.Quantity,
		"overdue", res.IsOverdue(s.clock.Now()))
	return res, nil
}

// FindActive returns the reservation attached to itemID, overdue or not, or nil.
func (s *Service) FindActive(ctx context.Context, itemID string) (*Reservation, error) {
	data, err := s.repo.FindByItem(ctx, itemID)
	if err != nil {
		return nil, internal.NewStoreUnavailableError("find active", err)
	}
	if data == nil {
		return nil, nil
	}
	return FromDataModel(data), nil
}

func (s *Service) ListByHolder(ctx context.Context, holder string) ([]*Reservation, error) {
	rows, err := s.repo.ListByHolder(ctx, holder)
	if err != nil {
		return nil, internal.NewStoreUnavailableError("list by holder", err)
	}
	return fromDataModels(rows), nil
}

// ListDue returns overdue reservations whose reminder has not been sent.
func (s *Service) ListDue(ctx context.Context) ([]*Reservation, error) {
	rows, err := s.repo.ListDue(ctx, s.clock.Now())
	if err != nil {
		return nil, internal.NewStoreUnavailableError("list due", err)
	}
	return fromDataModels(rows), nil
}

func (s *Service) ListOverdue(ctx context.Context) ([]OverdueEntry, error) {
	if s.report == nil {
		return nil, internal.NewInternalError("overdue report is not configured", nil)
	}
	entries, err := s.report.Overdue(ctx, s.clock.Now())
	if err != nil {
		return nil, internal.NewStoreUnavailableError("overdue report", err)
	}
	return entries, nil
}

// ClaimNotification flips notified for one record only if it was unset.
func (s *Service) ClaimNotification(ctx context.Context, reservationID string) (bool, error) {
	claimed, err := s.repo.ClaimNotification(ctx, reservationID)
	if err != nil {
		return false, internal.NewStoreUnavailableError("claim notification", err)
	}
	return claimed, nil
}

func (s *Service) ReleaseNotification(ctx context.Context, reservationID string) error {
	if err := s.repo.ReleaseNotification(ctx, reservationID); err != nil {
		return internal.NewStoreUnavailableError("release notification", err)
	}
	return nil
}

func fromDataModels(rows []*reservationDatamodel.Reservation) []*Reservation {
	out := make([]*Reservation, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out
}
