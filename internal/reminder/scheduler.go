package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/loan-desk/internal/reservation"
)

// StoreAPI is the slice of the reservation store the sweep needs.
type StoreAPI interface {
	ListDue(ctx context.Context) ([]*reservation.Reservation, error)
	ClaimNotification(ctx context.Context, reservationID string) (bool, error)
	ReleaseNotification(ctx context.Context, reservationID string) error
}

type Scheduler struct {
	store    StoreAPI
	notifier Notifier
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(store StoreAPI, notifier Notifier, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		store:    store,
		notifier: notifier,
		interval: interval,
		logger:   logger,
	}
}

// SweepOverdue emits one reminder per overdue, not yet notified reservation
// and returns the reservations it notified. Each record is claimed with a
// guarded write before dispatch, so overlapping sweeps never notify twice.
// A failed dispatch releases the claim and the record is retried next sweep.
func (s *Scheduler) SweepOverdue(ctx context.Context) ([]*reservation.Reservation, error) {
	due, err := s.store.ListDue(ctx)
	if err != nil {
		s.logger.Error("failed to list overdue reservations", "error", err)
		return nil, err
	}

	notified := make([]*reservation.Reservation, 0, len(due))
	for _, res := range due {
		claimed, err := s.store.ClaimNotification(ctx, res.ID)
		if err != nil {
			s.logger.Error("failed to claim reservation for reminder",
				"reservation_id", res.ID,
				"error", err)
			return notified, err
		}
		if !claimed {
			s.logger.Debug("reservation already claimed by another sweep", "reservation_id", res.ID)
			continue
		}

		if err := s.notifier.Notify(ctx, FromReservation(res)); err != nil {
			s.logger.Warn("reminder dispatch failed, releasing claim",
				"reservation_id", res.ID,
				"holder", res.Holder,
				"item_id", res.ItemID,
				"error", err)
			if relErr := s.store.ReleaseNotification(ctx, res.ID); relErr != nil {
				s.logger.Error("failed to release reminder claim",
					"reservation_id", res.ID,
					"error", relErr)
			}
			continue
		}

		res.Notified = true
		notified = append(notified, res)
	}

	s.logger.Info("overdue sweep finished", "due", len(due), "notified", len(notified))
	return notified, nil
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
// A failed sweep is logged and does not stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("reminder scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOverdue(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("overdue sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}
