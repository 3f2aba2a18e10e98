package postgres

import (
	"context"
	"errors"
	"time"

	itemDatamodel "github.com/frahmantamala/loan-desk/internal/core/datamodel/item"
	reservationDatamodel "github.com/frahmantamala/loan-desk/internal/core/datamodel/reservation"
	"github.com/frahmantamala/loan-desk/internal/core/database"
	"github.com/frahmantamala/loan-desk/internal/reservation"
	"gorm.io/gorm"
)

// errWriteRejected rolls back a transaction whose conditional write matched nothing.
var errWriteRejected = errors.New("conditional write rejected")

type ReservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) reservation.RepositoryAPI {
	return &ReservationRepository{db: db}
}

func (r *ReservationRepository) CreateItem(ctx context.Context, item *itemDatamodel.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *ReservationRepository) GetItem(ctx context.Context, itemID string) (*itemDatamodel.Item, error) {
	var item itemDatamodel.Item
	err := r.db.WithContext(ctx).Where("id = ?", itemID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *ReservationRepository) Reserve(ctx context.Context, res *reservationDatamodel.Reservation) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&itemDatamodel.Item{}).
			Where("id = ? AND available >= ? AND reservation_id IS NULL", res.ItemID, res.Quantity).
			Updates(map[string]interface{}{
				"available":      gorm.Expr("available - ?", res.Quantity),
				"reservation_id": res.ID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errWriteRejected
		}

		if err := tx.Create(res).Error; err != nil {
			// a stale reservation row for the item is still present
			if database.IsUniqueViolation(err) {
				return errWriteRejected
			}
			return err
		}
		return nil
	})
	if errors.Is(err, errWriteRejected) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *ReservationRepository) Release(ctx context.Context, res *reservationDatamodel.Reservation) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&itemDatamodel.Item{}).
			Where("id = ? AND reservation_id = ?", res.ItemID, res.ID).
			Updates(map[string]interface{}{
				"available":      gorm.Expr("available + ?", res.Quantity),
				"reservation_id": gorm.Expr("NULL"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errWriteRejected
		}

		deleted := tx.Where("id = ?", res.ID).Delete(&reservationDatamodel.Reservation{})
		if deleted.Error != nil {
			return deleted.Error
		}
		if deleted.RowsAffected == 0 {
			return errWriteRejected
		}
		return nil
	})
	if errors.Is(err, errWriteRejected) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *ReservationRepository) FindByItem(ctx context.Context, itemID string) (*reservationDatamodel.Reservation, error) {
	var res reservationDatamodel.Reservation
	err := r.db.WithContext(ctx).Where("item_id = ?", itemID).First(&res).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (r *ReservationRepository) ListByHolder(ctx context.Context, holder string) ([]*reservationDatamodel.Reservation, error) {
	var rows []*reservationDatamodel.Reservation
	err := r.db.WithContext(ctx).
		Where("holder = ?", holder).
		Order("expiry_time ASC").
		Find(&rows).Error
	return rows, err
}

func (r *ReservationRepository) ListDue(ctx context.Context, now time.Time) ([]*reservationDatamodel.Reservation, error) {
	var rows []*reservationDatamodel.Reservation
	err := r.db.WithContext(ctx).
		Where("expiry_time <= ? AND notified = ?", now, false).
		Order("expiry_time ASC").
		Find(&rows).Error
	return rows, err
}

func (r *ReservationRepository) ClaimNotification(ctx context.Context, reservationID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&reservationDatamodel.Reservation{}).
		Where("id = ? AND notified = ?", reservationID, false).
		Update("notified", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *ReservationRepository) ReleaseNotification(ctx context.Context, reservationID string) error {
	return r.db.WithContext(ctx).
		Model(&reservationDatamodel.Reservation{}).
		Where("id = ? AND notified = ?", reservationID, true).
		Update("notified", false).Error
}
