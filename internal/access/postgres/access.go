package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/loan-desk/internal"
	"github.com/frahmantamala/loan-desk/internal/access"
	accessDatamodel "github.com/frahmantamala/loan-desk/internal/core/datamodel/access"
	"github.com/frahmantamala/loan-desk/internal/core/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const epochRowID = 1

type AccessRepository struct {
	db *gorm.DB
}

func NewAccessRepository(db *gorm.DB) access.RepositoryAPI {
	return &AccessRepository{db: db}
}

func (r *AccessRepository) CreateFlag(ctx context.Context, flag *accessDatamodel.PermissionFlag) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		actions := flag.Actions
		flag.Actions = nil
		defer func() { flag.Actions = actions }()

		if err := tx.Omit(clause.Associations).Create(flag).Error; err != nil {
			return err
		}
		if len(actions) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&actions).Error
	})
	if database.IsUniqueViolation(err) {
		return internal.ErrDuplicateFlagName.WithMessage(fmt.Sprintf("permission flag %q already exists", flag.Name))
	}
	return err
}

func (r *AccessRepository) GetFlag(ctx context.Context, flagID string) (*accessDatamodel.PermissionFlag, error) {
	return getFlag(r.db.WithContext(ctx), flagID)
}

func getFlag(db *gorm.DB, flagID string) (*accessDatamodel.PermissionFlag, error) {
	var flag accessDatamodel.PermissionFlag
	err := db.Preload("Actions", func(db *gorm.DB) *gorm.DB {
		return db.Order("action ASC")
	}).Where("id = ?", flagID).First(&flag).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &flag, nil
}

func (r *AccessRepository) ListFlags(ctx context.Context) ([]*accessDatamodel.PermissionFlag, error) {
	var flags []*accessDatamodel.PermissionFlag
	err := r.db.WithContext(ctx).
		Preload("Actions", func(db *gorm.DB) *gorm.DB {
			return db.Order("action ASC")
		}).
		Order("name ASC").
		Find(&flags).Error
	return flags, err
}

func (r *AccessRepository) MutateActions(ctx context.Context, flagID string, add, remove []string) (*accessDatamodel.PermissionFlag, error) {
	var result *accessDatamodel.PermissionFlag
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		touched := tx.Model(&accessDatamodel.PermissionFlag{}).
			Where("id = ?", flagID).
			Update("updated_at", tx.NowFunc())
		if touched.Error != nil {
			return touched.Error
		}
		if touched.RowsAffected == 0 {
			return nil
		}

		if len(add) > 0 {
			rows := make([]accessDatamodel.FlagAction, 0, len(add))
			for _, a := range add {
				rows = append(rows, accessDatamodel.FlagAction{FlagID: flagID, Action: a})
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
				return err
			}
		}

		if len(remove) > 0 {
			if err := tx.Where("flag_id = ? AND action IN ?", flagID, remove).
				Delete(&accessDatamodel.FlagAction{}).Error; err != nil {
				return err
			}
		}

		if err := bumpEpoch(tx); err != nil {
			return err
		}

		flag, err := getFlag(tx, flagID)
		if err != nil {
			return err
		}
		result = flag
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *AccessRepository) AssignFlag(ctx context.Context, userID, flagID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&accessDatamodel.UserRole{UserID: userID, FlagID: flagID})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		return bumpEpoch(tx)
	})
}

func (r *AccessRepository) UnassignFlag(ctx context.Context, userID, flagID string) (bool, error) {
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("user_id = ? AND flag_id = ?", userID, flagID).
			Delete(&accessDatamodel.UserRole{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		removed = true
		return bumpEpoch(tx)
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// PermissionEpoch returns the shared invalidation counter, 0 before the
// first permission change.
func (r *AccessRepository) PermissionEpoch(ctx context.Context) (int64, error) {
	var epoch accessDatamodel.PermissionEpoch
	err := r.db.WithContext(ctx).Where("id = ?", epochRowID).Take(&epoch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return epoch.Value, nil
}

// bumpEpoch increments the counter inside the caller's transaction, creating
// the row on first use.
func bumpEpoch(tx *gorm.DB) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value": gorm.Expr("permission_epoch.value + 1"),
		}),
	}).Create(&accessDatamodel.PermissionEpoch{ID: epochRowID, Value: 1}).Error
}

func (r *AccessRepository) FlagsOf(ctx context.Context, userID string) ([]*accessDatamodel.PermissionFlag, error) {
	var flags []*accessDatamodel.PermissionFlag
	err := r.db.WithContext(ctx).
		Preload("Actions", func(db *gorm.DB) *gorm.DB {
			return db.Order("action ASC")
		}).
		Joins("JOIN user_roles ON user_roles.flag_id = permission_flags.id").
		Where("user_roles.user_id = ?", userID).
		Order("permission_flags.name ASC").
		Find(&flags).Error
	return flags, err
}

func (r *AccessRepository) ActionsOf(ctx context.Context, userID string) ([]string, error) {
	var actions []string
	err := r.db.WithContext(ctx).
		Model(&accessDatamodel.FlagAction{}).
		Distinct("permission_flag_actions.action").
		Joins("JOIN user_roles ON user_roles.flag_id = permission_flag_actions.flag_id").
		Where("user_roles.user_id = ?", userID).
		Order("permission_flag_actions.action ASC").
		Pluck("permission_flag_actions.action", &actions).Error
	return actions, err
}
