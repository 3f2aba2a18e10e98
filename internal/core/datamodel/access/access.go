package access

import "time"

type PermissionFlag struct {
	ID          string       `gorm:"primaryKey;type:varchar(64)"`
	Name        string       `gorm:"column:name;uniqueIndex;not null"`
	Description string       `gorm:"column:description"`
	Actions     []FlagAction `gorm:"foreignKey:FlagID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (PermissionFlag) TableName() string {
	return "permission_flags"
}

// FlagAction is one member of a flag's action set; the composite key keeps it a set.
type FlagAction struct {
	FlagID string `gorm:"primaryKey;column:flag_id;type:varchar(64)"`
	Action string `gorm:"primaryKey;column:action;type:varchar(128)"`
}

func (FlagAction) TableName() string {
	return "permission_flag_actions"
}

// UserRole assigns one flag to one user. A user's assignment exists while
// at least one row does.
type UserRole struct {
	UserID    string    `gorm:"primaryKey;column:user_id;type:varchar(128)"`
	FlagID    string    `gorm:"primaryKey;column:flag_id;type:varchar(64);index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

// PermissionEpoch is a single-row counter bumped by every write that can
// change a user's allowed actions. Processes compare it before trusting a
// cached decision.
type PermissionEpoch struct {
	ID    int   `gorm:"primaryKey;autoIncrement:false"`
	Value int64 `gorm:"column:value;not null;default:0"`
}

func (PermissionEpoch) TableName() string {
	return "permission_epoch"
}
