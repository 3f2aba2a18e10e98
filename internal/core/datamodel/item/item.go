package item

import "time"

// Item is the catalog row a reservation attaches to. ReservationID is set
// while the item is checked out and cleared on check-in.
type Item struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)"`
	Name          string    `gorm:"column:name;not null"`
	Available     int       `gorm:"column:available;not null;default:0"`
	ReservationID *string   `gorm:"column:reservation_id;type:varchar(64)"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Item) TableName() string {
	return "items"
}
