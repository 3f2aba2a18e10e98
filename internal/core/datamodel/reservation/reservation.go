package reservation

import "time"

type Reservation struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)"`
	ItemID       string    `gorm:"column:item_id;type:varchar(64);uniqueIndex;not null"`
	Holder       string    `gorm:"column:holder;index;not null"`
	Quantity     int       `gorm:"column:quantity;not null"`
	CheckoutTime time.Time `gorm:"column:checkout_time;not null"`
	ExpiryTime   time.Time `gorm:"column:expiry_time;index;not null"`
	Notified     bool      `gorm:"column:notified;not null;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Reservation) TableName() string {
	return "reservations"
}
