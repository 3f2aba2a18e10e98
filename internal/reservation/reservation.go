package reservation

import (
	"time"

	itemDatamodel "github.com/frahmantamala/loan-desk/internal/core/datamodel/item"
	reservationDatamodel "github.com/frahmantamala/loan-desk/internal/core/datamodel/reservation"
)

// ExpiryDateLayout is the date-only precision used when an expiry is
// communicated to a holder.
const ExpiryDateLayout = "2006-01-02"

type Reservation struct {
	ID           string    `json:"id"`
	ItemID       string    `json:"item_id"`
	Holder       string    `json:"holder"`
	Quantity     int       `json:"quantity"`
	CheckoutTime time.Time `json:"checkout_time"`
	ExpiryTime   time.Time `json:"expiry_time"`
	Notified     bool      `json:"notified"`
}

// IsOverdue reports whether the reservation has reached its expiry at now.
// Overdue is a soft state: the reservation stays attached until check-in.
func (r *Reservation) IsOverdue(now time.Time) bool {
	return !r.ExpiryTime.After(now)
}

func (r *Reservation) ExpiryDate() string {
	return r.ExpiryTime.UTC().Format(ExpiryDateLayout)
}

func (r *Reservation) ToResponse(now time.Time) ReservationResponse {
	return ReservationResponse{
		ID:           r.ID,
		ItemID:       r.ItemID,
		Holder:       r.Holder,
		Quantity:     r.Quantity,
		CheckoutTime: r.CheckoutTime,
		ExpiryTime:   r.ExpiryTime,
		ExpiryDate:   r.ExpiryDate(),
		Notified:     r.Notified,
		Overdue:      r.IsOverdue(now),
	}
}

type Item struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Available     int     `json:"available"`
	ReservationID *string `json:"reservation_id,omitempty"`
}

func (i *Item) IsReserved() bool {
	return i.ReservationID != nil && *i.ReservationID != ""
}

// OverdueEntry is one line of the desk's overdue report.
type OverdueEntry struct {
	ReservationID string    `json:"reservation_id" db:"id"`
	ItemID        string    `json:"item_id" db:"item_id"`
	ItemName      string    `json:"item_name" db:"item_name"`
	Holder        string    `json:"holder" db:"holder"`
	Quantity      int       `json:"quantity" db:"quantity"`
	ExpiryTime    time.Time `json:"expiry_time" db:"expiry_time"`
	Notified      bool      `json:"notified" db:"notified"`
}

func ToDataModel(r *Reservation) *reservationDatamodel.Reservation {
	return &reservationDatamodel.Reservation{
		ID:           r.ID,
		ItemID:       r.ItemID,
		Holder:       r.Holder,
		Quantity:     r.Quantity,
		CheckoutTime: r.CheckoutTime,
		ExpiryTime:   r.ExpiryTime,
		Notified:     r.Notified,
	}
}

func FromDataModel(r *reservationDatamodel.Reservation) *Reservation {
	return &Reservation{
		ID:           r.ID,
		ItemID:       r.ItemID,
		Holder:       r.Holder,
		Quantity:     r.Quantity,
		CheckoutTime: r.CheckoutTime.UTC(),
		ExpiryTime:   r.ExpiryTime.UTC(),
		Notified:     r.Notified,
	}
}

func ItemToDataModel(i *Item) *itemDatamodel.Item {
	return &itemDatamodel.Item{
		ID:            i.ID,
		Name:          i.Name,
		Available:     i.Available,
		ReservationID: i.ReservationID,
	}
}

func ItemFromDataModel(i *itemDatamodel.Item) *Item {
	return &Item{
		ID:            i.ID,
		Name:          i.Name,
		Available:     i.Available,
		ReservationID: i.ReservationID,
	}
}
