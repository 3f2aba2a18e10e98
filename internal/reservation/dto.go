package reservation

import (
	"time"

	errors "github.com/frahmantamala/loan-desk/internal"
	"github.com/frahmantamala/loan-desk/internal/core/common/validation"
)

// CheckoutInput is the store-level checkout request. Duration overrides the
// configured default and may be negative for simulations.
type CheckoutInput struct {
	ItemID   string
	Holder   string
	Quantity int
	Duration *time.Duration
}

func (in CheckoutInput) Validate() error {
	if in.Quantity <= 0 {
		return errors.ErrInvalidQuantity
	}
	v := validation.NewValidator()
	v.Field("item_id", in.ItemID).Required().MaxLength(64)
	v.Field("holder", in.Holder).Required().MaxLength(128)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// CheckinInput returns the whole reservation when Quantity is nil.
type CheckinInput struct {
	ItemID   string
	Quantity *int
}

func (in CheckinInput) Validate() error {
	if in.Quantity != nil && *in.Quantity <= 0 {
		return errors.ErrInvalidQuantity
	}
	v := validation.NewValidator()
	v.Field("item_id", in.ItemID).Required()
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type RegisterItemInput struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Available int    `json:"available"`
}

func (in RegisterItemInput) Validate() error {
	v := validation.NewValidator()
	v.Field("id", in.ID).Required().MaxLength(64)
	v.Field("name", in.Name).Required().MaxLength(255)
	v.Field("available", in.Available).MinInt(0, errors.ErrCodeInvalidQuantity)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type ReservationResponse struct {
	ID           string    `json:"id"`
	ItemID       string    `json:"item_id"`
	Holder       string    `json:"holder"`
	Quantity     int       `json:"quantity"`
	CheckoutTime time.Time `json:"checkout_time"`
	ExpiryTime   time.Time `json:"expiry_time"`
	ExpiryDate   string    `json:"expiry_date"`
	Notified     bool      `json:"notified"`
	Overdue      bool      `json:"overdue"`
}

type ReservationsResponse struct {
	Reservations []ReservationResponse `json:"reservations"`
}

type OverdueReportResponse struct {
	Entries []OverdueEntry `json:"entries"`
}
