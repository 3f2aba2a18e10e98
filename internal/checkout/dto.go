package checkout

import (
	"math"
	"time"

	"github.com/frahmantamala/loan-desk/internal"
)

type CheckoutRequest struct {
	Actor    string
	Holder   string
	ItemID   string
	Quantity int
	Duration *time.Duration
}

type CheckinRequest struct {
	Actor    string
	ItemID   string
	Quantity *int
}

// CheckoutDTO is the request body of POST /items/{id}/checkout. Holder
// defaults to the caller and Quantity to one.
type CheckoutDTO struct {
	Holder        string   `json:"holder,omitempty"`
	Quantity      *int     `json:"quantity,omitempty"`
	DurationHours *float64 `json:"duration_hours,omitempty"`
}

func (dto CheckoutDTO) ToRequest(actor, itemID string) (CheckoutRequest, error) {
	req := CheckoutRequest{
		Actor:    actor,
		Holder:   dto.Holder,
		ItemID:   itemID,
		Quantity: 1,
	}
	if req.Holder == "" {
		req.Holder = actor
	}
	if dto.Quantity != nil {
		req.Quantity = *dto.Quantity
	}
	if dto.DurationHours != nil {
		hours := *dto.DurationHours
		if math.IsNaN(hours) || math.IsInf(hours, 0) || math.Abs(hours) > 24*366*10 {
			return CheckoutRequest{}, internal.NewValidationFieldError("duration_hours", "duration_hours is out of range", internal.ErrCodeInvalidDuration)
		}
		d := time.Duration(hours * float64(time.Hour))
		req.Duration = &d
	}
	return req, nil
}

type CheckinDTO struct {
	Quantity *int `json:"quantity,omitempty"`
}
