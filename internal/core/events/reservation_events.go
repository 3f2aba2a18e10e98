package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeItemCheckedOut     = "item.checked_out"
	EventTypeItemCheckedIn      = "item.checked_in"
	EventTypeReservationOverdue = "reservation.overdue"
)

type ItemCheckedOutEvent struct {
	BaseEvent
	ReservationID string    `json:"reservation_id"`
	ItemID        string    `json:"item_id"`
	Holder        string    `json:"holder"`
	Actor         string    `json:"actor"`
	Quantity      int       `json:"quantity"`
	ExpiryTime    time.Time `json:"expiry_time"`
}

func NewItemCheckedOutEvent(reservationID, itemID, holder, actor string, quantity int, expiry time.Time) *ItemCheckedOutEvent {
	return &ItemCheckedOutEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeItemCheckedOut,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"reservation_id": reservationID,
				"item_id":        itemID,
				"holder":         holder,
				"actor":          actor,
				"quantity":       quantity,
				"expiry_time":    expiry,
			},
		},
		ReservationID: reservationID,
		ItemID:        itemID,
		Holder:        holder,
		Actor:         actor,
		Quantity:      quantity,
		ExpiryTime:    expiry,
	}
}

type ItemCheckedInEvent struct {
	BaseEvent
	ReservationID string `json:"reservation_id"`
	ItemID        string `json:"item_id"`
	Holder        string `json:"holder"`
	Actor         string `json:"actor"`
	Quantity      int    `json:"quantity"`
	Overdue       bool   `json:"overdue"`
}

func NewItemCheckedInEvent(reservationID, itemID, holder, actor string, quantity int, overdue bool) *ItemCheckedInEvent {
	return &ItemCheckedInEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeItemCheckedIn,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"reservation_id": reservationID,
				"item_id":        itemID,
				"holder":         holder,
				"actor":          actor,
				"quantity":       quantity,
				"overdue":        overdue,
			},
		},
		ReservationID: reservationID,
		ItemID:        itemID,
		Holder:        holder,
		Actor:         actor,
		Quantity:      quantity,
		Overdue:       overdue,
	}
}

// ReservationOverdueEvent carries one reminder addressed to the holder.
type ReservationOverdueEvent struct {
	BaseEvent
	ReservationID string `json:"reservation_id"`
	ItemID        string `json:"item_id"`
	Holder        string `json:"holder"`
	ExpiryDate    string `json:"expiry_date"`
}

func NewReservationOverdueEvent(reservationID, itemID, holder, expiryDate string) *ReservationOverdueEvent {
	return &ReservationOverdueEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeReservationOverdue,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"reservation_id": reservationID,
				"item_id":        itemID,
				"holder":         holder,
				"expiry_date":    expiryDate,
			},
		},
		ReservationID: reservationID,
		ItemID:        itemID,
		Holder:        holder,
		ExpiryDate:    expiryDate,
	}
}
