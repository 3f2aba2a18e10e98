package reminder

import (
	"context"

	"github.com/frahmantamala/loan-desk/internal/core/events"
	"github.com/frahmantamala/loan-desk/internal/reservation"
)

// Reminder is one overdue notice addressed to a holder. ExpiryDate has
// date-only precision.
type Reminder struct {
	ReservationID string `json:"reservation_id"`
	Holder        string `json:"holder"`
	ItemID        string `json:"item_id"`
	ExpiryDate    string `json:"expiry_date"`
}

func FromReservation(r *reservation.Reservation) Reminder {
	return Reminder{
		ReservationID: r.ID,
		Holder:        r.Holder,
		ItemID:        r.ItemID,
		ExpiryDate:    r.ExpiryDate(),
	}
}

// Notifier hands a reminder to whatever delivers it. A returned error means
// the reminder was not accepted and the sweep should retry it later.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(ctx context.Context, r Reminder) error

func (f NotifierFunc) Notify(ctx context.Context, r Reminder) error {
	return f(ctx, r)
}

// EventNotifier publishes reminders on the in-process event bus.
type EventNotifier struct {
	publisher events.Publisher
}

func NewEventNotifier(publisher events.Publisher) *EventNotifier {
	return &EventNotifier{publisher: publisher}
}

func (n *EventNotifier) Notify(ctx context.Context, r Reminder) error {
	return n.publisher.PublishSync(ctx, events.NewReservationOverdueEvent(r.ReservationID, r.ItemID, r.Holder, r.ExpiryDate))
}

// Holders lists the holder of each reservation, one entry per reservation.
func Holders(rs []*reservation.Reservation) []string {
	holders := make([]string, 0, len(rs))
	for _, r := range rs {
		holders = append(holders, r.Holder)
	}
	return holders
}
