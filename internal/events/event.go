// Package events publishes booking domain events to a message broker.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
	"github.com/google/uuid"
)

// Type names a published domain event.
type Type string

const (
	TypeVehicleCreated   Type = "vehicle.created"
	TypeVehicleUpdated   Type = "vehicle.updated"
	TypeVehicleDeleted   Type = "vehicle.deleted"
	TypeBookingConfirmed Type = "booking.confirmed"
	TypeBookingCanceled  Type = "booking.canceled"
	TypePaymentVerified  Type = "payment.verified"
	TypeBookingsReset    Type = "bookings.reset"

	contentTypeJSON = "application/json"
	headerEventType = "event-type"
)

var operationTypes = map[booking.Operation]Type{
	booking.OperationCreateVehicle: TypeVehicleCreated,
	booking.OperationUpdateVehicle: TypeVehicleUpdated,
	booking.OperationDeleteVehicle: TypeVehicleDeleted,
	booking.OperationReserveSeat:   TypeBookingConfirmed,
	booking.OperationReserveSeats:  TypeBookingConfirmed,
	booking.OperationReleaseSeat:   TypeBookingCanceled,
	booking.OperationCancelBooking: TypeBookingCanceled,
	booking.OperationVerifyPayment: TypePaymentVerified,
	booking.OperationResetBookings: TypeBookingsReset,
}

// Event is the JSON body sent to the broker.
type Event struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	OccurredAt    time.Time `json:"occurred_at"`
	ActorID       string    `json:"actor_id,omitempty"`
	VehicleID     string    `json:"vehicle_id,omitempty"`
	BookingID     string    `json:"booking_id,omitempty"`
	OwnerID       string    `json:"owner_id,omitempty"`
	Seat          int       `json:"seat,omitempty"`
	Status        string    `json:"status,omitempty"`
	PaymentStatus string    `json:"payment_status,omitempty"`
	Count         int       `json:"count,omitempty"`
}

// Key groups events of one vehicle so brokers can keep their order.
func (event Event) Key() string {
	if event.VehicleID != "" {
		return event.VehicleID
	}
	return string(event.Type)
}

func (event Event) body() ([]byte, error) {
	return json.Marshal(event)
}

// FromOperation converts a successful operation into an event. Failed
// operations produce none.
func FromOperation(entry booking.OperationLog, occurredAt time.Time) (Event, bool) {
	if !entry.Succeeded() {
		return Event{}, false
	}
	eventType, ok := operationTypes[entry.Operation]
	if !ok {
		return Event{}, false
	}
	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: occurredAt.UTC(),
		ActorID:    entry.UserID.String(),
		VehicleID:  entry.VehicleID.String(),
		BookingID:  entry.BookingID.String(),
		Seat:       entry.Seat.Int(),
		Count:      entry.Count,
	}
	if entry.Booking.ID.String() != "" {
		event.OwnerID = entry.Booking.UserID.String()
		event.Status = entry.Booking.Status.String()
		event.PaymentStatus = entry.Booking.PaymentStatus.String()
	}
	return event, true
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
