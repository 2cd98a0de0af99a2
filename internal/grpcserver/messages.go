package grpcserver

import (
	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
)

type ListVehiclesRequest struct{}

type Vehicle struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	TotalSeats     int    `json:"total_seats"`
	AvailableSeats int    `json:"available_seats"`
	OccupiedSeats  []int  `json:"occupied_seats"`
}

type ListVehiclesResponse struct {
	Vehicles []Vehicle `json:"vehicles"`
}

// ReserveSeatRequest books for the authenticated caller.
type ReserveSeatRequest struct {
	VehicleID string `json:"vehicle_id"`
	Seat      int    `json:"seat"`
}

type BookingRequest struct {
	BookingID string `json:"booking_id"`
}

// ListBookingsRequest lists the caller's bookings when UserID is empty.
// Listing another user's bookings requires the admin role.
type ListBookingsRequest struct {
	UserID string `json:"user_id,omitempty"`
}

type Booking struct {
	ID                string `json:"id"`
	UserID            string `json:"user_id"`
	VehicleID         string `json:"vehicle_id"`
	Seat              int    `json:"seat"`
	Status            string `json:"status"`
	PaymentStatus     string `json:"payment_status"`
	CreatedUnixMillis int64  `json:"created_unix_millis"`
	UpdatedUnixMillis int64  `json:"updated_unix_millis"`
}

type BookingResponse struct {
	Booking Booking `json:"booking"`
}

type ListBookingsResponse struct {
	Bookings []Booking `json:"bookings"`
}

func toVehicle(occupancy booking.VehicleOccupancy) Vehicle {
	occupied := make([]int, 0, len(occupancy.OccupiedSeats))
	for _, seat := range occupancy.OccupiedSeats {
		occupied = append(occupied, seat.Int())
	}
	return Vehicle{
		ID:             occupancy.Vehicle.ID.String(),
		Name:           occupancy.Vehicle.Name.String(),
		TotalSeats:     occupancy.Vehicle.TotalSeats.Int(),
		AvailableSeats: occupancy.AvailableSeats(),
		OccupiedSeats:  occupied,
	}
}

func toBooking(record booking.Booking) Booking {
	return Booking{
		ID:                record.ID.String(),
		UserID:            record.UserID.String(),
		VehicleID:         record.VehicleID.String(),
		Seat:              record.Seat.Int(),
		Status:            record.Status.String(),
		PaymentStatus:     record.PaymentStatus.String(),
		CreatedUnixMillis: record.CreatedAt.UnixMilli(),
		UpdatedUnixMillis: record.UpdatedAt.UnixMilli(),
	}
}
