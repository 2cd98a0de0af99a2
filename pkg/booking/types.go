package booking

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// VehicleID identifies a vehicle in the catalog.
type VehicleID struct {
	value string
}

// BookingID identifies a booking.
type BookingID struct {
	value string
}

// UserID identifies a booking owner.
type UserID struct {
	value string
}

// VehicleName is the display name of a vehicle.
type VehicleName struct {
	value string
}

// SeatCount is the total number of seats on a vehicle.
type SeatCount int

// SeatNumber addresses one seat; numbering starts at 1.
type SeatNumber int

// NewVehicleID validates and normalizes a vehicle id.
func NewVehicleID(raw string) (VehicleID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return VehicleID{}, fmt.Errorf("%w: empty value", ErrInvalidVehicleID)
	}
	return VehicleID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id VehicleID) String() string {
	return id.value
}

// NewBookingID validates and normalizes a booking id.
func NewBookingID(raw string) (BookingID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return BookingID{}, fmt.Errorf("%w: empty value", ErrInvalidBookingID)
	}
	return BookingID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id BookingID) String() string {
	return id.value
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// NewVehicleName validates a display name.
func NewVehicleName(raw string) (VehicleName, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return VehicleName{}, fmt.Errorf("%w: empty value", ErrInvalidVehicleName)
	}
	if utf8.RuneCountInString(trimmed) > maxVehicleNameRunes {
		return VehicleName{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidVehicleName, maxVehicleNameRunes)
	}
	return VehicleName{value: trimmed}, nil
}

// String returns the normalized name.
func (name VehicleName) String() string {
	return name.value
}

// NewSeatCount validates a total seat count.
func NewSeatCount(raw int) (SeatCount, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidSeatCount)
	}
	if raw > maxSeatCount {
		return 0, fmt.Errorf("%w: must not exceed %d", ErrInvalidSeatCount, maxSeatCount)
	}
	return SeatCount(raw), nil
}

// Int returns the count as an int.
func (count SeatCount) Int() int {
	return int(count)
}

// NewSeatNumber validates a seat number without reference to a vehicle.
func NewSeatNumber(raw int) (SeatNumber, error) {
	if raw < 1 {
		return 0, fmt.Errorf("%w: must be at least 1", ErrInvalidSeatNumber)
	}
	return SeatNumber(raw), nil
}

// Int returns the seat number as an int.
func (seat SeatNumber) Int() int {
	return int(seat)
}

// BookingStatus defines the booking lifecycle.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCanceled  BookingStatus = "canceled"
)

// ParseBookingStatus validates a stored status value.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	switch BookingStatus(strings.TrimSpace(raw)) {
	case BookingStatusPending:
		return BookingStatusPending, nil
	case BookingStatusConfirmed:
		return BookingStatusConfirmed, nil
	case BookingStatusCanceled:
		return BookingStatusCanceled, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBookingStatus, raw)
}

// String returns the status value.
func (status BookingStatus) String() string {
	return string(status)
}

// Occupies reports whether a booking in this status holds its seat.
func (status BookingStatus) Occupies() bool {
	return status == BookingStatusPending || status == BookingStatusConfirmed
}

// PaymentStatus tracks whether a booking has been paid.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// ParsePaymentStatus validates a stored payment status value.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch PaymentStatus(strings.TrimSpace(raw)) {
	case PaymentStatusUnpaid:
		return PaymentStatusUnpaid, nil
	case PaymentStatusPaid:
		return PaymentStatusPaid, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, raw)
}

// String returns the payment status value.
func (status PaymentStatus) String() string {
	return string(status)
}

// Vehicle is a bookable unit with a fixed seat count.
type Vehicle struct {
	ID         VehicleID
	Name       VehicleName
	TotalSeats SeatCount
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasSeat reports whether seat lies in [1, TotalSeats].
func (vehicle Vehicle) HasSeat(seat SeatNumber) bool {
	return seat >= 1 && int(seat) <= int(vehicle.TotalSeats)
}

// Booking is a user's claim on one seat of one vehicle.
type Booking struct {
	ID            BookingID
	UserID        UserID
	VehicleID     VehicleID
	Seat          SeatNumber
	Status        BookingStatus
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Occupies reports whether the booking currently holds its seat.
func (booking Booking) Occupies() bool {
	return booking.Status.Occupies()
}

// Requestor is the caller identity attached to every mutating call.
// Admin is supplied by the external identity provider.
type Requestor struct {
	UserID UserID
	Admin  bool
}

// CanAccess reports whether the requestor may act on the booking.
func (requestor Requestor) CanAccess(booking Booking) bool {
	return requestor.Admin || requestor.UserID == booking.UserID
}

// VehicleOccupancy is a vehicle together with its currently occupied seats.
type VehicleOccupancy struct {
	Vehicle       Vehicle
	OccupiedSeats []SeatNumber
}

// AvailableSeats returns the number of free seats.
func (occupancy VehicleOccupancy) AvailableSeats() int {
	return occupancy.Vehicle.TotalSeats.Int() - len(occupancy.OccupiedSeats)
}

// Store is the persistence contract used by Service.
// Lists are returned in insertion order.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	InsertVehicle(ctx context.Context, vehicle Vehicle) error
	GetVehicle(ctx context.Context, vehicleID VehicleID) (Vehicle, error)
	ListVehicles(ctx context.Context) ([]Vehicle, error)
	UpdateVehicle(ctx context.Context, vehicle Vehicle) error
	DeleteVehicle(ctx context.Context, vehicleID VehicleID) error
	InsertBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, bookingID BookingID) (Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID BookingID, from, to BookingStatus, at time.Time) error
	UpdatePaymentStatus(ctx context.Context, bookingID BookingID, from, to PaymentStatus, at time.Time) error
	ListBookingsByUser(ctx context.Context, userID UserID) ([]Booking, error)
	ListActiveBookingsByVehicle(ctx context.Context, vehicleID VehicleID) ([]Booking, error)
	ListActiveBookings(ctx context.Context) ([]Booking, error)
}
