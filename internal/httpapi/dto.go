package httpapi

import (
	"strings"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerValidatorsOnce sync.Once

// registerValidators adds the notblank rule to gin's validator engine.
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("notblank", func(field validator.FieldLevel) bool {
			return strings.TrimSpace(field.Field().String()) != ""
		})
	})
}

type vehicleRequest struct {
	Name       string `json:"name" binding:"required,notblank,max=120"`
	TotalSeats int    `json:"total_seats" binding:"required,min=1,max=1000"`
}

type bookingRequest struct {
	VehicleID string `json:"vehicle_id" binding:"required,notblank"`
	Seat      int    `json:"seat" binding:"required,min=1"`
}

type bookingBatchRequest struct {
	VehicleID string `json:"vehicle_id" binding:"required,notblank"`
	Seats     []int  `json:"seats" binding:"required,min=1,dive,min=1"`
}

type paymentRequest struct {
	BookingID string `json:"booking_id" binding:"required,notblank"`
}

type vehicleResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	OccupiedSeats  []int     `json:"occupied_seats"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type bookingResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	VehicleID     string    `json:"vehicle_id"`
	Seat          int       `json:"seat"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newVehicleResponse(occupancy booking.VehicleOccupancy) vehicleResponse {
	occupied := make([]int, 0, len(occupancy.OccupiedSeats))
	for _, seat := range occupancy.OccupiedSeats {
		occupied = append(occupied, seat.Int())
	}
	return vehicleResponse{
		ID:             occupancy.Vehicle.ID.String(),
		Name:           occupancy.Vehicle.Name.String(),
		TotalSeats:     occupancy.Vehicle.TotalSeats.Int(),
		AvailableSeats: occupancy.AvailableSeats(),
		OccupiedSeats:  occupied,
		CreatedAt:      occupancy.Vehicle.CreatedAt,
		UpdatedAt:      occupancy.Vehicle.UpdatedAt,
	}
}

func newBookingResponse(record booking.Booking) bookingResponse {
	return bookingResponse{
		ID:            record.ID.String(),
		UserID:        record.UserID.String(),
		VehicleID:     record.VehicleID.String(),
		Seat:          record.Seat.Int(),
		Status:        record.Status.String(),
		PaymentStatus: record.PaymentStatus.String(),
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

func newBookingResponses(records []booking.Booking) []bookingResponse {
	responses := make([]bookingResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, newBookingResponse(record))
	}
	return responses
}
