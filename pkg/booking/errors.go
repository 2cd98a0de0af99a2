package booking

import (
	"errors"
	"fmt"
)

// Error kinds reported by the engine. Callers match them with errors.Is.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrSeatUnavailable = errors.New("seat unavailable")
	ErrForbidden       = errors.New("forbidden")
	ErrAlreadyCanceled = errors.New("booking already canceled")
	ErrBookingCanceled = errors.New("booking canceled")
	ErrVehicleInUse    = errors.New("vehicle in use")
	ErrPaymentDeclined = errors.New("payment declined")

	ErrInvalidServiceConfig = errors.New("invalid service config")
	ErrStatusConflict       = errors.New("booking status changed concurrently")
)

// Validation and lookup errors wrapping the kinds above.
var (
	ErrInvalidVehicleID     = fmt.Errorf("%w: vehicle id", ErrInvalidInput)
	ErrInvalidBookingID     = fmt.Errorf("%w: booking id", ErrInvalidInput)
	ErrInvalidUserID        = fmt.Errorf("%w: user id", ErrInvalidInput)
	ErrInvalidVehicleName   = fmt.Errorf("%w: vehicle name", ErrInvalidInput)
	ErrInvalidSeatCount     = fmt.Errorf("%w: seat count", ErrInvalidInput)
	ErrInvalidSeatNumber    = fmt.Errorf("%w: seat number", ErrInvalidInput)
	ErrInvalidBookingStatus = fmt.Errorf("%w: booking status", ErrInvalidInput)
	ErrInvalidPaymentStatus = fmt.Errorf("%w: payment status", ErrInvalidInput)

	ErrUnknownVehicle = fmt.Errorf("%w: vehicle", ErrNotFound)
	ErrUnknownBooking = fmt.Errorf("%w: booking", ErrNotFound)
)

// SeatsTakenError reports which requested seats were already occupied.
// It matches ErrSeatUnavailable under errors.Is.
type SeatsTakenError struct {
	VehicleID VehicleID
	Seats     []SeatNumber
}

func (seatsTakenError *SeatsTakenError) Error() string {
	return fmt.Sprintf("%v: seats %v on vehicle %s", ErrSeatUnavailable, seatsTakenError.Seats, seatsTakenError.VehicleID.String())
}

// Unwrap returns ErrSeatUnavailable.
func (seatsTakenError *SeatsTakenError) Unwrap() error {
	return ErrSeatUnavailable
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
