package httpapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
	"github.com/gin-gonic/gin"
)

const (
	errorCodeInvalidInput    = "invalid_input"
	errorCodeNotFound        = "not_found"
	errorCodeSeatUnavailable = "seat_unavailable"
	errorCodeForbidden       = "forbidden"
	errorCodeAlreadyCanceled = "already_canceled"
	errorCodeBookingCanceled = "booking_canceled"
	errorCodeVehicleInUse    = "vehicle_in_use"
	errorCodePaymentDeclined = "payment_declined"
	errorCodeConflict        = "conflict"
	errorCodeUnauthorized    = "unauthorized"
	errorCodeRateLimited     = "rate_limited"
	errorCodeInternal        = "internal_error"
)

var errorStatuses = []struct {
	kind   error
	status int
	code   string
}{
	{kind: booking.ErrInvalidInput, status: http.StatusBadRequest, code: errorCodeInvalidInput},
	{kind: booking.ErrNotFound, status: http.StatusNotFound, code: errorCodeNotFound},
	{kind: booking.ErrSeatUnavailable, status: http.StatusConflict, code: errorCodeSeatUnavailable},
	{kind: booking.ErrForbidden, status: http.StatusForbidden, code: errorCodeForbidden},
	{kind: booking.ErrAlreadyCanceled, status: http.StatusConflict, code: errorCodeAlreadyCanceled},
	{kind: booking.ErrBookingCanceled, status: http.StatusConflict, code: errorCodeBookingCanceled},
	{kind: booking.ErrVehicleInUse, status: http.StatusConflict, code: errorCodeVehicleInUse},
	{kind: booking.ErrPaymentDeclined, status: http.StatusPaymentRequired, code: errorCodePaymentDeclined},
	{kind: booking.ErrStatusConflict, status: http.StatusConflict, code: errorCodeConflict},
}

// statusForError maps an engine error to its HTTP status and error code.
func statusForError(err error) (int, string) {
	for _, candidate := range errorStatuses {
		if errors.Is(err, candidate.kind) {
			return candidate.status, candidate.code
		}
	}
	return http.StatusInternalServerError, errorCodeInternal
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
