package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
)

func TestStatusForError(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "invalid seat", err: booking.ErrInvalidSeatNumber, wantStatus: http.StatusBadRequest, wantCode: errorCodeInvalidInput},
		{name: "unknown vehicle", err: booking.ErrUnknownVehicle, wantStatus: http.StatusNotFound, wantCode: errorCodeNotFound},
		{name: "seat taken", err: fmt.Errorf("wrapped: %w", booking.ErrSeatUnavailable), wantStatus: http.StatusConflict, wantCode: errorCodeSeatUnavailable},
		{name: "forbidden", err: booking.ErrForbidden, wantStatus: http.StatusForbidden, wantCode: errorCodeForbidden},
		{name: "already canceled", err: booking.ErrAlreadyCanceled, wantStatus: http.StatusConflict, wantCode: errorCodeAlreadyCanceled},
		{name: "booking canceled", err: booking.ErrBookingCanceled, wantStatus: http.StatusConflict, wantCode: errorCodeBookingCanceled},
		{name: "vehicle in use", err: booking.WrapError("service", "vehicle", "active_bookings", booking.ErrVehicleInUse), wantStatus: http.StatusConflict, wantCode: errorCodeVehicleInUse},
		{name: "payment declined", err: booking.ErrPaymentDeclined, wantStatus: http.StatusPaymentRequired, wantCode: errorCodePaymentDeclined},
		{name: "status conflict", err: booking.ErrStatusConflict, wantStatus: http.StatusConflict, wantCode: errorCodeConflict},
		{name: "unexpected", err: errors.New("disk on fire"), wantStatus: http.StatusInternalServerError, wantCode: errorCodeInternal},
	}
	for _, testCase := range testCases {
		status, code := statusForError(testCase.err)
		if status != testCase.wantStatus || code != testCase.wantCode {
			t.Fatalf("%s: expected %d/%s, got %d/%s", testCase.name, testCase.wantStatus, testCase.wantCode, status, code)
		}
	}
}
