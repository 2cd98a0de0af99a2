package booking

import (
	"context"
	"errors"
	"fmt"
)

// PaymentGateway confirms that a booking has been paid for.
// A refusal is reported as an error; it is surfaced to callers as ErrPaymentDeclined.
type PaymentGateway interface {
	Authorize(ctx context.Context, booking Booking) error
}

// SimulatedGateway approves every payment.
type SimulatedGateway struct{}

// Authorize always succeeds.
func (SimulatedGateway) Authorize(context.Context, Booking) error {
	return nil
}

// VerifyPayment marks a booking as paid. Seat occupancy is not affected.
// Verifying an already paid booking is a successful no-op; canceled bookings
// fail with ErrBookingCanceled.
func (service *Service) VerifyPayment(ctx context.Context, bookingID BookingID) (Booking, error) {
	verified, operationError := service.verifyPayment(ctx, bookingID)
	service.logOperation(ctx, OperationLog{
		Operation: OperationVerifyPayment,
		UserID:    verified.UserID,
		VehicleID: verified.VehicleID,
		BookingID: bookingID,
		Seat:      verified.Seat,
		Booking:   verified,
		Error:     operationError,
	})
	return verified, operationError
}

func (service *Service) verifyPayment(ctx context.Context, bookingID BookingID) (Booking, error) {
	current, err := service.store.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if current.Status == BookingStatusCanceled {
		return current, fmt.Errorf("%w: %s", ErrBookingCanceled, bookingID.String())
	}
	if current.PaymentStatus == PaymentStatusPaid {
		return current, nil
	}
	// The gateway is external; call it before entering the vehicle's critical section.
	if err := service.gateway.Authorize(ctx, current); err != nil {
		if !errors.Is(err, ErrPaymentDeclined) {
			err = fmt.Errorf("%w: %v", ErrPaymentDeclined, err)
		}
		return current, WrapError(errorOperationService, errorSubjectPayment, errorCodeGatewayRefuse, err)
	}
	verified := current
	operationError := service.withBookingTx(ctx, current.VehicleID, func(ctx context.Context, transactionStore Store) error {
		latest, err := transactionStore.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		verified = latest
		if latest.Status == BookingStatusCanceled {
			return fmt.Errorf("%w: %s", ErrBookingCanceled, bookingID.String())
		}
		if latest.PaymentStatus == PaymentStatusPaid {
			return nil
		}
		nowUTC := service.now()
		if err := transactionStore.UpdatePaymentStatus(ctx, bookingID, PaymentStatusUnpaid, PaymentStatusPaid, nowUTC); err != nil {
			return err
		}
		verified.PaymentStatus = PaymentStatusPaid
		verified.UpdatedAt = nowUTC
		return nil
	})
	return verified, operationError
}
