package booking

import (
	"context"
	"fmt"
)

// BookingsForUser returns every booking owned by userID, any status, in insertion order.
func (service *Service) BookingsForUser(ctx context.Context, userID UserID) ([]Booking, error) {
	return service.store.ListBookingsByUser(ctx, userID)
}

// ActiveBookingsForVehicle returns the pending and confirmed bookings of a vehicle.
func (service *Service) ActiveBookingsForVehicle(ctx context.Context, vehicleID VehicleID) ([]Booking, error) {
	return service.store.ListActiveBookingsByVehicle(ctx, vehicleID)
}

// GetBooking returns a booking visible to the requestor.
func (service *Service) GetBooking(ctx context.Context, bookingID BookingID, requestor Requestor) (Booking, error) {
	booking, err := service.store.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if !requestor.CanAccess(booking) {
		return Booking{}, fmt.Errorf("%w: booking %s belongs to another user", ErrForbidden, bookingID.String())
	}
	return booking, nil
}

// CancelBooking cancels a booking on behalf of its owner or an administrator.
// Canceled is terminal: a second cancel returns ErrAlreadyCanceled and changes nothing.
func (service *Service) CancelBooking(ctx context.Context, bookingID BookingID, requestor Requestor) (Booking, error) {
	canceled, operationError := service.cancel(ctx, bookingID, func(current Booking) error {
		if !requestor.CanAccess(current) {
			return fmt.Errorf("%w: booking %s belongs to another user", ErrForbidden, bookingID.String())
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: OperationCancelBooking,
		UserID:    requestor.UserID,
		VehicleID: canceled.VehicleID,
		BookingID: bookingID,
		Seat:      canceled.Seat,
		Booking:   canceled,
		Error:     operationError,
	})
	return canceled, operationError
}

// ResetBookings cancels every occupying booking on every vehicle and returns
// how many were canceled. Administrators only.
func (service *Service) ResetBookings(ctx context.Context, requestor Requestor) (int, error) {
	canceledCount := 0
	operationError := requireAdmin(requestor, "reset bookings")
	if operationError == nil {
		canceledCount, operationError = service.cancelAllActive(ctx)
	}
	service.logOperation(ctx, OperationLog{
		Operation: OperationResetBookings,
		UserID:    requestor.UserID,
		Count:     canceledCount,
		Error:     operationError,
	})
	return canceledCount, operationError
}

func (service *Service) cancelAllActive(ctx context.Context) (int, error) {
	vehicles, err := service.store.ListVehicles(ctx)
	if err != nil {
		return 0, err
	}
	canceledCount := 0
	for _, vehicle := range vehicles {
		vehicleCanceled := 0
		err := service.withVehicleLock(ctx, vehicle.ID, func(ctx context.Context, transactionStore Store) error {
			active, err := transactionStore.ListActiveBookingsByVehicle(ctx, vehicle.ID)
			if err != nil {
				return err
			}
			nowUTC := service.now()
			for _, booking := range active {
				if err := transactionStore.UpdateBookingStatus(ctx, booking.ID, booking.Status, BookingStatusCanceled, nowUTC); err != nil {
					return err
				}
			}
			vehicleCanceled = len(active)
			return nil
		})
		if err != nil {
			return canceledCount, err
		}
		canceledCount += vehicleCanceled
	}
	return canceledCount, nil
}
