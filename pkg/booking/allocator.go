package booking

import (
	"context"
	"fmt"
	"sort"
)

// ReserveSeat claims one seat for userID. The availability check and the
// booking insert run under the vehicle's lock, so of any number of concurrent
// claims on the same seat exactly one succeeds and the rest get
// ErrSeatUnavailable.
func (service *Service) ReserveSeat(ctx context.Context, vehicleID VehicleID, seat SeatNumber, userID UserID) (Booking, error) {
	var reserved Booking
	operationError := requireClaimIDs(vehicleID, userID)
	if operationError == nil {
		operationError = service.withVehicleLock(ctx, vehicleID, func(ctx context.Context, transactionStore Store) error {
			vehicle, err := transactionStore.GetVehicle(ctx, vehicleID)
			if err != nil {
				return err
			}
			if !vehicle.HasSeat(seat) {
				return seatOutOfRange(seat, vehicle)
			}
			active, err := transactionStore.ListActiveBookingsByVehicle(ctx, vehicleID)
			if err != nil {
				return err
			}
			for _, existing := range active {
				if existing.Seat == seat {
					return fmt.Errorf("%w: seat %d on vehicle %s", ErrSeatUnavailable, seat, vehicleID.String())
				}
			}
			candidate, err := service.newClaim(vehicleID, seat, userID)
			if err != nil {
				return err
			}
			if err := transactionStore.InsertBooking(ctx, candidate); err != nil {
				return err
			}
			reserved = candidate
			return nil
		})
	}
	service.logOperation(ctx, OperationLog{
		Operation: OperationReserveSeat,
		UserID:    userID,
		VehicleID: vehicleID,
		BookingID: reserved.ID,
		Seat:      seat,
		Booking:   reserved,
		Error:     operationError,
	})
	return reserved, operationError
}

// ReserveSeats claims several seats of one vehicle for userID, all or
// nothing. When any requested seat is occupied nothing is booked and the
// returned error is a *SeatsTakenError listing the occupied seats.
func (service *Service) ReserveSeats(ctx context.Context, vehicleID VehicleID, seats []SeatNumber, userID UserID) ([]Booking, error) {
	var reserved []Booking
	operationError := requireClaimIDs(vehicleID, userID)
	if operationError == nil && len(seats) == 0 {
		operationError = fmt.Errorf("%w: no seats requested", ErrInvalidSeatNumber)
	}
	if operationError == nil {
		operationError = service.withVehicleLock(ctx, vehicleID, func(ctx context.Context, transactionStore Store) error {
			vehicle, err := transactionStore.GetVehicle(ctx, vehicleID)
			if err != nil {
				return err
			}
			requested := make(map[SeatNumber]bool, len(seats))
			for _, seat := range seats {
				if !vehicle.HasSeat(seat) {
					return seatOutOfRange(seat, vehicle)
				}
				if requested[seat] {
					return WrapError(errorOperationService, errorSubjectBooking, errorCodeSeatDuplicate,
						fmt.Errorf("%w: seat %d requested twice", ErrInvalidSeatNumber, seat))
				}
				requested[seat] = true
			}
			active, err := transactionStore.ListActiveBookingsByVehicle(ctx, vehicleID)
			if err != nil {
				return err
			}
			var taken []SeatNumber
			for _, existing := range active {
				if requested[existing.Seat] {
					taken = append(taken, existing.Seat)
				}
			}
			if len(taken) > 0 {
				sort.Slice(taken, func(left, right int) bool { return taken[left] < taken[right] })
				return WrapError(errorOperationService, errorSubjectBooking, errorCodeSeatsTaken,
					&SeatsTakenError{VehicleID: vehicleID, Seats: taken})
			}
			claims := make([]Booking, 0, len(seats))
			for _, seat := range seats {
				candidate, err := service.newClaim(vehicleID, seat, userID)
				if err != nil {
					return err
				}
				if err := transactionStore.InsertBooking(ctx, candidate); err != nil {
					return err
				}
				claims = append(claims, candidate)
			}
			reserved = claims
			return nil
		})
	}
	service.logOperation(ctx, OperationLog{
		Operation: OperationReserveSeats,
		UserID:    userID,
		VehicleID: vehicleID,
		Count:     len(reserved),
		Error:     operationError,
	})
	return reserved, operationError
}

func (service *Service) newClaim(vehicleID VehicleID, seat SeatNumber, userID UserID) (Booking, error) {
	bookingID, err := NewBookingID(service.newID())
	if err != nil {
		return Booking{}, err
	}
	nowUTC := service.now()
	return Booking{
		ID:            bookingID,
		UserID:        userID,
		VehicleID:     vehicleID,
		Seat:          seat,
		Status:        BookingStatusConfirmed,
		PaymentStatus: PaymentStatusUnpaid,
		CreatedAt:     nowUTC,
		UpdatedAt:     nowUTC,
	}, nil
}

// requireClaimIDs rejects zero-value identifiers passed by library callers.
func requireClaimIDs(vehicleID VehicleID, userID UserID) error {
	if vehicleID.String() == "" {
		return WrapError(errorOperationService, errorSubjectBooking, errorCodeMissingID,
			fmt.Errorf("%w: empty value", ErrInvalidVehicleID))
	}
	if userID.String() == "" {
		return WrapError(errorOperationService, errorSubjectBooking, errorCodeMissingID,
			fmt.Errorf("%w: empty value", ErrInvalidUserID))
	}
	return nil
}

func seatOutOfRange(seat SeatNumber, vehicle Vehicle) error {
	return WrapError(errorOperationService, errorSubjectBooking, errorCodeSeatRange,
		fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidSeatNumber, seat, vehicle.TotalSeats))
}

// ReleaseSeat cancels the booking without an ownership check, freeing its
// seat for the next claim.
func (service *Service) ReleaseSeat(ctx context.Context, bookingID BookingID) (Booking, error) {
	released, operationError := service.cancel(ctx, bookingID, nil)
	service.logOperation(ctx, OperationLog{
		Operation: OperationReleaseSeat,
		UserID:    released.UserID,
		VehicleID: released.VehicleID,
		BookingID: bookingID,
		Seat:      released.Seat,
		Booking:   released,
		Error:     operationError,
	})
	return released, operationError
}

// cancel moves a booking to canceled. authorize runs against the stored
// booking before the lifecycle check.
func (service *Service) cancel(ctx context.Context, bookingID BookingID, authorize func(Booking) error) (Booking, error) {
	current, err := service.store.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if authorize != nil {
		if err := authorize(current); err != nil {
			return current, err
		}
	}
	var canceled Booking
	operationError := service.withBookingTx(ctx, current.VehicleID, func(ctx context.Context, transactionStore Store) error {
		latest, err := transactionStore.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if latest.Status == BookingStatusCanceled {
			canceled = latest
			return fmt.Errorf("%w: %s", ErrAlreadyCanceled, bookingID.String())
		}
		nowUTC := service.now()
		if err := transactionStore.UpdateBookingStatus(ctx, bookingID, latest.Status, BookingStatusCanceled, nowUTC); err != nil {
			return err
		}
		latest.Status = BookingStatusCanceled
		latest.UpdatedAt = nowUTC
		canceled = latest
		return nil
	})
	if canceled.ID.String() == "" {
		canceled = current
	}
	return canceled, operationError
}
