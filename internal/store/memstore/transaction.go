package memstore

import (
	"context"
	"time"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
)

// transaction forwards to the store and records how to undo each write.
type transaction struct {
	store *Store
	undo  []func()
}

func (transaction *transaction) rollback() {
	for index := len(transaction.undo) - 1; index >= 0; index-- {
		transaction.undo[index]()
	}
	transaction.undo = nil
}

func (transaction *transaction) WithTx(ctx context.Context, fn func(ctx context.Context, txStore booking.Store) error) error {
	return fn(ctx, transaction)
}

func (transaction *transaction) InsertVehicle(ctx context.Context, vehicle booking.Vehicle) error {
	if err := transaction.store.InsertVehicle(ctx, vehicle); err != nil {
		return err
	}
	transaction.undo = append(transaction.undo, func() { _, _ = transaction.store.removeVehicle(vehicle.ID) })
	return nil
}

func (transaction *transaction) GetVehicle(ctx context.Context, vehicleID booking.VehicleID) (booking.Vehicle, error) {
	return transaction.store.GetVehicle(ctx, vehicleID)
}

func (transaction *transaction) ListVehicles(ctx context.Context) ([]booking.Vehicle, error) {
	return transaction.store.ListVehicles(ctx)
}

func (transaction *transaction) UpdateVehicle(_ context.Context, vehicle booking.Vehicle) error {
	previous, err := transaction.store.replaceVehicle(vehicle)
	if err != nil {
		return err
	}
	transaction.undo = append(transaction.undo, func() { _, _ = transaction.store.replaceVehicle(previous) })
	return nil
}

func (transaction *transaction) DeleteVehicle(_ context.Context, vehicleID booking.VehicleID) error {
	removed, err := transaction.store.removeVehicle(vehicleID)
	if err != nil {
		return err
	}
	transaction.undo = append(transaction.undo, func() { transaction.store.restoreVehicle(removed) })
	return nil
}

func (transaction *transaction) InsertBooking(ctx context.Context, candidate booking.Booking) error {
	if err := transaction.store.InsertBooking(ctx, candidate); err != nil {
		return err
	}
	transaction.undo = append(transaction.undo, func() { transaction.store.forgetBooking(candidate.ID) })
	return nil
}

func (transaction *transaction) GetBooking(ctx context.Context, bookingID booking.BookingID) (booking.Booking, error) {
	return transaction.store.GetBooking(ctx, bookingID)
}

func (transaction *transaction) UpdateBookingStatus(_ context.Context, bookingID booking.BookingID, from, to booking.BookingStatus, at time.Time) error {
	previous, err := transaction.store.updateBookingStatus(bookingID, from, to, at)
	if err != nil {
		return err
	}
	transaction.undo = append(transaction.undo, func() { transaction.store.restoreBooking(previous) })
	return nil
}

func (transaction *transaction) UpdatePaymentStatus(_ context.Context, bookingID booking.BookingID, from, to booking.PaymentStatus, at time.Time) error {
	previous, err := transaction.store.updatePaymentStatus(bookingID, from, to, at)
	if err != nil {
		return err
	}
	transaction.undo = append(transaction.undo, func() { transaction.store.restoreBooking(previous) })
	return nil
}

func (transaction *transaction) ListBookingsByUser(ctx context.Context, userID booking.UserID) ([]booking.Booking, error) {
	return transaction.store.ListBookingsByUser(ctx, userID)
}

func (transaction *transaction) ListActiveBookingsByVehicle(ctx context.Context, vehicleID booking.VehicleID) ([]booking.Booking, error) {
	return transaction.store.ListActiveBookingsByVehicle(ctx, vehicleID)
}

func (transaction *transaction) ListActiveBookings(ctx context.Context) ([]booking.Booking, error) {
	return transaction.store.ListActiveBookings(ctx)
}
