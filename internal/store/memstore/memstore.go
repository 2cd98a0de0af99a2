// Package memstore keeps vehicles and bookings in process memory.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
)

type vehicleRecord struct {
	seq     uint64
	vehicle booking.Vehicle
}

type bookingRecord struct {
	seq     uint64
	booking booking.Booking
}

// Store implements booking.Store in memory. Records are returned by value so
// callers never share state with the store.
type Store struct {
	mutex    sync.RWMutex
	nextSeq  uint64
	vehicles map[booking.VehicleID]vehicleRecord
	bookings map[booking.BookingID]bookingRecord
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		vehicles: make(map[booking.VehicleID]vehicleRecord),
		bookings: make(map[booking.BookingID]bookingRecord),
	}
}

// WithTx runs fn against a journaling view of the store. When fn fails every
// write it made is undone in reverse order.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore booking.Store) error) error {
	transaction := &transaction{store: store}
	if err := fn(ctx, transaction); err != nil {
		transaction.rollback()
		return err
	}
	return nil
}

func (store *Store) InsertVehicle(_ context.Context, vehicle booking.Vehicle) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if _, exists := store.vehicles[vehicle.ID]; exists {
		return fmt.Errorf("memstore: vehicle %s already exists", vehicle.ID.String())
	}
	store.nextSeq++
	store.vehicles[vehicle.ID] = vehicleRecord{seq: store.nextSeq, vehicle: vehicle}
	return nil
}

func (store *Store) GetVehicle(_ context.Context, vehicleID booking.VehicleID) (booking.Vehicle, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	record, ok := store.vehicles[vehicleID]
	if !ok {
		return booking.Vehicle{}, fmt.Errorf("%w: %s", booking.ErrUnknownVehicle, vehicleID.String())
	}
	return record.vehicle, nil
}

func (store *Store) ListVehicles(_ context.Context) ([]booking.Vehicle, error) {
	store.mutex.RLock()
	records := make([]vehicleRecord, 0, len(store.vehicles))
	for _, record := range store.vehicles {
		records = append(records, record)
	}
	store.mutex.RUnlock()
	sort.Slice(records, func(left, right int) bool { return records[left].seq < records[right].seq })
	vehicles := make([]booking.Vehicle, 0, len(records))
	for _, record := range records {
		vehicles = append(vehicles, record.vehicle)
	}
	return vehicles, nil
}

func (store *Store) UpdateVehicle(ctx context.Context, vehicle booking.Vehicle) error {
	_, err := store.replaceVehicle(vehicle)
	return err
}

func (store *Store) replaceVehicle(vehicle booking.Vehicle) (booking.Vehicle, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	record, ok := store.vehicles[vehicle.ID]
	if !ok {
		return booking.Vehicle{}, fmt.Errorf("%w: %s", booking.ErrUnknownVehicle, vehicle.ID.String())
	}
	previous := record.vehicle
	record.vehicle = vehicle
	store.vehicles[vehicle.ID] = record
	return previous, nil
}

func (store *Store) DeleteVehicle(_ context.Context, vehicleID booking.VehicleID) error {
	_, err := store.removeVehicle(vehicleID)
	return err
}

func (store *Store) removeVehicle(vehicleID booking.VehicleID) (vehicleRecord, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	record, ok := store.vehicles[vehicleID]
	if !ok {
		return vehicleRecord{}, fmt.Errorf("%w: %s", booking.ErrUnknownVehicle, vehicleID.String())
	}
	delete(store.vehicles, vehicleID)
	return record, nil
}

// InsertBooking enforces the one-occupying-booking-per-seat rule on its own,
// mirroring the partial unique index of the SQL stores.
func (store *Store) InsertBooking(_ context.Context, candidate booking.Booking) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if _, exists := store.bookings[candidate.ID]; exists {
		return fmt.Errorf("memstore: booking %s already exists", candidate.ID.String())
	}
	if candidate.Occupies() {
		for _, record := range store.bookings {
			existing := record.booking
			if existing.VehicleID == candidate.VehicleID && existing.Seat == candidate.Seat && existing.Occupies() {
				return fmt.Errorf("%w: seat %d on vehicle %s", booking.ErrSeatUnavailable, candidate.Seat, candidate.VehicleID.String())
			}
		}
	}
	store.nextSeq++
	store.bookings[candidate.ID] = bookingRecord{seq: store.nextSeq, booking: candidate}
	return nil
}

func (store *Store) GetBooking(_ context.Context, bookingID booking.BookingID) (booking.Booking, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	record, ok := store.bookings[bookingID]
	if !ok {
		return booking.Booking{}, fmt.Errorf("%w: %s", booking.ErrUnknownBooking, bookingID.String())
	}
	return record.booking, nil
}

func (store *Store) UpdateBookingStatus(_ context.Context, bookingID booking.BookingID, from, to booking.BookingStatus, at time.Time) error {
	_, err := store.updateBookingStatus(bookingID, from, to, at)
	return err
}

func (store *Store) UpdatePaymentStatus(_ context.Context, bookingID booking.BookingID, from, to booking.PaymentStatus, at time.Time) error {
	_, err := store.updatePaymentStatus(bookingID, from, to, at)
	return err
}

func (store *Store) updateBookingStatus(bookingID booking.BookingID, from, to booking.BookingStatus, at time.Time) (booking.Booking, error) {
	return store.mutateBooking(bookingID, func(current *booking.Booking) error {
		if current.Status != from {
			return fmt.Errorf("%w: %s is %s, expected %s", booking.ErrStatusConflict, bookingID.String(), current.Status, from)
		}
		current.Status = to
		current.UpdatedAt = at
		return nil
	})
}

func (store *Store) updatePaymentStatus(bookingID booking.BookingID, from, to booking.PaymentStatus, at time.Time) (booking.Booking, error) {
	return store.mutateBooking(bookingID, func(current *booking.Booking) error {
		if current.PaymentStatus != from {
			return fmt.Errorf("%w: %s payment is %s, expected %s", booking.ErrStatusConflict, bookingID.String(), current.PaymentStatus, from)
		}
		current.PaymentStatus = to
		current.UpdatedAt = at
		return nil
	})
}

// mutateBooking applies change to a copy of the booking and stores it when
// change succeeds. It returns the booking as it was before.
func (store *Store) mutateBooking(bookingID booking.BookingID, change func(current *booking.Booking) error) (booking.Booking, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	record, ok := store.bookings[bookingID]
	if !ok {
		return booking.Booking{}, fmt.Errorf("%w: %s", booking.ErrUnknownBooking, bookingID.String())
	}
	previous := record.booking
	updated := record.booking
	if err := change(&updated); err != nil {
		return booking.Booking{}, err
	}
	record.booking = updated
	store.bookings[bookingID] = record
	return previous, nil
}

func (store *Store) ListBookingsByUser(_ context.Context, userID booking.UserID) ([]booking.Booking, error) {
	return store.filterBookings(func(candidate booking.Booking) bool { return candidate.UserID == userID }), nil
}

func (store *Store) ListActiveBookingsByVehicle(_ context.Context, vehicleID booking.VehicleID) ([]booking.Booking, error) {
	return store.filterBookings(func(candidate booking.Booking) bool {
		return candidate.VehicleID == vehicleID && candidate.Occupies()
	}), nil
}

func (store *Store) ListActiveBookings(_ context.Context) ([]booking.Booking, error) {
	return store.filterBookings(booking.Booking.Occupies), nil
}

func (store *Store) filterBookings(keep func(booking.Booking) bool) []booking.Booking {
	store.mutex.RLock()
	records := make([]bookingRecord, 0)
	for _, record := range store.bookings {
		if keep(record.booking) {
			records = append(records, record)
		}
	}
	store.mutex.RUnlock()
	sort.Slice(records, func(left, right int) bool { return records[left].seq < records[right].seq })
	bookings := make([]booking.Booking, 0, len(records))
	for _, record := range records {
		bookings = append(bookings, record.booking)
	}
	return bookings
}

func (store *Store) restoreVehicle(record vehicleRecord) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.vehicles[record.vehicle.ID] = record
}

func (store *Store) forgetBooking(bookingID booking.BookingID) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	delete(store.bookings, bookingID)
}

func (store *Store) restoreBooking(previous booking.Booking) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	record, ok := store.bookings[previous.ID]
	if !ok {
		return
	}
	record.booking = previous
	store.bookings[previous.ID] = record
}
