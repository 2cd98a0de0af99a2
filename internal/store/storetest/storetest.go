// Package storetest checks that a booking.Store honors the contract the
// booking service relies on.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(test *testing.T) booking.Store

var baseTime = time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)

// Run executes the contract suite against stores produced by factory.
func Run(test *testing.T, factory Factory) {
	test.Helper()
	cases := []struct {
		name string
		run  func(test *testing.T, store booking.Store)
	}{
		{name: "vehicles keep insertion order", run: vehiclesKeepInsertionOrder},
		{name: "vehicle lookups report not found", run: vehicleLookupsReportNotFound},
		{name: "vehicle update and delete", run: vehicleUpdateAndDelete},
		{name: "occupied seat rejects second booking", run: occupiedSeatRejectsSecondBooking},
		{name: "canceled booking frees seat", run: canceledBookingFreesSeat},
		{name: "status updates compare and set", run: statusUpdatesCompareAndSet},
		{name: "booking listings", run: bookingListings},
		{name: "failed transaction rolls back", run: failedTransactionRollsBack},
	}
	for _, testCase := range cases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			testCase.run(test, factory(test))
		})
	}
}

func vehiclesKeepInsertionOrder(test *testing.T, store booking.Store) {
	ctx := context.Background()
	names := []string{"Zephyr", "Alpha", "Midway"}
	for index, name := range names {
		mustInsertVehicle(test, store, fmt.Sprintf("v-%d", 3-index), name, 4)
	}
	vehicles, err := store.ListVehicles(ctx)
	if err != nil {
		test.Fatalf("list vehicles: %v", err)
	}
	if len(vehicles) != len(names) {
		test.Fatalf("expected %d vehicles, got %d", len(names), len(vehicles))
	}
	for index, vehicle := range vehicles {
		if vehicle.Name.String() != names[index] {
			test.Fatalf("position %d: expected %s, got %s", index, names[index], vehicle.Name.String())
		}
	}
	first := vehicles[0]
	if first.TotalSeats != 4 || !first.CreatedAt.Equal(baseTime) {
		test.Fatalf("vehicle fields not preserved: %+v", first)
	}
}

func vehicleLookupsReportNotFound(test *testing.T, store booking.Store) {
	ctx := context.Background()
	missing := mustVehicleID(test, "missing")
	if _, err := store.GetVehicle(ctx, missing); !errors.Is(err, booking.ErrNotFound) {
		test.Fatalf("get: expected not found, got %v", err)
	}
	if err := store.DeleteVehicle(ctx, missing); !errors.Is(err, booking.ErrNotFound) {
		test.Fatalf("delete: expected not found, got %v", err)
	}
	if _, err := store.GetBooking(ctx, mustBookingID(test, "missing")); !errors.Is(err, booking.ErrNotFound) {
		test.Fatalf("get booking: expected not found, got %v", err)
	}
}

func vehicleUpdateAndDelete(test *testing.T, store booking.Store) {
	ctx := context.Background()
	vehicle := mustInsertVehicle(test, store, "v-1", "Express Line", 10)
	renamed, err := booking.NewVehicleName("Express Line II")
	if err != nil {
		test.Fatalf("name: %v", err)
	}
	vehicle.Name = renamed
	vehicle.TotalSeats = 12
	vehicle.UpdatedAt = baseTime.Add(time.Minute)
	if err := store.UpdateVehicle(ctx, vehicle); err != nil {
		test.Fatalf("update: %v", err)
	}
	stored, err := store.GetVehicle(ctx, vehicle.ID)
	if err != nil {
		test.Fatalf("get: %v", err)
	}
	if stored.Name.String() != "Express Line II" || stored.TotalSeats != 12 || !stored.UpdatedAt.Equal(vehicle.UpdatedAt) {
		test.Fatalf("update not persisted: %+v", stored)
	}
	if err := store.DeleteVehicle(ctx, vehicle.ID); err != nil {
		test.Fatalf("delete: %v", err)
	}
	if _, err := store.GetVehicle(ctx, vehicle.ID); !errors.Is(err, booking.ErrNotFound) {
		test.Fatalf("expected deleted vehicle to be gone, got %v", err)
	}
	ghost := vehicle
	ghost.ID = mustVehicleID(test, "ghost")
	if err := store.UpdateVehicle(ctx, ghost); !errors.Is(err, booking.ErrNotFound) {
		test.Fatalf("update unknown: expected not found, got %v", err)
	}
}

func occupiedSeatRejectsSecondBooking(test *testing.T, store booking.Store) {
	ctx := context.Background()
	vehicle := mustInsertVehicle(test, store, "v-1", "Express Line", 2)
	mustInsertBooking(test, store, "b-1", "user-a", vehicle.ID, 1, booking.BookingStatusConfirmed)
	err := store.InsertBooking(ctx, newBooking(test, "b-2", "user-b", vehicle.ID, 1, booking.BookingStatusConfirmed))
	if !errors.Is(err, booking.ErrSeatUnavailable) {
		test.Fatalf("expected seat unavailable, got %v", err)
	}
	mustInsertBooking(test, store, "b-3", "user-b", vehicle.ID, 2, booking.BookingStatusPending)
	err = store.InsertBooking(ctx, newBooking(test, "b-4", "user-c", vehicle.ID, 2, booking.BookingStatusConfirmed))
	if !errors.Is(err, booking.ErrSeatUnavailable) {
		test.Fatalf("pending booking must occupy the seat, got %v", err)
	}
}

func canceledBookingFreesSeat(test *testing.T, store booking.Store) {
	ctx := context.Background()
	vehicle := mustInsertVehicle(test, store, "v-1", "Express Line", 2)
	first := mustInsertBooking(test, store, "b-1", "user-a", vehicle.ID, 1, booking.BookingStatusConfirmed)
	if err := store.UpdateBookingStatus(ctx, first.ID, booking.BookingStatusConfirmed, booking.BookingStatusCanceled, baseTime); err != nil {
		test.Fatalf("cancel: %v", err)
	}
	mustInsertBooking(test, store, "b-2", "user-b", vehicle.ID, 1, booking.BookingStatusConfirmed)
	mustInsertBooking(test, store, "b-3", "user-c", vehicle.ID, 2, booking.BookingStatusCanceled)
	mustInsertBooking(test, store, "b-4", "user-d", vehicle.ID, 2, booking.BookingStatusConfirmed)
}

func statusUpdatesCompareAndSet(test *testing.T, store booking.Store) {
	ctx := context.Background()
	vehicle := mustInsertVehicle(test, store, "v-1", "Express Line", 2)
	candidate := mustInsertBooking(test, store, "b-1", "user-a", vehicle.ID, 1, booking.BookingStatusConfirmed)
	later := baseTime.Add(time.Hour)

	err := store.UpdateBookingStatus(ctx, candidate.ID, booking.BookingStatusPending, booking.BookingStatusCanceled, later)
	if !errors.Is(err, booking.ErrStatusConflict) {
		test.Fatalf("expected status conflict, got %v", err)
	}
	if err := store.UpdatePaymentStatus(ctx, candidate.ID, booking.PaymentStatusUnpaid, booking.PaymentStatusPaid, later); err != nil {
		test.Fatalf("mark paid: %v", err)
	}
	err = store.UpdatePaymentStatus(ctx, candidate.ID, booking.PaymentStatusUnpaid, booking.PaymentStatusPaid, later)
	if !errors.Is(err, booking.ErrStatusConflict) {
		test.Fatalf("expected payment conflict, got %v", err)
	}
	stored, err := store.GetBooking(ctx, candidate.ID)
	if err != nil {
		test.Fatalf("get booking: %v", err)
	}
	if stored.Status != booking.BookingStatusConfirmed || stored.PaymentStatus != booking.PaymentStatusPaid || !stored.UpdatedAt.Equal(later) {
		test.Fatalf("unexpected stored booking: %+v", stored)
	}
	err = store.UpdateBookingStatus(ctx, mustBookingID(test, "missing"), booking.BookingStatusConfirmed, booking.BookingStatusCanceled, later)
	if !errors.Is(err, booking.ErrNotFound) {
		test.Fatalf("expected not found, got %v", err)
	}
}

func bookingListings(test *testing.T, store booking.Store) {
	ctx := context.Background()
	express := mustInsertVehicle(test, store, "v-1", "Express Line", 4)
	city := mustInsertVehicle(test, store, "v-2", "City Rider", 4)
	mustInsertBooking(test, store, "b-3", "user-a", express.ID, 3, booking.BookingStatusConfirmed)
	mustInsertBooking(test, store, "b-1", "user-b", express.ID, 1, booking.BookingStatusConfirmed)
	mustInsertBooking(test, store, "b-2", "user-a", city.ID, 2, booking.BookingStatusCanceled)
	mustInsertBooking(test, store, "b-0", "user-a", city.ID, 4, booking.BookingStatusPending)

	byUser, err := store.ListBookingsByUser(ctx, mustUserID(test, "user-a"))
	if err != nil {
		test.Fatalf("by user: %v", err)
	}
	expectBookingIDs(test, byUser, "b-3", "b-2", "b-0")

	byVehicle, err := store.ListActiveBookingsByVehicle(ctx, express.ID)
	if err != nil {
		test.Fatalf("by vehicle: %v", err)
	}
	expectBookingIDs(test, byVehicle, "b-3", "b-1")

	active, err := store.ListActiveBookings(ctx)
	if err != nil {
		test.Fatalf("active: %v", err)
	}
	expectBookingIDs(test, active, "b-3", "b-1", "b-0")

	stored, err := store.GetBooking(ctx, mustBookingID(test, "b-0"))
	if err != nil {
		test.Fatalf("get booking: %v", err)
	}
	if stored.Seat != 4 || stored.VehicleID != city.ID || stored.UserID.String() != "user-a" || stored.PaymentStatus != booking.PaymentStatusUnpaid {
		test.Fatalf("booking fields not preserved: %+v", stored)
	}
}

func failedTransactionRollsBack(test *testing.T, store booking.Store) {
	ctx := context.Background()
	vehicle := mustInsertVehicle(test, store, "v-1", "Express Line", 2)
	existing := mustInsertBooking(test, store, "b-1", "user-a", vehicle.ID, 1, booking.BookingStatusConfirmed)
	abort := errors.New("abort")

	err := store.WithTx(ctx, func(ctx context.Context, transactionStore booking.Store) error {
		if err := transactionStore.UpdateBookingStatus(ctx, existing.ID, booking.BookingStatusConfirmed, booking.BookingStatusCanceled, baseTime); err != nil {
			return err
		}
		if err := transactionStore.InsertBooking(ctx, newBooking(test, "b-2", "user-b", vehicle.ID, 2, booking.BookingStatusConfirmed)); err != nil {
			return err
		}
		return abort
	})
	if !errors.Is(err, abort) {
		test.Fatalf("expected abort error, got %v", err)
	}
	stored, err := store.GetBooking(ctx, existing.ID)
	if err != nil {
		test.Fatalf("get booking: %v", err)
	}
	if stored.Status != booking.BookingStatusConfirmed {
		test.Fatalf("expected rolled back status, got %s", stored.Status)
	}
	if _, err := store.GetBooking(ctx, mustBookingID(test, "b-2")); !errors.Is(err, booking.ErrNotFound) {
		test.Fatalf("expected rolled back insert, got %v", err)
	}
}

func mustInsertVehicle(test *testing.T, store booking.Store, id string, name string, seats int) booking.Vehicle {
	test.Helper()
	vehicleName, err := booking.NewVehicleName(name)
	if err != nil {
		test.Fatalf("vehicle name: %v", err)
	}
	seatCount, err := booking.NewSeatCount(seats)
	if err != nil {
		test.Fatalf("seat count: %v", err)
	}
	vehicle := booking.Vehicle{
		ID:         mustVehicleID(test, id),
		Name:       vehicleName,
		TotalSeats: seatCount,
		CreatedAt:  baseTime,
		UpdatedAt:  baseTime,
	}
	if err := store.InsertVehicle(context.Background(), vehicle); err != nil {
		test.Fatalf("insert vehicle: %v", err)
	}
	return vehicle
}

func newBooking(test *testing.T, id string, user string, vehicleID booking.VehicleID, seat int, status booking.BookingStatus) booking.Booking {
	test.Helper()
	seatNumber, err := booking.NewSeatNumber(seat)
	if err != nil {
		test.Fatalf("seat: %v", err)
	}
	return booking.Booking{
		ID:            mustBookingID(test, id),
		UserID:        mustUserID(test, user),
		VehicleID:     vehicleID,
		Seat:          seatNumber,
		Status:        status,
		PaymentStatus: booking.PaymentStatusUnpaid,
		CreatedAt:     baseTime,
		UpdatedAt:     baseTime,
	}
}

func mustInsertBooking(test *testing.T, store booking.Store, id string, user string, vehicleID booking.VehicleID, seat int, status booking.BookingStatus) booking.Booking {
	test.Helper()
	candidate := newBooking(test, id, user, vehicleID, seat, status)
	if err := store.InsertBooking(context.Background(), candidate); err != nil {
		test.Fatalf("insert booking %s: %v", id, err)
	}
	return candidate
}

func expectBookingIDs(test *testing.T, bookings []booking.Booking, want ...string) {
	test.Helper()
	if len(bookings) != len(want) {
		test.Fatalf("expected %d bookings, got %d", len(want), len(bookings))
	}
	for index, candidate := range bookings {
		if candidate.ID.String() != want[index] {
			test.Fatalf("position %d: expected %s, got %s", index, want[index], candidate.ID.String())
		}
	}
}

func mustVehicleID(test *testing.T, raw string) booking.VehicleID {
	test.Helper()
	value, err := booking.NewVehicleID(raw)
	if err != nil {
		test.Fatalf("vehicle id: %v", err)
	}
	return value
}

func mustBookingID(test *testing.T, raw string) booking.BookingID {
	test.Helper()
	value, err := booking.NewBookingID(raw)
	if err != nil {
		test.Fatalf("booking id: %v", err)
	}
	return value
}

func mustUserID(test *testing.T, raw string) booking.UserID {
	test.Helper()
	value, err := booking.NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return value
}
