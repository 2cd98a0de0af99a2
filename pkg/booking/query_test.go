package booking

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestListVehiclesWithOccupancy(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore())
	express := mustCreateVehicle(test, service, "Express Line", 5)
	city := mustCreateVehicle(test, service, "City Rider", 3)
	mustReserve(test, service, express.ID, 4, "user-a")
	mustReserve(test, service, express.ID, 2, "user-b")
	released := mustReserve(test, service, city.ID, 1, "user-c")
	if _, err := service.ReleaseSeat(context.Background(), released.ID); err != nil {
		test.Fatalf("release: %v", err)
	}

	occupancy, err := service.ListVehiclesWithOccupancy(context.Background())
	if err != nil {
		test.Fatalf("occupancy: %v", err)
	}
	if len(occupancy) != 2 {
		test.Fatalf("expected 2 vehicles, got %d", len(occupancy))
	}
	if occupancy[0].Vehicle.ID != express.ID || occupancy[1].Vehicle.ID != city.ID {
		test.Fatalf("expected insertion order, got %s then %s", occupancy[0].Vehicle.ID.String(), occupancy[1].Vehicle.ID.String())
	}
	if !reflect.DeepEqual(occupancy[0].OccupiedSeats, []SeatNumber{2, 4}) {
		test.Fatalf("expected seats [2 4], got %v", occupancy[0].OccupiedSeats)
	}
	if occupancy[0].AvailableSeats() != 3 {
		test.Fatalf("expected 3 available seats, got %d", occupancy[0].AvailableSeats())
	}
	if len(occupancy[1].OccupiedSeats) != 0 || occupancy[1].AvailableSeats() != 3 {
		test.Fatalf("expected empty city rider, got %+v", occupancy[1])
	}
}

func TestListVehiclesWithOccupancyEmptyCatalog(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore())
	occupancy, err := service.ListVehiclesWithOccupancy(context.Background())
	if err != nil {
		test.Fatalf("occupancy: %v", err)
	}
	if len(occupancy) != 0 {
		test.Fatalf("expected empty result, got %d", len(occupancy))
	}
}

func TestListVehiclesWithOccupancyPropagatesStoreError(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store)
	storeFailure := errors.New("connection reset")
	store.listVehiclesError = storeFailure
	_, err := service.ListVehiclesWithOccupancy(context.Background())
	expectError(test, err, storeFailure)
}

func TestVehicleOccupancy(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore())
	vehicle := mustCreateVehicle(test, service, "Express Line", 4)
	mustReserve(test, service, vehicle.ID, 3, "user-a")
	mustReserve(test, service, vehicle.ID, 1, "user-b")

	occupancy, err := service.VehicleOccupancy(context.Background(), vehicle.ID)
	if err != nil {
		test.Fatalf("vehicle occupancy: %v", err)
	}
	if !reflect.DeepEqual(occupancy.OccupiedSeats, []SeatNumber{1, 3}) {
		test.Fatalf("expected seats [1 3], got %v", occupancy.OccupiedSeats)
	}
	_, err = service.VehicleOccupancy(context.Background(), mustVehicleID(test, "ghost"))
	expectError(test, err, ErrNotFound)
}

func TestTwoSeatVehicleLifecycle(test *testing.T) {
	test.Parallel()
	ctx := context.Background()
	service := mustNewService(test, newStubStore())
	vehicle := mustCreateVehicle(test, service, "Express Line", 2)
	userA := mustUserID(test, "user-a")
	userB := mustUserID(test, "user-b")

	first, err := service.ReserveSeat(ctx, vehicle.ID, mustSeat(test, 1), userA)
	if err != nil {
		test.Fatalf("user a seat 1: %v", err)
	}
	_, err = service.ReserveSeat(ctx, vehicle.ID, mustSeat(test, 1), userB)
	expectError(test, err, ErrSeatUnavailable)
	if _, err := service.ReserveSeat(ctx, vehicle.ID, mustSeat(test, 2), userB); err != nil {
		test.Fatalf("user b seat 2: %v", err)
	}
	_, err = service.ReserveSeat(ctx, vehicle.ID, SeatNumber(3), userA)
	expectError(test, err, ErrInvalidInput)

	occupancy, err := service.VehicleOccupancy(ctx, vehicle.ID)
	if err != nil {
		test.Fatalf("occupancy: %v", err)
	}
	if occupancy.AvailableSeats() != 0 {
		test.Fatalf("expected full vehicle, got %d available", occupancy.AvailableSeats())
	}

	if _, err := service.CancelBooking(ctx, first.ID, Requestor{UserID: userA}); err != nil {
		test.Fatalf("cancel: %v", err)
	}
	if _, err := service.ReserveSeat(ctx, vehicle.ID, mustSeat(test, 1), userB); err != nil {
		test.Fatalf("user b reclaims seat 1: %v", err)
	}
	bookings, err := service.BookingsForUser(ctx, userB)
	if err != nil {
		test.Fatalf("bookings: %v", err)
	}
	if len(bookings) != 2 {
		test.Fatalf("expected 2 bookings for user b, got %d", len(bookings))
	}
}
