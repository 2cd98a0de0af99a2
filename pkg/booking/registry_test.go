package booking

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewServiceRequiresDependencies(test *testing.T) {
	test.Parallel()
	_, err := NewService(nil, time.Now)
	if !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected invalid service config error, got %v", err)
	}
	_, err = NewService(newStubStore(), nil)
	if !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected invalid service config error, got %v", err)
	}
}

func TestCreateVehicleAssignsIdentifierAndTimestamps(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store)

	vehicle := mustCreateVehicle(test, service, "Express Line", 40)

	if vehicle.ID.String() != "id-1" {
		test.Fatalf("expected generated id, got %q", vehicle.ID.String())
	}
	if vehicle.TotalSeats != 40 || vehicle.Name.String() != "Express Line" {
		test.Fatalf("unexpected vehicle: %+v", vehicle)
	}
	if !vehicle.CreatedAt.Equal(fixedTestTime) || !vehicle.UpdatedAt.Equal(fixedTestTime) {
		test.Fatalf("unexpected timestamps: %+v", vehicle)
	}
	if len(store.vehicles) != 1 {
		test.Fatalf("expected one stored vehicle, got %d", len(store.vehicles))
	}
}

func TestVehicleMutationsRequireAdministrator(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore())
	vehicle := mustCreateVehicle(test, service, "City Rider", 30)
	member := userRequestor(test, "member")
	ctx := context.Background()

	_, err := service.CreateVehicle(ctx, member, mustVehicleName(test, "Night Bus"), mustSeatCount(test, 10))
	expectError(test, err, ErrForbidden)
	_, err = service.UpdateVehicle(ctx, member, vehicle.ID, mustVehicleName(test, "Renamed"), mustSeatCount(test, 30))
	expectError(test, err, ErrForbidden)
	expectError(test, service.DeleteVehicle(ctx, member, vehicle.ID), ErrForbidden)
}

func TestCreateVehicleRejectsUnvalidatedFields(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore())
	ctx := context.Background()

	_, err := service.CreateVehicle(ctx, adminRequestor(test), VehicleName{}, mustSeatCount(test, 3))
	expectError(test, err, ErrInvalidInput)
	_, err = service.CreateVehicle(ctx, adminRequestor(test), mustVehicleName(test, "Zero"), SeatCount(0))
	expectError(test, err, ErrInvalidSeatCount)
}

func TestListVehiclesKeepsInsertionOrder(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore())
	names := []string{"Express Line", "City Rider", "Airport Shuttle"}
	for _, name := range names {
		mustCreateVehicle(test, service, name, 5)
	}
	vehicles, err := service.ListVehicles(context.Background())
	if err != nil {
		test.Fatalf("list vehicles: %v", err)
	}
	if len(vehicles) != len(names) {
		test.Fatalf("expected %d vehicles, got %d", len(names), len(vehicles))
	}
	for index, vehicle := range vehicles {
		if vehicle.Name.String() != names[index] {
			test.Fatalf("position %d: expected %q, got %q", index, names[index], vehicle.Name.String())
		}
	}
}

func TestGetVehicleUnknown(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore())
	_, err := service.GetVehicle(context.Background(), mustVehicleID(test, "missing"))
	expectError(test, err, ErrNotFound)
}

func TestUpdateVehicle(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name     string
		newSeats int
		occupied []int
		wantErr  error
	}{
		{name: "grow", newSeats: 10, occupied: []int{5}},
		{name: "shrink above occupied", newSeats: 3, occupied: []int{1, 3}},
		{name: "shrink below occupied", newSeats: 3, occupied: []int{4}, wantErr: ErrVehicleInUse},
		{name: "shrink empty vehicle", newSeats: 1},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			service := mustNewService(test, newStubStore())
			vehicle := mustCreateVehicle(test, service, "Express Line", 5)
			for _, seat := range testCase.occupied {
				mustReserve(test, service, vehicle.ID, seat, "rider")
			}

			updated, err := service.UpdateVehicle(context.Background(), adminRequestor(test), vehicle.ID, mustVehicleName(test, "Express Line II"), mustSeatCount(test, testCase.newSeats))
			if testCase.wantErr != nil {
				expectError(test, err, testCase.wantErr)
				stored, getErr := service.GetVehicle(context.Background(), vehicle.ID)
				if getErr != nil || stored.TotalSeats != 5 {
					test.Fatalf("expected vehicle unchanged, got %+v (%v)", stored, getErr)
				}
				return
			}
			if err != nil {
				test.Fatalf("update vehicle: %v", err)
			}
			if updated.TotalSeats.Int() != testCase.newSeats || updated.Name.String() != "Express Line II" {
				test.Fatalf("unexpected updated vehicle: %+v", updated)
			}
		})
	}
}

func TestUpdateVehicleUnknown(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore())
	_, err := service.UpdateVehicle(context.Background(), adminRequestor(test), mustVehicleID(test, "ghost"), mustVehicleName(test, "Ghost"), mustSeatCount(test, 2))
	expectError(test, err, ErrNotFound)
}

func TestDeleteVehicle(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore())
	ctx := context.Background()
	vehicle := mustCreateVehicle(test, service, "Express Line", 2)
	booking := mustReserve(test, service, vehicle.ID, 1, "rider")

	expectError(test, service.DeleteVehicle(ctx, adminRequestor(test), vehicle.ID), ErrVehicleInUse)

	if _, err := service.CancelBooking(ctx, booking.ID, userRequestor(test, "rider")); err != nil {
		test.Fatalf("cancel booking: %v", err)
	}
	if err := service.DeleteVehicle(ctx, adminRequestor(test), vehicle.ID); err != nil {
		test.Fatalf("delete vehicle: %v", err)
	}
	_, err := service.GetVehicle(ctx, vehicle.ID)
	expectError(test, err, ErrNotFound)
	expectError(test, service.DeleteVehicle(ctx, adminRequestor(test), vehicle.ID), ErrNotFound)
}
