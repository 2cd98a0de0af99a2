package booking

import (
	"context"
	"sort"
)

// ListVehiclesWithOccupancy returns every vehicle with its occupied seats in
// ascending order. It reads without taking any vehicle lock.
func (service *Service) ListVehiclesWithOccupancy(ctx context.Context) ([]VehicleOccupancy, error) {
	vehicles, err := service.store.ListVehicles(ctx)
	if err != nil {
		return nil, err
	}
	active, err := service.store.ListActiveBookings(ctx)
	if err != nil {
		return nil, err
	}
	seatsByVehicle := make(map[VehicleID][]SeatNumber, len(vehicles))
	for _, booking := range active {
		seatsByVehicle[booking.VehicleID] = append(seatsByVehicle[booking.VehicleID], booking.Seat)
	}
	occupancies := make([]VehicleOccupancy, 0, len(vehicles))
	for _, vehicle := range vehicles {
		occupancies = append(occupancies, newVehicleOccupancy(vehicle, seatsByVehicle[vehicle.ID]))
	}
	return occupancies, nil
}

// VehicleOccupancy returns one vehicle with its occupied seats.
func (service *Service) VehicleOccupancy(ctx context.Context, vehicleID VehicleID) (VehicleOccupancy, error) {
	vehicle, err := service.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return VehicleOccupancy{}, err
	}
	active, err := service.store.ListActiveBookingsByVehicle(ctx, vehicleID)
	if err != nil {
		return VehicleOccupancy{}, err
	}
	seats := make([]SeatNumber, 0, len(active))
	for _, booking := range active {
		seats = append(seats, booking.Seat)
	}
	return newVehicleOccupancy(vehicle, seats), nil
}

func newVehicleOccupancy(vehicle Vehicle, seats []SeatNumber) VehicleOccupancy {
	occupied := make([]SeatNumber, 0, len(seats))
	occupied = append(occupied, seats...)
	sort.Slice(occupied, func(left, right int) bool { return occupied[left] < occupied[right] })
	return VehicleOccupancy{Vehicle: vehicle, OccupiedSeats: occupied}
}
