package booking

import (
	"context"
	"fmt"
)

// CreateVehicle adds a vehicle to the catalog.
func (service *Service) CreateVehicle(ctx context.Context, requestor Requestor, name VehicleName, totalSeats SeatCount) (Vehicle, error) {
	var created Vehicle
	operationError := requireAdmin(requestor, "create vehicle")
	if operationError == nil {
		operationError = validateVehicleFields(name, totalSeats)
	}
	if operationError == nil {
		operationError = service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			vehicleID, err := NewVehicleID(service.newID())
			if err != nil {
				return err
			}
			nowUTC := service.now()
			vehicle := Vehicle{
				ID:         vehicleID,
				Name:       name,
				TotalSeats: totalSeats,
				CreatedAt:  nowUTC,
				UpdatedAt:  nowUTC,
			}
			if err := transactionStore.InsertVehicle(ctx, vehicle); err != nil {
				return err
			}
			created = vehicle
			return nil
		})
	}
	service.logOperation(ctx, OperationLog{
		Operation: OperationCreateVehicle,
		UserID:    requestor.UserID,
		VehicleID: created.ID,
		Vehicle:   created,
		Error:     operationError,
	})
	return created, operationError
}

// UpdateVehicle renames or resizes a vehicle. Shrinking below an occupied
// seat fails with ErrVehicleInUse.
func (service *Service) UpdateVehicle(ctx context.Context, requestor Requestor, vehicleID VehicleID, name VehicleName, totalSeats SeatCount) (Vehicle, error) {
	var updated Vehicle
	operationError := requireAdmin(requestor, "update vehicle")
	if operationError == nil {
		operationError = validateVehicleFields(name, totalSeats)
	}
	if operationError == nil {
		operationError = service.withVehicleLock(ctx, vehicleID, func(ctx context.Context, transactionStore Store) error {
			vehicle, err := transactionStore.GetVehicle(ctx, vehicleID)
			if err != nil {
				return err
			}
			if totalSeats < vehicle.TotalSeats {
				active, err := transactionStore.ListActiveBookingsByVehicle(ctx, vehicleID)
				if err != nil {
					return err
				}
				for _, booking := range active {
					if int(booking.Seat) > totalSeats.Int() {
						return WrapError(errorOperationService, errorSubjectVehicle, errorCodeShrink,
							fmt.Errorf("%w: seat %d is occupied", ErrVehicleInUse, booking.Seat))
					}
				}
			}
			vehicle.Name = name
			vehicle.TotalSeats = totalSeats
			vehicle.UpdatedAt = service.now()
			if err := transactionStore.UpdateVehicle(ctx, vehicle); err != nil {
				return err
			}
			updated = vehicle
			return nil
		})
	}
	service.logOperation(ctx, OperationLog{
		Operation: OperationUpdateVehicle,
		UserID:    requestor.UserID,
		VehicleID: vehicleID,
		Vehicle:   updated,
		Error:     operationError,
	})
	return updated, operationError
}

// DeleteVehicle removes a vehicle. Vehicles with occupying bookings are kept
// and ErrVehicleInUse is returned.
func (service *Service) DeleteVehicle(ctx context.Context, requestor Requestor, vehicleID VehicleID) error {
	operationError := requireAdmin(requestor, "delete vehicle")
	if operationError == nil {
		operationError = service.withVehicleLock(ctx, vehicleID, func(ctx context.Context, transactionStore Store) error {
			if _, err := transactionStore.GetVehicle(ctx, vehicleID); err != nil {
				return err
			}
			active, err := transactionStore.ListActiveBookingsByVehicle(ctx, vehicleID)
			if err != nil {
				return err
			}
			if len(active) > 0 {
				return WrapError(errorOperationService, errorSubjectVehicle, errorCodeActive,
					fmt.Errorf("%w: %d active bookings", ErrVehicleInUse, len(active)))
			}
			return transactionStore.DeleteVehicle(ctx, vehicleID)
		})
	}
	service.logOperation(ctx, OperationLog{
		Operation: OperationDeleteVehicle,
		UserID:    requestor.UserID,
		VehicleID: vehicleID,
		Error:     operationError,
	})
	return operationError
}

// ListVehicles returns the catalog in insertion order.
func (service *Service) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	return service.store.ListVehicles(ctx)
}

// GetVehicle returns one vehicle or ErrUnknownVehicle.
func (service *Service) GetVehicle(ctx context.Context, vehicleID VehicleID) (Vehicle, error) {
	return service.store.GetVehicle(ctx, vehicleID)
}

func validateVehicleFields(name VehicleName, totalSeats SeatCount) error {
	if name.String() == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidVehicleName)
	}
	if _, err := NewSeatCount(totalSeats.Int()); err != nil {
		return err
	}
	return nil
}
