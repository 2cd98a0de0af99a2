package booking

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service is the seat reservation engine: vehicle registry, seat allocator,
// booking ledger, payment reconciler and query façade over one Store.
type Service struct {
	store   Store
	nowFn   func() time.Time
	logger  OperationLogger
	gateway PaymentGateway
	newID   func() string
	locks   *vehicleLocks
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:   store,
		nowFn:   now,
		gateway: SimulatedGateway{},
		newID:   uuid.NewString,
		locks:   newVehicleLocks(),
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// vehicleLockStripes bounds the lock table. Vehicles sharing a stripe
// serialize with each other, which is coarser than per-vehicle and still correct.
const vehicleLockStripes = 256

// vehicleLocks maps every vehicle id onto one of a fixed set of mutexes, so
// claims on unknown or deleted vehicles never grow the table.
type vehicleLocks struct {
	stripes [vehicleLockStripes]sync.Mutex
}

func newVehicleLocks() *vehicleLocks {
	return &vehicleLocks{}
}

func (locks *vehicleLocks) stripeFor(vehicleID VehicleID) *sync.Mutex {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(vehicleID.String()))
	return &locks.stripes[hasher.Sum32()%vehicleLockStripes]
}

func (locks *vehicleLocks) lock(vehicleID VehicleID) func() {
	mutex := locks.stripeFor(vehicleID)
	mutex.Lock()
	return mutex.Unlock
}

// withVehicleLock runs fn in a store transaction while holding the vehicle's lock.
func (service *Service) withVehicleLock(ctx context.Context, vehicleID VehicleID, fn func(ctx context.Context, transactionStore Store) error) error {
	unlock := service.locks.lock(vehicleID)
	defer unlock()
	return service.store.WithTx(ctx, fn)
}

// withBookingTx runs fn for a booking of vehicleID. Inside the transaction the
// vehicle row is read first, which durable stores lock FOR UPDATE, so other
// processes sharing the database serialize on it too. A status change the
// store still reports as concurrent is retried once against a fresh read.
func (service *Service) withBookingTx(ctx context.Context, vehicleID VehicleID, fn func(ctx context.Context, transactionStore Store) error) error {
	var err error
	for attempt := 0; attempt < statusConflictAttempts; attempt++ {
		err = service.withVehicleLock(ctx, vehicleID, func(ctx context.Context, transactionStore Store) error {
			// Bookings of a deleted vehicle are all canceled; there is no row to lock.
			if _, err := transactionStore.GetVehicle(ctx, vehicleID); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			return fn(ctx, transactionStore)
		})
		if !errors.Is(err, ErrStatusConflict) {
			return err
		}
	}
	return err
}

func (service *Service) now() time.Time {
	return service.nowFn().UTC()
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func requireAdmin(requestor Requestor, action string) error {
	if !requestor.Admin {
		return fmt.Errorf("%w: %s requires administrator", ErrForbidden, action)
	}
	return nil
}
