package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// rendezvousStore shares one stubStore between services that do not share a
// lock table, the way two processes share one database. The first booking
// read inside a transaction blocks until every participant has made its own,
// so both decide on the same stale status.
type rendezvousStore struct {
	*stubStore
	arrivals *sync.WaitGroup
	once     *sync.Once
	inTx     bool
}

func (store rendezvousStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	transactional := store
	transactional.inTx = true
	return fn(ctx, transactional)
}

func (store rendezvousStore) GetBooking(ctx context.Context, bookingID BookingID) (Booking, error) {
	booking, err := store.stubStore.GetBooking(ctx, bookingID)
	if store.inTx {
		store.once.Do(func() {
			store.arrivals.Done()
			store.arrivals.Wait()
		})
	}
	return booking, err
}

func newRendezvousServices(test *testing.T, shared *stubStore, count int) []*Service {
	test.Helper()
	arrivals := &sync.WaitGroup{}
	arrivals.Add(count)
	services := make([]*Service, 0, count)
	for index := 0; index < count; index++ {
		store := rendezvousStore{stubStore: shared, arrivals: arrivals, once: &sync.Once{}}
		services = append(services, mustNewService(test, store, WithIDGenerator(sequentialIDs(fmt.Sprintf("node-%d", index)))))
	}
	return services
}

func TestCancelBookingAcrossServicesSharingStore(test *testing.T) {
	test.Parallel()
	shared := newStubStore()
	setup := mustNewService(test, shared)
	vehicle := mustCreateVehicle(test, setup, "Night Line", 2)
	reserved := mustReserve(test, setup, vehicle.ID, 1, "user-a")
	requestor := userRequestor(test, "user-a")

	services := newRendezvousServices(test, shared, 2)
	results := make([]error, len(services))
	var group sync.WaitGroup
	for index, service := range services {
		group.Add(1)
		go func(index int, service *Service) {
			defer group.Done()
			_, results[index] = service.CancelBooking(context.Background(), reserved.ID, requestor)
		}(index, service)
	}
	group.Wait()

	succeeded, alreadyCanceled := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyCanceled):
			alreadyCanceled++
		default:
			test.Fatalf("unexpected error %v", err)
		}
	}
	if succeeded != 1 || alreadyCanceled != 1 {
		test.Fatalf("expected one cancel and one already-canceled, got %d and %d", succeeded, alreadyCanceled)
	}
	stored, err := shared.GetBooking(context.Background(), reserved.ID)
	if err != nil {
		test.Fatalf("get booking: %v", err)
	}
	if stored.Status != BookingStatusCanceled {
		test.Fatalf("expected canceled booking, got %s", stored.Status)
	}
}

func TestVerifyPaymentAcrossServicesSharingStore(test *testing.T) {
	test.Parallel()
	shared := newStubStore()
	setup := mustNewService(test, shared)
	vehicle := mustCreateVehicle(test, setup, "Night Line", 2)
	reserved := mustReserve(test, setup, vehicle.ID, 2, "user-b")

	services := newRendezvousServices(test, shared, 2)
	results := make([]error, len(services))
	var group sync.WaitGroup
	for index, service := range services {
		group.Add(1)
		go func(index int, service *Service) {
			defer group.Done()
			_, results[index] = service.VerifyPayment(context.Background(), reserved.ID)
		}(index, service)
	}
	group.Wait()

	for index, err := range results {
		if err != nil {
			test.Fatalf("service %d: unexpected error %v", index, err)
		}
	}
	stored, err := shared.GetBooking(context.Background(), reserved.ID)
	if err != nil {
		test.Fatalf("get booking: %v", err)
	}
	if stored.PaymentStatus != PaymentStatusPaid {
		test.Fatalf("expected paid booking, got %s", stored.PaymentStatus)
	}
}

func TestVehicleLockTableStaysBounded(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore())
	ctx := context.Background()
	user := mustUserID(test, "user-a")

	for index := 0; index < 10000; index++ {
		_, err := service.ReserveSeat(ctx, mustVehicleID(test, fmt.Sprintf("ghost-%d", index)), 1, user)
		if !errors.Is(err, ErrNotFound) {
			test.Fatalf("ghost-%d: expected not found, got %v", index, err)
		}
	}
	if len(service.locks.stripes) != vehicleLockStripes {
		test.Fatalf("expected %d lock stripes, got %d", vehicleLockStripes, len(service.locks.stripes))
	}
	vehicleID := mustVehicleID(test, "vehicle-7")
	if service.locks.stripeFor(vehicleID) != service.locks.stripeFor(vehicleID) {
		test.Fatalf("expected one vehicle to map onto one stripe")
	}
}
