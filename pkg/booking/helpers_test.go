package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

var fixedTestTime = time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)

type stubStore struct {
	mutex              sync.Mutex
	vehicles           []Vehicle
	bookings           []Booking
	transactions       int
	listVehiclesError  error
	insertBookingError error
	updateStatusError  error
	getBookingError    error
}

func newStubStore() *stubStore {
	return &stubStore{}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.mutex.Lock()
	store.transactions++
	store.mutex.Unlock()
	return fn(ctx, store)
}

func (store *stubStore) InsertVehicle(ctx context.Context, vehicle Vehicle) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for _, existing := range store.vehicles {
		if existing.ID == vehicle.ID {
			return fmt.Errorf("duplicate vehicle %s", vehicle.ID.String())
		}
	}
	store.vehicles = append(store.vehicles, vehicle)
	return nil
}

func (store *stubStore) GetVehicle(ctx context.Context, vehicleID VehicleID) (Vehicle, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for _, vehicle := range store.vehicles {
		if vehicle.ID == vehicleID {
			return vehicle, nil
		}
	}
	return Vehicle{}, ErrUnknownVehicle
}

func (store *stubStore) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.listVehiclesError != nil {
		return nil, store.listVehiclesError
	}
	return append([]Vehicle(nil), store.vehicles...), nil
}

func (store *stubStore) UpdateVehicle(ctx context.Context, vehicle Vehicle) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for index, existing := range store.vehicles {
		if existing.ID == vehicle.ID {
			store.vehicles[index] = vehicle
			return nil
		}
	}
	return ErrUnknownVehicle
}

func (store *stubStore) DeleteVehicle(ctx context.Context, vehicleID VehicleID) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for index, existing := range store.vehicles {
		if existing.ID == vehicleID {
			store.vehicles = append(store.vehicles[:index], store.vehicles[index+1:]...)
			return nil
		}
	}
	return ErrUnknownVehicle
}

func (store *stubStore) InsertBooking(ctx context.Context, booking Booking) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.insertBookingError != nil {
		return store.insertBookingError
	}
	for _, existing := range store.bookings {
		if existing.VehicleID == booking.VehicleID && existing.Seat == booking.Seat && existing.Occupies() {
			return ErrSeatUnavailable
		}
	}
	store.bookings = append(store.bookings, booking)
	return nil
}

func (store *stubStore) GetBooking(ctx context.Context, bookingID BookingID) (Booking, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.getBookingError != nil {
		return Booking{}, store.getBookingError
	}
	for _, booking := range store.bookings {
		if booking.ID == bookingID {
			return booking, nil
		}
	}
	return Booking{}, ErrUnknownBooking
}

func (store *stubStore) UpdateBookingStatus(ctx context.Context, bookingID BookingID, from, to BookingStatus, at time.Time) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.updateStatusError != nil {
		return store.updateStatusError
	}
	for index, booking := range store.bookings {
		if booking.ID != bookingID {
			continue
		}
		if booking.Status != from {
			return ErrStatusConflict
		}
		store.bookings[index].Status = to
		store.bookings[index].UpdatedAt = at
		return nil
	}
	return ErrUnknownBooking
}

func (store *stubStore) UpdatePaymentStatus(ctx context.Context, bookingID BookingID, from, to PaymentStatus, at time.Time) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for index, booking := range store.bookings {
		if booking.ID != bookingID {
			continue
		}
		if booking.PaymentStatus != from {
			return ErrStatusConflict
		}
		store.bookings[index].PaymentStatus = to
		store.bookings[index].UpdatedAt = at
		return nil
	}
	return ErrUnknownBooking
}

func (store *stubStore) ListBookingsByUser(ctx context.Context, userID UserID) ([]Booking, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	var out []Booking
	for _, booking := range store.bookings {
		if booking.UserID == userID {
			out = append(out, booking)
		}
	}
	return out, nil
}

func (store *stubStore) ListActiveBookingsByVehicle(ctx context.Context, vehicleID VehicleID) ([]Booking, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	var out []Booking
	for _, booking := range store.bookings {
		if booking.VehicleID == vehicleID && booking.Occupies() {
			out = append(out, booking)
		}
	}
	return out, nil
}

func (store *stubStore) ListActiveBookings(ctx context.Context) ([]Booking, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	var out []Booking
	for _, booking := range store.bookings {
		if booking.Occupies() {
			out = append(out, booking)
		}
	}
	return out, nil
}

func (store *stubStore) occupyingCount(vehicleID VehicleID, seat SeatNumber) int {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	count := 0
	for _, booking := range store.bookings {
		if booking.VehicleID == vehicleID && booking.Seat == seat && booking.Occupies() {
			count++
		}
	}
	return count
}

// lenientStore drops the seat check on insert so that only the service
// guards the central invariant.
type lenientStore struct {
	*stubStore
}

func (store lenientStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store lenientStore) InsertBooking(ctx context.Context, booking Booking) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.bookings = append(store.bookings, booking)
	return nil
}

type decliningGateway struct {
	err error
}

func (gateway decliningGateway) Authorize(context.Context, Booking) error {
	return gateway.err
}

type recorderLogger struct {
	mutex   sync.Mutex
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	logger.entries = append(logger.entries, entry)
}

func (logger *recorderLogger) snapshot() []OperationLog {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	return append([]OperationLog(nil), logger.entries...)
}

func sequentialIDs(prefix string) func() string {
	var mutex sync.Mutex
	next := 0
	return func() string {
		mutex.Lock()
		defer mutex.Unlock()
		next++
		return fmt.Sprintf("%s-%d", prefix, next)
	}
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	options = append([]ServiceOption{WithIDGenerator(sequentialIDs("id"))}, options...)
	service, err := NewService(store, func() time.Time { return fixedTestTime }, options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	value, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return value
}

func mustVehicleID(test *testing.T, raw string) VehicleID {
	test.Helper()
	value, err := NewVehicleID(raw)
	if err != nil {
		test.Fatalf("vehicle id: %v", err)
	}
	return value
}

func mustBookingID(test *testing.T, raw string) BookingID {
	test.Helper()
	value, err := NewBookingID(raw)
	if err != nil {
		test.Fatalf("booking id: %v", err)
	}
	return value
}

func mustVehicleName(test *testing.T, raw string) VehicleName {
	test.Helper()
	value, err := NewVehicleName(raw)
	if err != nil {
		test.Fatalf("vehicle name: %v", err)
	}
	return value
}

func mustSeatCount(test *testing.T, raw int) SeatCount {
	test.Helper()
	value, err := NewSeatCount(raw)
	if err != nil {
		test.Fatalf("seat count: %v", err)
	}
	return value
}

func mustSeat(test *testing.T, raw int) SeatNumber {
	test.Helper()
	value, err := NewSeatNumber(raw)
	if err != nil {
		test.Fatalf("seat number: %v", err)
	}
	return value
}

func adminRequestor(test *testing.T) Requestor {
	test.Helper()
	return Requestor{UserID: mustUserID(test, "admin-1"), Admin: true}
}

func userRequestor(test *testing.T, raw string) Requestor {
	test.Helper()
	return Requestor{UserID: mustUserID(test, raw)}
}

func mustCreateVehicle(test *testing.T, service *Service, name string, seats int) Vehicle {
	test.Helper()
	vehicle, err := service.CreateVehicle(context.Background(), adminRequestor(test), mustVehicleName(test, name), mustSeatCount(test, seats))
	if err != nil {
		test.Fatalf("create vehicle: %v", err)
	}
	return vehicle
}

func mustReserve(test *testing.T, service *Service, vehicleID VehicleID, seat int, user string) Booking {
	test.Helper()
	booking, err := service.ReserveSeat(context.Background(), vehicleID, mustSeat(test, seat), mustUserID(test, user))
	if err != nil {
		test.Fatalf("reserve seat %d: %v", seat, err)
	}
	return booking
}

func expectError(test *testing.T, err error, want error) {
	test.Helper()
	if !errors.Is(err, want) {
		test.Fatalf("expected %v, got %v", want, err)
	}
}
