package gormstore_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/seatledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/seatledger/internal/store/storetest"
	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(test *testing.T) *gorm.DB {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(test.TempDir()+"/seats.db"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		test.Fatalf("sqlite open failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		test.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	test.Cleanup(func() { _ = sqlDB.Close() })
	if err := gormstore.Migrate(db); err != nil {
		test.Fatalf("migrate: %v", err)
	}
	return db
}

func TestStoreContract(test *testing.T) {
	storetest.Run(test, func(test *testing.T) booking.Store {
		return gormstore.New(openSQLite(test))
	})
}

func TestMigrateIsIdempotent(test *testing.T) {
	db := openSQLite(test)
	if err := gormstore.Migrate(db); err != nil {
		test.Fatalf("second migrate: %v", err)
	}
}

func TestActiveSeatIndexMapsToSeatUnavailable(test *testing.T) {
	db := openSQLite(test)
	store := gormstore.New(db)
	ctx := context.Background()
	now := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	rows := []gormstore.Booking{
		{ID: "b-1", UserID: "u-1", VehicleID: "v-1", Seat: 1, Status: "confirmed", PaymentStatus: "unpaid", CreatedAt: now, UpdatedAt: now},
		{ID: "b-2", UserID: "u-2", VehicleID: "v-1", Seat: 1, Status: "canceled", PaymentStatus: "unpaid", CreatedAt: now, UpdatedAt: now},
	}
	for _, row := range rows {
		row := row
		if err := db.Create(&row).Error; err != nil {
			test.Fatalf("seed %s: %v", row.ID, err)
		}
	}
	bookingID, _ := booking.NewBookingID("b-2")
	err := store.UpdateBookingStatus(ctx, bookingID, booking.BookingStatusCanceled, booking.BookingStatusConfirmed, now)
	if !errors.Is(err, booking.ErrSeatUnavailable) {
		test.Fatalf("expected seat unavailable on reactivation, got %v", err)
	}
}

func TestConcurrentReservationsThroughService(test *testing.T) {
	const contenders = 16
	service, err := booking.NewService(gormstore.New(openSQLite(test)), time.Now)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	name, _ := booking.NewVehicleName("Express Line")
	seats, _ := booking.NewSeatCount(2)
	vehicle, err := service.CreateVehicle(ctx, booking.Requestor{Admin: true}, name, seats)
	if err != nil {
		test.Fatalf("create vehicle: %v", err)
	}
	users := make([]booking.UserID, contenders)
	for index := range users {
		users[index], _ = booking.NewUserID(fmt.Sprintf("user-%d", index))
	}

	var waitGroup sync.WaitGroup
	results := make(chan error, contenders)
	for index := 0; index < contenders; index++ {
		waitGroup.Add(1)
		go func(userID booking.UserID) {
			defer waitGroup.Done()
			_, err := service.ReserveSeat(ctx, vehicle.ID, 2, userID)
			results <- err
		}(users[index])
	}
	waitGroup.Wait()
	close(results)

	successes := 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, booking.ErrSeatUnavailable):
		default:
			test.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		test.Fatalf("expected exactly one winner, got %d", successes)
	}
	active, err := service.ActiveBookingsForVehicle(ctx, vehicle.ID)
	if err != nil || len(active) != 1 {
		test.Fatalf("expected one active booking, got %d (%v)", len(active), err)
	}
}
