package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19
	sqliteSeatColumns     = "bookings.vehicle_id, bookings.seat"
	errorOperationStore   = "store"
	errorSubjectVehicle   = "vehicle"
	errorSubjectBooking   = "booking"
	errorCodeDelete       = "delete"
	errorCodeGet          = "get"
	errorCodeInsert       = "insert"
	errorCodeInvalid      = "invalid"
	errorCodeList         = "list"
	errorCodeUpdate       = "update"
	errorCodeUpdateStatus = "update_status"
	errorCodeSeatTaken    = "seat_taken"
)

// Store implements booking.Store using GORM.
type Store struct {
	db            *gorm.DB
	transactional bool
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore booking.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction, transactional: true})
	})
}

func (store *Store) InsertVehicle(ctx context.Context, vehicle booking.Vehicle) error {
	model := Vehicle{
		ID:         vehicle.ID.String(),
		Name:       vehicle.Name.String(),
		TotalSeats: vehicle.TotalSeats.Int(),
		CreatedAt:  vehicle.CreatedAt.UTC(),
		UpdatedAt:  vehicle.UpdatedAt.UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectVehicle, errorCodeInsert, err)
	}
	return nil
}

// GetVehicle locks the vehicle row inside a transaction so that writers in
// other processes serialize on it the same way they do on the in-process lock.
func (store *Store) GetVehicle(ctx context.Context, vehicleID booking.VehicleID) (booking.Vehicle, error) {
	query := store.db.WithContext(ctx)
	if store.transactional {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model Vehicle
	err := query.Where("id = ?", vehicleID.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Vehicle{}, wrapStoreError(errorSubjectVehicle, errorCodeGet, booking.ErrUnknownVehicle)
		}
		return booking.Vehicle{}, wrapStoreError(errorSubjectVehicle, errorCodeGet, err)
	}
	vehicle, err := mapVehicle(model)
	if err != nil {
		return booking.Vehicle{}, wrapStoreError(errorSubjectVehicle, errorCodeInvalid, err)
	}
	return vehicle, nil
}

func (store *Store) ListVehicles(ctx context.Context) ([]booking.Vehicle, error) {
	var rows []Vehicle
	if err := store.db.WithContext(ctx).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectVehicle, errorCodeList, err)
	}
	vehicles := make([]booking.Vehicle, 0, len(rows))
	for _, row := range rows {
		vehicle, err := mapVehicle(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectVehicle, errorCodeInvalid, err)
		}
		vehicles = append(vehicles, vehicle)
	}
	return vehicles, nil
}

func (store *Store) UpdateVehicle(ctx context.Context, vehicle booking.Vehicle) error {
	result := store.db.WithContext(ctx).
		Model(&Vehicle{}).
		Where("id = ?", vehicle.ID.String()).
		Updates(map[string]interface{}{
			"name":        vehicle.Name.String(),
			"total_seats": vehicle.TotalSeats.Int(),
			"updated_at":  vehicle.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectVehicle, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectVehicle, errorCodeUpdate, booking.ErrUnknownVehicle)
	}
	return nil
}

func (store *Store) DeleteVehicle(ctx context.Context, vehicleID booking.VehicleID) error {
	result := store.db.WithContext(ctx).Where("id = ?", vehicleID.String()).Delete(&Vehicle{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectVehicle, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectVehicle, errorCodeDelete, booking.ErrUnknownVehicle)
	}
	return nil
}

func (store *Store) InsertBooking(ctx context.Context, candidate booking.Booking) error {
	model := Booking{
		ID:            candidate.ID.String(),
		UserID:        candidate.UserID.String(),
		VehicleID:     candidate.VehicleID.String(),
		Seat:          candidate.Seat.Int(),
		Status:        candidate.Status.String(),
		PaymentStatus: candidate.PaymentStatus.String(),
		CreatedAt:     candidate.CreatedAt.UTC(),
		UpdatedAt:     candidate.UpdatedAt.UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isActiveSeatConflict(err) {
		return wrapStoreError(errorSubjectBooking, errorCodeSeatTaken, booking.ErrSeatUnavailable)
	}
	if err != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetBooking(ctx context.Context, bookingID booking.BookingID) (booking.Booking, error) {
	var model Booking
	err := store.db.WithContext(ctx).Where("id = ?", bookingID.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, booking.ErrUnknownBooking)
		}
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, err)
	}
	mapped, err := mapBooking(model)
	if err != nil {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	return mapped, nil
}

func (store *Store) UpdateBookingStatus(ctx context.Context, bookingID booking.BookingID, from, to booking.BookingStatus, at time.Time) error {
	return store.compareAndSet(ctx, bookingID, "status", from.String(), to.String(), at)
}

func (store *Store) UpdatePaymentStatus(ctx context.Context, bookingID booking.BookingID, from, to booking.PaymentStatus, at time.Time) error {
	return store.compareAndSet(ctx, bookingID, "payment_status", from.String(), to.String(), at)
}

func (store *Store) compareAndSet(ctx context.Context, bookingID booking.BookingID, column string, from, to string, at time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND "+column+" = ?", bookingID.String(), from).
		Updates(map[string]interface{}{
			column:       to,
			"updated_at": at.UTC(),
		})
	if isActiveSeatConflict(result.Error) {
		return wrapStoreError(errorSubjectBooking, errorCodeSeatTaken, booking.ErrSeatUnavailable)
	}
	if result.Error != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := store.GetBooking(ctx, bookingID); err != nil {
			return err
		}
		return wrapStoreError(errorSubjectBooking, errorCodeUpdateStatus, booking.ErrStatusConflict)
	}
	return nil
}

func (store *Store) ListBookingsByUser(ctx context.Context, userID booking.UserID) ([]booking.Booking, error) {
	return store.listBookings(ctx, "user_id = ?", userID.String())
}

func (store *Store) ListActiveBookingsByVehicle(ctx context.Context, vehicleID booking.VehicleID) ([]booking.Booking, error) {
	return store.listBookings(ctx, "vehicle_id = ? AND status <> ?", vehicleID.String(), booking.BookingStatusCanceled.String())
}

func (store *Store) ListActiveBookings(ctx context.Context) ([]booking.Booking, error) {
	return store.listBookings(ctx, "status <> ?", booking.BookingStatusCanceled.String())
}

func (store *Store) listBookings(ctx context.Context, condition string, args ...interface{}) ([]booking.Booking, error) {
	var rows []Booking
	if err := store.db.WithContext(ctx).Where(condition, args...).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	bookings := make([]booking.Booking, 0, len(rows))
	for _, row := range rows {
		mapped, err := mapBooking(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
		}
		bookings = append(bookings, mapped)
	}
	return bookings, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return booking.WrapError(errorOperationStore, subject, code, err)
}

func mapVehicle(row Vehicle) (booking.Vehicle, error) {
	vehicleID, err := booking.NewVehicleID(row.ID)
	if err != nil {
		return booking.Vehicle{}, err
	}
	name, err := booking.NewVehicleName(row.Name)
	if err != nil {
		return booking.Vehicle{}, err
	}
	totalSeats, err := booking.NewSeatCount(row.TotalSeats)
	if err != nil {
		return booking.Vehicle{}, err
	}
	return booking.Vehicle{
		ID:         vehicleID,
		Name:       name,
		TotalSeats: totalSeats,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}, nil
}

func mapBooking(row Booking) (booking.Booking, error) {
	bookingID, err := booking.NewBookingID(row.ID)
	if err != nil {
		return booking.Booking{}, err
	}
	userID, err := booking.NewUserID(row.UserID)
	if err != nil {
		return booking.Booking{}, err
	}
	vehicleID, err := booking.NewVehicleID(row.VehicleID)
	if err != nil {
		return booking.Booking{}, err
	}
	seat, err := booking.NewSeatNumber(row.Seat)
	if err != nil {
		return booking.Booking{}, err
	}
	status, err := booking.ParseBookingStatus(row.Status)
	if err != nil {
		return booking.Booking{}, err
	}
	paymentStatus, err := booking.ParsePaymentStatus(row.PaymentStatus)
	if err != nil {
		return booking.Booking{}, err
	}
	return booking.Booking{
		ID:            bookingID,
		UserID:        userID,
		VehicleID:     vehicleID,
		Seat:          seat,
		Status:        status,
		PaymentStatus: paymentStatus,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}, nil
}

func isActiveSeatConflict(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == activeSeatIndexName
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode && strings.Contains(sqliteErr.Error(), sqliteSeatColumns)
	}
	return false
}
