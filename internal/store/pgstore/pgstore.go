package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	constraintActiveSeat    = "idx_bookings_active_seat"
	pgUniqueViolationCode   = "23505"
	errorOperationStore     = "store"
	errorSubjectVehicle     = "vehicle"
	errorSubjectBooking     = "booking"
	errorSubjectTransaction = "transaction"
	errorSubjectSchema      = "schema"
	errorCodeBegin          = "begin"
	errorCodeCommit         = "commit"
	errorCodeDelete         = "delete"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeMigrate        = "migrate"
	errorCodeSeatTaken      = "seat_taken"
	errorCodeUpdate         = "update"
	errorCodeUpdateStatus   = "update_status"

	// SchemaSQL creates the tables used by the store. It is safe to run repeatedly.
	SchemaSQL = `
		create table if not exists vehicles (
			seq bigserial primary key,
			id text not null unique,
			name text not null,
			total_seats integer not null check (total_seats > 0),
			created_at timestamptz not null,
			updated_at timestamptz not null
		);
		create table if not exists bookings (
			seq bigserial primary key,
			id text not null unique,
			user_id text not null,
			vehicle_id text not null,
			seat integer not null check (seat > 0),
			status text not null check (status in ('pending','confirmed','canceled')),
			payment_status text not null check (payment_status in ('unpaid','paid')),
			created_at timestamptz not null,
			updated_at timestamptz not null
		);
		create index if not exists idx_bookings_user on bookings (user_id);
		create index if not exists idx_bookings_vehicle_status on bookings (vehicle_id, status);
		create unique index if not exists idx_bookings_active_seat on bookings (vehicle_id, seat) where status <> 'canceled';
	`

	sqlInsertVehicle = `
		insert into vehicles(id, name, total_seats, created_at, updated_at)
		values ($1, $2, $3, $4, $5)
	`

	sqlSelectVehicle = `
		select id, name, total_seats, created_at, updated_at
		from vehicles
		where id = $1
	`

	sqlListVehicles = `
		select id, name, total_seats, created_at, updated_at
		from vehicles
		order by seq
	`

	sqlUpdateVehicle = `
		update vehicles
		set name = $2, total_seats = $3, updated_at = $4
		where id = $1
	`

	sqlDeleteVehicle = `delete from vehicles where id = $1`

	sqlInsertBooking = `
		insert into bookings(id, user_id, vehicle_id, seat, status, payment_status, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	sqlBookingColumns = `select id, user_id, vehicle_id, seat, status, payment_status, created_at, updated_at from bookings `

	sqlSelectBooking = sqlBookingColumns + `where id = $1`

	sqlUpdateBookingStatus = `
		update bookings
		set status = $3, updated_at = $4
		where id = $1 and status = $2
	`

	sqlUpdatePaymentStatus = `
		update bookings
		set payment_status = $3, updated_at = $4
		where id = $1 and payment_status = $2
	`

	sqlListBookingsByUser = sqlBookingColumns + `where user_id = $1 order by seq`

	sqlListActiveBookingsByVehicle = sqlBookingColumns + `where vehicle_id = $1 and status <> 'canceled' order by seq`

	sqlListActiveBookings = sqlBookingColumns + `where status <> 'canceled' order by seq`
)

// querier is the subset shared by pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements booking.Store using a pgx connection pool (autocommit).
type Store struct {
	queries
	pool *pgxpool.Pool
}

// TxStore implements booking.Store for an active transaction.
type TxStore struct {
	queries
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{queries: queries{db: pool}, pool: pool}
}

// Migrate applies SchemaSQL.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, SchemaSQL); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeMigrate, err)
	}
	return nil
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore booking.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	transactionStore := &TxStore{queries: queries{db: tx, lockRows: true}}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

// WithTx on an open transaction reuses it.
func (store *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore booking.Store) error) error {
	return fn(ctx, store)
}

// queries holds the statements shared by Store and TxStore.
type queries struct {
	db       querier
	lockRows bool
}

func (queries queries) InsertVehicle(ctx context.Context, vehicle booking.Vehicle) error {
	_, err := queries.db.Exec(ctx, sqlInsertVehicle,
		vehicle.ID.String(), vehicle.Name.String(), vehicle.TotalSeats.Int(), vehicle.CreatedAt.UTC(), vehicle.UpdatedAt.UTC())
	if err != nil {
		return wrapStoreError(errorSubjectVehicle, errorCodeInsert, err)
	}
	return nil
}

// GetVehicle takes a row lock inside transactions so that writers across
// processes serialize per vehicle.
func (queries queries) GetVehicle(ctx context.Context, vehicleID booking.VehicleID) (booking.Vehicle, error) {
	statement := sqlSelectVehicle
	if queries.lockRows {
		statement += " for update"
	}
	vehicle, err := scanVehicle(queries.db.QueryRow(ctx, statement, vehicleID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return booking.Vehicle{}, wrapStoreError(errorSubjectVehicle, errorCodeGet, booking.ErrUnknownVehicle)
		}
		return booking.Vehicle{}, wrapStoreError(errorSubjectVehicle, errorCodeGet, err)
	}
	return vehicle, nil
}

func (queries queries) ListVehicles(ctx context.Context) ([]booking.Vehicle, error) {
	rows, err := queries.db.Query(ctx, sqlListVehicles)
	if err != nil {
		return nil, wrapStoreError(errorSubjectVehicle, errorCodeList, err)
	}
	defer rows.Close()
	vehicles := make([]booking.Vehicle, 0)
	for rows.Next() {
		vehicle, err := scanVehicle(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectVehicle, errorCodeInvalid, err)
		}
		vehicles = append(vehicles, vehicle)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectVehicle, errorCodeList, err)
	}
	return vehicles, nil
}

func (queries queries) UpdateVehicle(ctx context.Context, vehicle booking.Vehicle) error {
	tag, err := queries.db.Exec(ctx, sqlUpdateVehicle,
		vehicle.ID.String(), vehicle.Name.String(), vehicle.TotalSeats.Int(), vehicle.UpdatedAt.UTC())
	if err != nil {
		return wrapStoreError(errorSubjectVehicle, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectVehicle, errorCodeUpdate, booking.ErrUnknownVehicle)
	}
	return nil
}

func (queries queries) DeleteVehicle(ctx context.Context, vehicleID booking.VehicleID) error {
	tag, err := queries.db.Exec(ctx, sqlDeleteVehicle, vehicleID.String())
	if err != nil {
		return wrapStoreError(errorSubjectVehicle, errorCodeDelete, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectVehicle, errorCodeDelete, booking.ErrUnknownVehicle)
	}
	return nil
}

func (queries queries) InsertBooking(ctx context.Context, candidate booking.Booking) error {
	_, err := queries.db.Exec(ctx, sqlInsertBooking,
		candidate.ID.String(),
		candidate.UserID.String(),
		candidate.VehicleID.String(),
		candidate.Seat.Int(),
		candidate.Status.String(),
		candidate.PaymentStatus.String(),
		candidate.CreatedAt.UTC(),
		candidate.UpdatedAt.UTC(),
	)
	if isActiveSeatConflict(err) {
		return wrapStoreError(errorSubjectBooking, errorCodeSeatTaken, booking.ErrSeatUnavailable)
	}
	if err != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeInsert, err)
	}
	return nil
}

func (queries queries) GetBooking(ctx context.Context, bookingID booking.BookingID) (booking.Booking, error) {
	found, err := scanBooking(queries.db.QueryRow(ctx, sqlSelectBooking, bookingID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, booking.ErrUnknownBooking)
		}
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, err)
	}
	return found, nil
}

func (queries queries) UpdateBookingStatus(ctx context.Context, bookingID booking.BookingID, from, to booking.BookingStatus, at time.Time) error {
	return queries.compareAndSet(ctx, sqlUpdateBookingStatus, bookingID, from.String(), to.String(), at)
}

func (queries queries) UpdatePaymentStatus(ctx context.Context, bookingID booking.BookingID, from, to booking.PaymentStatus, at time.Time) error {
	return queries.compareAndSet(ctx, sqlUpdatePaymentStatus, bookingID, from.String(), to.String(), at)
}

func (queries queries) compareAndSet(ctx context.Context, statement string, bookingID booking.BookingID, from, to string, at time.Time) error {
	tag, err := queries.db.Exec(ctx, statement, bookingID.String(), from, to, at.UTC())
	if isActiveSeatConflict(err) {
		return wrapStoreError(errorSubjectBooking, errorCodeSeatTaken, booking.ErrSeatUnavailable)
	}
	if err != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdateStatus, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := queries.GetBooking(ctx, bookingID); err != nil {
			return err
		}
		return wrapStoreError(errorSubjectBooking, errorCodeUpdateStatus, booking.ErrStatusConflict)
	}
	return nil
}

func (queries queries) ListBookingsByUser(ctx context.Context, userID booking.UserID) ([]booking.Booking, error) {
	return queries.listBookings(ctx, sqlListBookingsByUser, userID.String())
}

func (queries queries) ListActiveBookingsByVehicle(ctx context.Context, vehicleID booking.VehicleID) ([]booking.Booking, error) {
	return queries.listBookings(ctx, sqlListActiveBookingsByVehicle, vehicleID.String())
}

func (queries queries) ListActiveBookings(ctx context.Context) ([]booking.Booking, error) {
	return queries.listBookings(ctx, sqlListActiveBookings)
}

func (queries queries) listBookings(ctx context.Context, statement string, args ...any) ([]booking.Booking, error) {
	rows, err := queries.db.Query(ctx, statement, args...)
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	defer rows.Close()
	bookings := make([]booking.Booking, 0)
	for rows.Next() {
		found, err := scanBooking(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
		}
		bookings = append(bookings, found)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	return bookings, nil
}

func scanVehicle(row pgx.Row) (booking.Vehicle, error) {
	var (
		idValue    string
		nameValue  string
		totalSeats int
		createdAt  time.Time
		updatedAt  time.Time
	)
	if err := row.Scan(&idValue, &nameValue, &totalSeats, &createdAt, &updatedAt); err != nil {
		return booking.Vehicle{}, err
	}
	vehicleID, err := booking.NewVehicleID(idValue)
	if err != nil {
		return booking.Vehicle{}, err
	}
	name, err := booking.NewVehicleName(nameValue)
	if err != nil {
		return booking.Vehicle{}, err
	}
	seats, err := booking.NewSeatCount(totalSeats)
	if err != nil {
		return booking.Vehicle{}, err
	}
	return booking.Vehicle{ID: vehicleID, Name: name, TotalSeats: seats, CreatedAt: createdAt.UTC(), UpdatedAt: updatedAt.UTC()}, nil
}

func scanBooking(row pgx.Row) (booking.Booking, error) {
	var (
		idValue            string
		userIDValue        string
		vehicleIDValue     string
		seatValue          int
		statusValue        string
		paymentStatusValue string
		createdAt          time.Time
		updatedAt          time.Time
	)
	if err := row.Scan(&idValue, &userIDValue, &vehicleIDValue, &seatValue, &statusValue, &paymentStatusValue, &createdAt, &updatedAt); err != nil {
		return booking.Booking{}, err
	}
	bookingID, err := booking.NewBookingID(idValue)
	if err != nil {
		return booking.Booking{}, err
	}
	userID, err := booking.NewUserID(userIDValue)
	if err != nil {
		return booking.Booking{}, err
	}
	vehicleID, err := booking.NewVehicleID(vehicleIDValue)
	if err != nil {
		return booking.Booking{}, err
	}
	seat, err := booking.NewSeatNumber(seatValue)
	if err != nil {
		return booking.Booking{}, err
	}
	status, err := booking.ParseBookingStatus(statusValue)
	if err != nil {
		return booking.Booking{}, err
	}
	paymentStatus, err := booking.ParsePaymentStatus(paymentStatusValue)
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
		CreatedAt:     createdAt.UTC(),
		UpdatedAt:     updatedAt.UTC(),
	}, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return booking.WrapError(errorOperationStore, subject, code, err)
}

func isActiveSeatConflict(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintActiveSeat
	}
	return false
}
