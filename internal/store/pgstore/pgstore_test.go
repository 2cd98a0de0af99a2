package pgstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/MarkoPoloResearchLab/seatledger/internal/store/storetest"
	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresURLEnv = "SEATD_TEST_POSTGRES_URL"

func TestIsActiveSeatConflict(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "active seat index", err: &pgconn.PgError{Code: pgUniqueViolationCode, ConstraintName: constraintActiveSeat}, want: true},
		{name: "wrapped", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgUniqueViolationCode, ConstraintName: constraintActiveSeat}), want: true},
		{name: "other unique index", err: &pgconn.PgError{Code: pgUniqueViolationCode, ConstraintName: "bookings_id_key"}, want: false},
		{name: "other code", err: &pgconn.PgError{Code: "23503", ConstraintName: constraintActiveSeat}, want: false},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			if got := isActiveSeatConflict(testCase.err); got != testCase.want {
				test.Fatalf("expected %v, got %v", testCase.want, got)
			}
		})
	}
}

func TestStoreContract(test *testing.T) {
	databaseURL := os.Getenv(postgresURLEnv)
	if databaseURL == "" {
		test.Skipf("%s not set", postgresURLEnv)
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		test.Fatalf("connect: %v", err)
	}
	test.Cleanup(pool.Close)
	if err := Migrate(ctx, pool); err != nil {
		test.Fatalf("migrate: %v", err)
	}
	storetest.Run(test, func(test *testing.T) booking.Store {
		if _, err := pool.Exec(ctx, "truncate vehicles, bookings restart identity"); err != nil {
			test.Fatalf("truncate: %v", err)
		}
		return New(pool)
	})
}
