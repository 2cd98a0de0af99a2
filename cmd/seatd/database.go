package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/MarkoPoloResearchLab/seatledger/internal/grpcserver"
	"github.com/MarkoPoloResearchLab/seatledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/seatledger/internal/store/memstore"
	"github.com/MarkoPoloResearchLab/seatledger/internal/store/pgstore"
	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	driverMemory   = "memory"
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
	driverPgx      = "pgx"

	pgxScheme         = "pgx+"
	defaultSQLiteFile = "seatledger.db"
)

type storeHandle struct {
	store  booking.Store
	driver string
	probe  grpcserver.ReadinessProbe
	close  func() error
}

func openStore(ctx context.Context, dsn string) (storeHandle, error) {
	driver, target, err := resolveDriver(dsn)
	if err != nil {
		return storeHandle{}, err
	}
	switch driver {
	case driverMemory:
		return storeHandle{store: memstore.New(), driver: driver, close: func() error { return nil }}, nil
	case driverPgx:
		pool, err := pgxpool.New(ctx, target)
		if err != nil {
			return storeHandle{}, err
		}
		if err := pgstore.Migrate(ctx, pool); err != nil {
			pool.Close()
			return storeHandle{}, err
		}
		return storeHandle{
			store:  pgstore.New(pool),
			driver: driver,
			probe:  pool.Ping,
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil
	}
	gormDB, err := openDatabase(ctx, driver, target)
	if err != nil {
		return storeHandle{}, err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return storeHandle{}, err
	}
	if driver == driverSQLite {
		// One writer keeps sqlite from returning SQLITE_BUSY under concurrent claims.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := gormstore.Migrate(gormDB); err != nil {
		_ = sqlDB.Close()
		return storeHandle{}, err
	}
	return storeHandle{
		store:  gormstore.New(gormDB),
		driver: driver,
		probe:  sqlDB.PingContext,
		close:  sqlDB.Close,
	}, nil
}

func openDatabase(ctx context.Context, driver string, target string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case driverPostgres:
		db, err = gorm.Open(postgres.Open(target), cfg)
	case driverSQLite:
		db, err = gorm.Open(sqlite.Open(target), cfg)
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}

// resolveDriver maps a database URL to a driver and the DSN or file path it opens.
func resolveDriver(dsn string) (string, string, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" || trimmed == driverMemory {
		return driverMemory, "", nil
	}
	if strings.HasPrefix(trimmed, pgxScheme) {
		return driverPgx, strings.TrimPrefix(trimmed, pgxScheme), nil
	}
	if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") {
		return driverPostgres, trimmed, nil
	}
	if strings.HasPrefix(trimmed, "sqlite://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := parsed.Path
		if path == "" {
			path = parsed.Host
		}
		if path == "" || path == "/" {
			path = defaultSQLiteFile
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return driverSQLite, sqlitePath, err
	}
	// Anything else is a sqlite file path.
	sqlitePath, err := normalizeSQLitePath(trimmed)
	return driverSQLite, sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(".", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, nil
}

type seedVehicle struct {
	name  string
	seats int
}

var sampleCatalog = []seedVehicle{
	{name: "Express Line", seats: 40},
	{name: "City Rider", seats: 30},
}

// seedCatalog creates the sample vehicles when the catalog is empty and
// returns how many it created.
func seedCatalog(ctx context.Context, service *booking.Service) (int, error) {
	existing, err := service.ListVehicles(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	operator, err := booking.NewUserID("seatd")
	if err != nil {
		return 0, err
	}
	requestor := booking.Requestor{UserID: operator, Admin: true}
	for index, sample := range sampleCatalog {
		name, err := booking.NewVehicleName(sample.name)
		if err != nil {
			return index, err
		}
		seats, err := booking.NewSeatCount(sample.seats)
		if err != nil {
			return index, err
		}
		if _, err := service.CreateVehicle(ctx, requestor, name, seats); err != nil {
			return index, err
		}
	}
	return len(sampleCatalog), nil
}
