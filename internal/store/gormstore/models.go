package gormstore

import (
	"time"

	"gorm.io/gorm"
)

const activeSeatIndexName = "idx_bookings_active_seat"

// Vehicle mirrors the vehicles table. Seq preserves insertion order.
type Vehicle struct {
	Seq        int64     `gorm:"primaryKey;autoIncrement"`
	ID         string    `gorm:"size:64;not null;uniqueIndex:idx_vehicles_id"`
	Name       string    `gorm:"size:480;not null"`
	TotalSeats int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (Vehicle) TableName() string { return "vehicles" }

// Booking mirrors the bookings table.
type Booking struct {
	Seq           int64     `gorm:"primaryKey;autoIncrement"`
	ID            string    `gorm:"size:64;not null;uniqueIndex:idx_bookings_id"`
	UserID        string    `gorm:"size:255;not null;index:idx_bookings_user,priority:1"`
	VehicleID     string    `gorm:"size:64;not null;index:idx_bookings_vehicle_status,priority:1"`
	Seat          int       `gorm:"not null"`
	Status        string    `gorm:"size:16;not null;index:idx_bookings_vehicle_status,priority:2"`
	PaymentStatus string    `gorm:"size:16;not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (Booking) TableName() string { return "bookings" }

// Migrate creates the tables and the partial unique index that lets at most
// one non-canceled booking hold a seat.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Vehicle{}, &Booking{}); err != nil {
		return err
	}
	return db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS " + activeSeatIndexName +
		" ON bookings (vehicle_id, seat) WHERE status <> 'canceled'").Error
}
