// Package oplog adapts engine operation callbacks to zap.
package oplog

import (
	"context"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
	"go.uber.org/zap"
)

// ZapLogger writes one structured line per engine operation.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger returns a ZapLogger. A nil logger discards output.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{logger: logger}
}

// LogOperation implements booking.OperationLogger.
func (zapLogger *ZapLogger) LogOperation(_ context.Context, entry booking.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation.String()),
		zap.String("status", entry.Status),
	}
	if entry.UserID.String() != "" {
		fields = append(fields, zap.String("user_id", entry.UserID.String()))
	}
	if entry.VehicleID.String() != "" {
		fields = append(fields, zap.String("vehicle_id", entry.VehicleID.String()))
	}
	if entry.BookingID.String() != "" {
		fields = append(fields, zap.String("booking_id", entry.BookingID.String()))
	}
	if entry.Seat > 0 {
		fields = append(fields, zap.Int("seat", entry.Seat.Int()))
	}
	if entry.Operation == booking.OperationResetBookings {
		fields = append(fields, zap.Int("canceled", entry.Count))
	}
	if entry.Succeeded() {
		zapLogger.logger.Info("booking operation", fields...)
		return
	}
	if operationError, ok := asOperationError(entry.Error); ok {
		fields = append(fields, zap.String("error_code", operationError.Code()))
	}
	fields = append(fields, zap.Error(entry.Error))
	zapLogger.logger.Warn("booking operation failed", fields...)
}

// Multi fans an operation out to several loggers in order.
type Multi []booking.OperationLogger

// NewMulti drops nil loggers.
func NewMulti(loggers ...booking.OperationLogger) Multi {
	multi := make(Multi, 0, len(loggers))
	for _, logger := range loggers {
		if logger != nil {
			multi = append(multi, logger)
		}
	}
	return multi
}

// LogOperation implements booking.OperationLogger.
func (multi Multi) LogOperation(ctx context.Context, entry booking.OperationLog) {
	for _, logger := range multi {
		logger.LogOperation(ctx, entry)
	}
}
