package events

import (
	"context"
	"time"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
	"go.uber.org/zap"
)

const defaultPublishTimeout = 3 * time.Second

// OperationPublisher forwards engine operations to a Publisher. It implements
// booking.OperationLogger. Publish failures are logged and never reach the caller.
type OperationPublisher struct {
	publisher Publisher
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time
}

// NewOperationPublisher wraps publisher. A zero timeout uses three seconds.
func NewOperationPublisher(publisher Publisher, logger *zap.Logger, timeout time.Duration) *OperationPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &OperationPublisher{publisher: publisher, logger: logger, timeout: timeout, now: time.Now}
}

// LogOperation publishes the event for a successful operation.
func (operationPublisher *OperationPublisher) LogOperation(ctx context.Context, entry booking.OperationLog) {
	event, ok := FromOperation(entry, operationPublisher.now())
	if !ok {
		return
	}
	// The request may already be finished; delivery gets its own deadline.
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), operationPublisher.timeout)
	defer cancel()
	if err := operationPublisher.publisher.Publish(publishCtx, event); err != nil {
		operationPublisher.logger.Warn("event publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.String("vehicle_id", event.VehicleID),
			zap.String("booking_id", event.BookingID),
			zap.Error(err),
		)
	}
}
