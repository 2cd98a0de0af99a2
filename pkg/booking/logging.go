package booking

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
// It is called after the operation's critical section has been left.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing engine operation.
type OperationLog struct {
	Operation Operation
	UserID    UserID
	VehicleID VehicleID
	BookingID BookingID
	Seat      SeatNumber
	Booking   Booking
	Vehicle   Vehicle
	Count     int
	Status    string
	Error     error
}

// Succeeded reports whether the logged operation completed without error.
func (entry OperationLog) Succeeded() bool {
	return entry.Error == nil
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithPaymentGateway replaces the simulated payment gateway.
func WithPaymentGateway(gateway PaymentGateway) ServiceOption {
	return func(service *Service) {
		if gateway != nil {
			service.gateway = gateway
		}
	}
}

// WithIDGenerator overrides how vehicle and booking identifiers are generated.
func WithIDGenerator(generate func() string) ServiceOption {
	return func(service *Service) {
		if generate != nil {
			service.newID = generate
		}
	}
}
