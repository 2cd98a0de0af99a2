package booking

// Operation names a state-changing engine operation.
type Operation string

const (
	OperationCreateVehicle Operation = "create_vehicle"
	OperationUpdateVehicle Operation = "update_vehicle"
	OperationDeleteVehicle Operation = "delete_vehicle"
	OperationReserveSeat   Operation = "reserve_seat"
	OperationReserveSeats  Operation = "reserve_seats"
	OperationReleaseSeat   Operation = "release_seat"
	OperationCancelBooking Operation = "cancel_booking"
	OperationVerifyPayment Operation = "verify_payment"
	OperationResetBookings Operation = "reset_bookings"
)

// String returns the operation name.
func (operation Operation) String() string {
	return string(operation)
}

const (
	operationStatusOK    = "ok"
	operationStatusError = "error"

	maxVehicleNameRunes    = 120
	maxSeatCount           = 1000
	statusConflictAttempts = 2

	errorOperationService  = "service"
	errorSubjectVehicle    = "vehicle"
	errorSubjectBooking    = "booking"
	errorSubjectPayment    = "payment"
	errorCodeSeatRange     = "seat_out_of_range"
	errorCodeSeatDuplicate = "duplicate_seat"
	errorCodeSeatsTaken    = "seats_taken"
	errorCodeMissingID     = "missing_id"
	errorCodeShrink        = "shrink_below_occupied"
	errorCodeActive        = "active_bookings"
	errorCodeGatewayRefuse = "gateway_refused"
)
