package grpcserver

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "seatledger.v1.BookingService"

	errorInvalidInput    = "invalid_input"
	errorNotFound        = "not_found"
	errorSeatUnavailable = "seat_unavailable"
	errorForbidden       = "forbidden"
	errorAlreadyCanceled = "already_canceled"
	errorBookingCanceled = "booking_canceled"
	errorVehicleInUse    = "vehicle_in_use"
	errorPaymentDeclined = "payment_declined"
	errorStatusConflict  = "status_conflict"
)

// Engine is the subset of booking.Service exposed over gRPC.
type Engine interface {
	ListVehiclesWithOccupancy(ctx context.Context) ([]booking.VehicleOccupancy, error)
	ReserveSeat(ctx context.Context, vehicleID booking.VehicleID, seat booking.SeatNumber, userID booking.UserID) (booking.Booking, error)
	CancelBooking(ctx context.Context, bookingID booking.BookingID, requestor booking.Requestor) (booking.Booking, error)
	GetBooking(ctx context.Context, bookingID booking.BookingID, requestor booking.Requestor) (booking.Booking, error)
	VerifyPayment(ctx context.Context, bookingID booking.BookingID) (booking.Booking, error)
	BookingsForUser(ctx context.Context, userID booking.UserID) ([]booking.Booking, error)
}

// BookingServiceServer exposes the booking engine over gRPC.
type BookingServiceServer struct {
	engine Engine
}

// NewBookingServiceServer constructs a gRPC server for the booking engine.
func NewBookingServiceServer(engine Engine) *BookingServiceServer {
	return &BookingServiceServer{engine: engine}
}

// Register mounts the booking service on grpcServer.
func Register(grpcServer grpc.ServiceRegistrar, server *BookingServiceServer) {
	grpcServer.RegisterService(&serviceDesc, server)
}

func (server *BookingServiceServer) ListVehicles(ctx context.Context, _ *ListVehiclesRequest) (*ListVehiclesResponse, error) {
	occupancies, err := server.engine.ListVehiclesWithOccupancy(ctx)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	response := &ListVehiclesResponse{Vehicles: make([]Vehicle, 0, len(occupancies))}
	for _, occupancy := range occupancies {
		response.Vehicles = append(response.Vehicles, toVehicle(occupancy))
	}
	return response, nil
}

func (server *BookingServiceServer) ReserveSeat(ctx context.Context, request *ReserveSeatRequest) (*BookingResponse, error) {
	requestor, err := requestorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	vehicleID, err := booking.NewVehicleID(request.VehicleID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	seat, err := booking.NewSeatNumber(request.Seat)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	reserved, err := server.engine.ReserveSeat(ctx, vehicleID, seat, requestor.UserID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return &BookingResponse{Booking: toBooking(reserved)}, nil
}

func (server *BookingServiceServer) CancelBooking(ctx context.Context, request *BookingRequest) (*BookingResponse, error) {
	bookingID, requestor, err := parseBookingRequest(ctx, request)
	if err != nil {
		return nil, err
	}
	canceled, err := server.engine.CancelBooking(ctx, bookingID, requestor)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return &BookingResponse{Booking: toBooking(canceled)}, nil
}

func (server *BookingServiceServer) GetBooking(ctx context.Context, request *BookingRequest) (*BookingResponse, error) {
	bookingID, requestor, err := parseBookingRequest(ctx, request)
	if err != nil {
		return nil, err
	}
	found, err := server.engine.GetBooking(ctx, bookingID, requestor)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return &BookingResponse{Booking: toBooking(found)}, nil
}

func (server *BookingServiceServer) VerifyPayment(ctx context.Context, request *BookingRequest) (*BookingResponse, error) {
	bookingID, requestor, err := parseBookingRequest(ctx, request)
	if err != nil {
		return nil, err
	}
	if _, err := server.engine.GetBooking(ctx, bookingID, requestor); err != nil {
		return nil, mapToGRPCError(err)
	}
	verified, err := server.engine.VerifyPayment(ctx, bookingID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return &BookingResponse{Booking: toBooking(verified)}, nil
}

func (server *BookingServiceServer) ListBookings(ctx context.Context, request *ListBookingsRequest) (*ListBookingsResponse, error) {
	requestor, err := requestorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	owner := requestor.UserID
	if request.UserID != "" && request.UserID != owner.String() {
		if !requestor.Admin {
			return nil, status.Error(codes.PermissionDenied, errorForbidden)
		}
		owner, err = booking.NewUserID(request.UserID)
		if err != nil {
			return nil, mapToGRPCError(err)
		}
	}
	bookings, err := server.engine.BookingsForUser(ctx, owner)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	response := &ListBookingsResponse{Bookings: make([]Booking, 0, len(bookings))}
	for _, record := range bookings {
		response.Bookings = append(response.Bookings, toBooking(record))
	}
	return response, nil
}

func parseBookingRequest(ctx context.Context, request *BookingRequest) (booking.BookingID, booking.Requestor, error) {
	requestor, err := requestorFromContext(ctx)
	if err != nil {
		return booking.BookingID{}, booking.Requestor{}, err
	}
	bookingID, err := booking.NewBookingID(request.BookingID)
	if err != nil {
		return booking.BookingID{}, booking.Requestor{}, mapToGRPCError(err)
	}
	return bookingID, requestor, nil
}

func mapToGRPCError(source error) error {
	if errors.Is(source, booking.ErrInvalidInput) {
		return status.Error(codes.InvalidArgument, errorInvalidInput)
	}
	if errors.Is(source, booking.ErrNotFound) {
		return status.Error(codes.NotFound, errorNotFound)
	}
	if errors.Is(source, booking.ErrSeatUnavailable) {
		return status.Error(codes.AlreadyExists, errorSeatUnavailable)
	}
	if errors.Is(source, booking.ErrForbidden) {
		return status.Error(codes.PermissionDenied, errorForbidden)
	}
	if errors.Is(source, booking.ErrAlreadyCanceled) {
		return status.Error(codes.FailedPrecondition, errorAlreadyCanceled)
	}
	if errors.Is(source, booking.ErrBookingCanceled) {
		return status.Error(codes.FailedPrecondition, errorBookingCanceled)
	}
	if errors.Is(source, booking.ErrVehicleInUse) {
		return status.Error(codes.FailedPrecondition, errorVehicleInUse)
	}
	if errors.Is(source, booking.ErrPaymentDeclined) {
		return status.Error(codes.FailedPrecondition, errorPaymentDeclined)
	}
	if errors.Is(source, booking.ErrStatusConflict) {
		return status.Error(codes.Aborted, errorStatusConflict)
	}
	return status.Error(codes.Internal, source.Error())
}
