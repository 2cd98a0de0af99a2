package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

// bookingServiceHandler lets the service descriptor check the registered implementation.
type bookingServiceHandler interface {
	ListVehicles(context.Context, *ListVehiclesRequest) (*ListVehiclesResponse, error)
	ReserveSeat(context.Context, *ReserveSeatRequest) (*BookingResponse, error)
	CancelBooking(context.Context, *BookingRequest) (*BookingResponse, error)
	GetBooking(context.Context, *BookingRequest) (*BookingResponse, error)
	VerifyPayment(context.Context, *BookingRequest) (*BookingResponse, error)
	ListBookings(context.Context, *ListBookingsRequest) (*ListBookingsResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*bookingServiceHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListVehicles", Handler: unaryHandler("ListVehicles", bookingServiceHandler.ListVehicles)},
		{MethodName: "ReserveSeat", Handler: unaryHandler("ReserveSeat", bookingServiceHandler.ReserveSeat)},
		{MethodName: "CancelBooking", Handler: unaryHandler("CancelBooking", bookingServiceHandler.CancelBooking)},
		{MethodName: "GetBooking", Handler: unaryHandler("GetBooking", bookingServiceHandler.GetBooking)},
		{MethodName: "VerifyPayment", Handler: unaryHandler("VerifyPayment", bookingServiceHandler.VerifyPayment)},
		{MethodName: "ListBookings", Handler: unaryHandler("ListBookings", bookingServiceHandler.ListBookings)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "seatledger/v1/booking.proto",
}

// FullMethod returns the invocation path of a BookingService method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler[Request any, Response any](method string, call func(bookingServiceHandler, context.Context, *Request) (*Response, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, decode func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		request := new(Request)
		if err := decode(request); err != nil {
			return nil, err
		}
		handler := srv.(bookingServiceHandler)
		if interceptor == nil {
			return call(handler, ctx, request)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		return interceptor(ctx, request, info, func(ctx context.Context, req any) (any, error) {
			return call(handler, ctx, req.(*Request))
		})
	}
}
