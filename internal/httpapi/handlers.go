package httpapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
	"github.com/gin-gonic/gin"
)

func (handler *httpHandler) handleListVehicles(ctx *gin.Context) {
	if _, ok := handler.requestor(ctx); !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	occupancies, err := handler.service.ListVehiclesWithOccupancy(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	vehicles := make([]vehicleResponse, 0, len(occupancies))
	for _, occupancy := range occupancies {
		vehicles = append(vehicles, newVehicleResponse(occupancy))
	}
	ctx.JSON(http.StatusOK, gin.H{"vehicles": vehicles})
}

func (handler *httpHandler) handleGetVehicle(ctx *gin.Context) {
	if _, ok := handler.requestor(ctx); !ok {
		return
	}
	vehicleID, err := booking.NewVehicleID(ctx.Param("id"))
	if err != nil {
		handler.respondInvalid(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	occupancy, err := handler.service.VehicleOccupancy(requestCtx, vehicleID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"vehicle": newVehicleResponse(occupancy)})
}

func (handler *httpHandler) handleCreateVehicle(ctx *gin.Context) {
	requestor, ok := handler.requestor(ctx)
	if !ok {
		return
	}
	name, seats, ok := handler.bindVehicle(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	vehicle, err := handler.service.CreateVehicle(requestCtx, requestor, name, seats)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"vehicle": newVehicleResponse(booking.VehicleOccupancy{Vehicle: vehicle})})
}

func (handler *httpHandler) handleUpdateVehicle(ctx *gin.Context) {
	requestor, ok := handler.requestor(ctx)
	if !ok {
		return
	}
	vehicleID, err := booking.NewVehicleID(ctx.Param("id"))
	if err != nil {
		handler.respondInvalid(ctx, err)
		return
	}
	name, seats, ok := handler.bindVehicle(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	if _, err := handler.service.UpdateVehicle(requestCtx, requestor, vehicleID, name, seats); err != nil {
		handler.respondError(ctx, err)
		return
	}
	occupancy, err := handler.service.VehicleOccupancy(requestCtx, vehicleID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"vehicle": newVehicleResponse(occupancy)})
}

func (handler *httpHandler) handleDeleteVehicle(ctx *gin.Context) {
	requestor, ok := handler.requestor(ctx)
	if !ok {
		return
	}
	vehicleID, err := booking.NewVehicleID(ctx.Param("id"))
	if err != nil {
		handler.respondInvalid(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	if err := handler.service.DeleteVehicle(requestCtx, requestor, vehicleID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) bindVehicle(ctx *gin.Context) (booking.VehicleName, booking.SeatCount, bool) {
	var request vehicleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		handler.respondInvalid(ctx, err)
		return booking.VehicleName{}, 0, false
	}
	name, err := booking.NewVehicleName(request.Name)
	if err != nil {
		handler.respondInvalid(ctx, err)
		return booking.VehicleName{}, 0, false
	}
	seats, err := booking.NewSeatCount(request.TotalSeats)
	if err != nil {
		handler.respondInvalid(ctx, err)
		return booking.VehicleName{}, 0, false
	}
	return name, seats, true
}

func (handler *httpHandler) handleCreateBooking(ctx *gin.Context) {
	requestor, ok := handler.requestor(ctx)
	if !ok {
		return
	}
	var request bookingRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		handler.respondInvalid(ctx, err)
		return
	}
	vehicleID, err := booking.NewVehicleID(request.VehicleID)
	if err != nil {
		handler.respondInvalid(ctx, err)
		return
	}
	seat, err := booking.NewSeatNumber(request.Seat)
	if err != nil {
		handler.respondInvalid(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	reserved, err := handler.service.ReserveSeat(requestCtx, vehicleID, seat, requestor.UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"booking": newBookingResponse(reserved)})
}

// handleCreateBookings claims several seats of one vehicle at once. Nothing is
// booked when any seat is taken; the response then lists the taken seats.
func (handler *httpHandler) handleCreateBookings(ctx *gin.Context) {
	requestor, ok := handler.requestor(ctx)
	if !ok {
		return
	}
	var request bookingBatchRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		handler.respondInvalid(ctx, err)
		return
	}
	vehicleID, err := booking.NewVehicleID(request.VehicleID)
	if err != nil {
		handler.respondInvalid(ctx, err)
		return
	}
	seats := make([]booking.SeatNumber, 0, len(request.Seats))
	for _, raw := range request.Seats {
		seat, err := booking.NewSeatNumber(raw)
		if err != nil {
			handler.respondInvalid(ctx, err)
			return
		}
		seats = append(seats, seat)
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	reserved, err := handler.service.ReserveSeats(requestCtx, vehicleID, seats, requestor.UserID)
	var taken *booking.SeatsTakenError
	if errors.As(err, &taken) {
		takenSeats := make([]int, 0, len(taken.Seats))
		for _, seat := range taken.Seats {
			takenSeats = append(takenSeats, seat.Int())
		}
		response := errorResponse(errorCodeSeatUnavailable, err.Error())
		response["taken_seats"] = takenSeats
		ctx.JSON(http.StatusConflict, response)
		return
	}
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"bookings": newBookingResponses(reserved)})
}

// handleListBookings returns the caller's bookings. Administrators may pass
// user_id to list another user's bookings.
func (handler *httpHandler) handleListBookings(ctx *gin.Context) {
	requestor, ok := handler.requestor(ctx)
	if !ok {
		return
	}
	owner := requestor.UserID
	if requested := ctx.Query("user_id"); requested != "" && requested != owner.String() {
		if !requestor.Admin {
			ctx.JSON(http.StatusForbidden, errorResponse(errorCodeForbidden, "listing another user's bookings requires administrator"))
			return
		}
		parsed, err := booking.NewUserID(requested)
		if err != nil {
			handler.respondInvalid(ctx, err)
			return
		}
		owner = parsed
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	bookings, err := handler.service.BookingsForUser(requestCtx, owner)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"bookings": newBookingResponses(bookings)})
}

func (handler *httpHandler) handleGetBooking(ctx *gin.Context) {
	requestor, ok := handler.requestor(ctx)
	if !ok {
		return
	}
	bookingID, err := booking.NewBookingID(ctx.Param("id"))
	if err != nil {
		handler.respondInvalid(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	found, err := handler.service.GetBooking(requestCtx, bookingID, requestor)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"booking": newBookingResponse(found)})
}

func (handler *httpHandler) handleCancelBooking(ctx *gin.Context) {
	requestor, ok := handler.requestor(ctx)
	if !ok {
		return
	}
	bookingID, err := booking.NewBookingID(ctx.Param("id"))
	if err != nil {
		handler.respondInvalid(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	canceled, err := handler.service.CancelBooking(requestCtx, bookingID, requestor)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"booking": newBookingResponse(canceled)})
}

func (handler *httpHandler) handleVerifyPayment(ctx *gin.Context) {
	requestor, ok := handler.requestor(ctx)
	if !ok {
		return
	}
	var request paymentRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		handler.respondInvalid(ctx, err)
		return
	}
	bookingID, err := booking.NewBookingID(request.BookingID)
	if err != nil {
		handler.respondInvalid(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	if _, err := handler.service.GetBooking(requestCtx, bookingID, requestor); err != nil {
		handler.respondError(ctx, err)
		return
	}
	verified, err := handler.service.VerifyPayment(requestCtx, bookingID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"booking": newBookingResponse(verified)})
}

func (handler *httpHandler) handleReset(ctx *gin.Context) {
	requestor, ok := handler.requestor(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	canceled, err := handler.service.ResetBookings(requestCtx, requestor)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"canceled": canceled})
}
