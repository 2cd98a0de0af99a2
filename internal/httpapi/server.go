// Package httpapi exposes the booking engine over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const (
	claimsContextKey      = "auth_claims"
	defaultAdminRole      = "admin"
	defaultRequestTimeout = 5 * time.Second
	shutdownTimeout       = 5 * time.Second
)

// BookingService is the subset of booking.Service the HTTP layer calls.
type BookingService interface {
	CreateVehicle(ctx context.Context, requestor booking.Requestor, name booking.VehicleName, totalSeats booking.SeatCount) (booking.Vehicle, error)
	UpdateVehicle(ctx context.Context, requestor booking.Requestor, vehicleID booking.VehicleID, name booking.VehicleName, totalSeats booking.SeatCount) (booking.Vehicle, error)
	DeleteVehicle(ctx context.Context, requestor booking.Requestor, vehicleID booking.VehicleID) error
	ListVehiclesWithOccupancy(ctx context.Context) ([]booking.VehicleOccupancy, error)
	VehicleOccupancy(ctx context.Context, vehicleID booking.VehicleID) (booking.VehicleOccupancy, error)
	ReserveSeat(ctx context.Context, vehicleID booking.VehicleID, seat booking.SeatNumber, userID booking.UserID) (booking.Booking, error)
	ReserveSeats(ctx context.Context, vehicleID booking.VehicleID, seats []booking.SeatNumber, userID booking.UserID) ([]booking.Booking, error)
	BookingsForUser(ctx context.Context, userID booking.UserID) ([]booking.Booking, error)
	GetBooking(ctx context.Context, bookingID booking.BookingID, requestor booking.Requestor) (booking.Booking, error)
	CancelBooking(ctx context.Context, bookingID booking.BookingID, requestor booking.Requestor) (booking.Booking, error)
	VerifyPayment(ctx context.Context, bookingID booking.BookingID) (booking.Booking, error)
	ResetBookings(ctx context.Context, requestor booking.Requestor) (int, error)
}

// Config carries HTTP-facing settings.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	AdminRole      string
	RequestTimeout time.Duration
}

// Dependencies wires the router. Limiter is optional.
type Dependencies struct {
	Service   BookingService
	Validator *sessionvalidator.Validator
	Limiter   *RateLimiter
	Logger    *zap.Logger
}

// Run serves the router until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, cfg Config, dependencies Dependencies) error {
	router, err := NewRouter(cfg, dependencies)
	if err != nil {
		return err
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(cfg Config, dependencies Dependencies) (*gin.Engine, error) {
	if dependencies.Service == nil {
		return nil, fmt.Errorf("httpapi: booking service is required")
	}
	if dependencies.Validator == nil {
		return nil, fmt.Errorf("httpapi: session validator is required")
	}
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if cfg.AdminRole == "" {
		cfg.AdminRole = defaultAdminRole
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	registerValidators()

	handler := &httpHandler{
		service: dependencies.Service,
		logger:  dependencies.Logger,
		cfg:     cfg,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(dependencies.Validator.GinMiddleware(claimsContextKey))
	if dependencies.Limiter != nil {
		api.Use(dependencies.Limiter.Middleware())
	}

	api.GET("/vehicles", handler.handleListVehicles)
	api.GET("/vehicles/:id", handler.handleGetVehicle)
	api.POST("/vehicles", handler.handleCreateVehicle)
	api.PUT("/vehicles/:id", handler.handleUpdateVehicle)
	api.DELETE("/vehicles/:id", handler.handleDeleteVehicle)

	api.POST("/bookings", handler.handleCreateBooking)
	api.POST("/bookings/batch", handler.handleCreateBookings)
	api.GET("/bookings", handler.handleListBookings)
	api.GET("/bookings/:id", handler.handleGetBooking)
	api.POST("/bookings/:id/cancel", handler.handleCancelBooking)

	api.POST("/payments/verify", handler.handleVerifyPayment)
	api.POST("/admin/reset", handler.handleReset)

	return router, nil
}

type httpHandler struct {
	service BookingService
	logger  *zap.Logger
	cfg     Config
}

func getClaims(ctx *gin.Context) *sessionvalidator.Claims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionvalidator.Claims)
	return claims
}

// requestor resolves the caller from the session claims. It writes the
// 401 response itself and reports false when there is no usable session.
func (handler *httpHandler) requestor(ctx *gin.Context) (booking.Requestor, bool) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse(errorCodeUnauthorized, "missing session"))
		return booking.Requestor{}, false
	}
	userID, err := booking.NewUserID(claims.GetUserID())
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse(errorCodeUnauthorized, "session has no user"))
		return booking.Requestor{}, false
	}
	requestor := booking.Requestor{UserID: userID}
	for _, role := range claims.GetUserRoles() {
		if role == handler.cfg.AdminRole {
			requestor.Admin = true
			break
		}
	}
	return requestor, true
}

func (handler *httpHandler) requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
}

func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	status, code := statusForError(err)
	if status == http.StatusInternalServerError {
		handler.logger.Error("request failed",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Error(err))
		ctx.JSON(status, errorResponse(code, "internal error"))
		return
	}
	ctx.JSON(status, errorResponse(code, err.Error()))
}

func (handler *httpHandler) respondInvalid(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidInput, err.Error()))
}
