package booking

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestVerifyPaymentMarksBookingPaid(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store)
	vehicle := mustCreateVehicle(test, service, "Express Line", 2)
	booking := mustReserve(test, service, vehicle.ID, 1, "owner")

	verified, err := service.VerifyPayment(context.Background(), booking.ID)
	if err != nil {
		test.Fatalf("verify payment: %v", err)
	}
	if verified.PaymentStatus != PaymentStatusPaid {
		test.Fatalf("expected paid, got %s", verified.PaymentStatus)
	}
	if verified.Status != BookingStatusConfirmed {
		test.Fatalf("payment must not change booking status, got %s", verified.Status)
	}
	if store.occupyingCount(vehicle.ID, 1) != 1 {
		test.Fatalf("payment must not change seat occupancy")
	}
}

func TestVerifyPaymentTwiceIsNoop(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore())
	vehicle := mustCreateVehicle(test, service, "Express Line", 2)
	booking := mustReserve(test, service, vehicle.ID, 1, "owner")

	if _, err := service.VerifyPayment(context.Background(), booking.ID); err != nil {
		test.Fatalf("first verify: %v", err)
	}
	again, err := service.VerifyPayment(context.Background(), booking.ID)
	if err != nil {
		test.Fatalf("second verify: %v", err)
	}
	if again.PaymentStatus != PaymentStatusPaid {
		test.Fatalf("expected paid, got %s", again.PaymentStatus)
	}
}

func TestVerifyPaymentErrors(test *testing.T) {
	test.Parallel()
	ctx := context.Background()

	test.Run("unknown booking", func(test *testing.T) {
		test.Parallel()
		service := mustNewService(test, newStubStore())
		_, err := service.VerifyPayment(ctx, mustBookingID(test, "missing"))
		expectError(test, err, ErrNotFound)
	})

	test.Run("canceled booking", func(test *testing.T) {
		test.Parallel()
		service := mustNewService(test, newStubStore())
		vehicle := mustCreateVehicle(test, service, "Express Line", 2)
		booking := mustReserve(test, service, vehicle.ID, 1, "owner")
		if _, err := service.ReleaseSeat(ctx, booking.ID); err != nil {
			test.Fatalf("release: %v", err)
		}
		verified, err := service.VerifyPayment(ctx, booking.ID)
		expectError(test, err, ErrBookingCanceled)
		if verified.PaymentStatus != PaymentStatusUnpaid {
			test.Fatalf("expected unpaid, got %s", verified.PaymentStatus)
		}
	})

	test.Run("gateway refusal", func(test *testing.T) {
		test.Parallel()
		store := newStubStore()
		service := mustNewService(test, store, WithPaymentGateway(decliningGateway{err: errors.New("card expired")}))
		vehicle := mustCreateVehicle(test, service, "Express Line", 2)
		booking := mustReserve(test, service, vehicle.ID, 1, "owner")

		_, err := service.VerifyPayment(ctx, booking.ID)
		expectError(test, err, ErrPaymentDeclined)
		var operationError OperationError
		if !errors.As(err, &operationError) || operationError.Code() != errorCodeGatewayRefuse {
			test.Fatalf("expected gateway refusal code, got %v", err)
		}
		stored, getErr := store.GetBooking(ctx, booking.ID)
		if getErr != nil || stored.PaymentStatus != PaymentStatusUnpaid {
			test.Fatalf("expected unpaid booking after refusal, got %+v (%v)", stored, getErr)
		}
	})

	test.Run("gateway reports declined kind", func(test *testing.T) {
		test.Parallel()
		service := mustNewService(test, newStubStore(), WithPaymentGateway(decliningGateway{err: ErrPaymentDeclined}))
		vehicle := mustCreateVehicle(test, service, "Express Line", 2)
		booking := mustReserve(test, service, vehicle.ID, 1, "owner")
		_, err := service.VerifyPayment(ctx, booking.ID)
		expectError(test, err, ErrPaymentDeclined)
	})
}

// cancelingGateway cancels the booking while the payment is being authorized.
type cancelingGateway struct {
	service *Service
}

func (gateway cancelingGateway) Authorize(ctx context.Context, booking Booking) error {
	_, err := gateway.service.ReleaseSeat(ctx, booking.ID)
	return err
}

func TestVerifyPaymentRechecksStatusAfterGateway(test *testing.T) {
	test.Parallel()
	gateway := &cancelingGateway{}
	service, err := NewService(newStubStore(), func() time.Time { return fixedTestTime }, WithPaymentGateway(gateway))
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	gateway.service = service
	vehicle := mustCreateVehicle(test, service, "Express Line", 2)
	booking := mustReserve(test, service, vehicle.ID, 1, "owner")

	_, err = service.VerifyPayment(context.Background(), booking.ID)
	expectError(test, err, ErrBookingCanceled)
}
