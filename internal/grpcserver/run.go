package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Serve runs grpcServer on listener until ctx is canceled, then stops it gracefully.
func Serve(ctx context.Context, grpcServer *grpc.Server, listener net.Listener, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("grpc server listening", zap.String("addr", listener.Addr().String()))
		if serveErr := grpcServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			errCh <- serveErr
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down grpc server")
		grpcServer.GracefulStop()
		return nil
	case serveErr, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("grpc serve: %w", serveErr)
	}
}
