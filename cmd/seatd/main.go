package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/seatledger/internal/config"
	"github.com/MarkoPoloResearchLab/seatledger/internal/events"
	"github.com/MarkoPoloResearchLab/seatledger/internal/grpcserver"
	"github.com/MarkoPoloResearchLab/seatledger/internal/httpapi"
	"github.com/MarkoPoloResearchLab/seatledger/internal/oplog"
	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const (
	envPrefix = "SEATD"

	flagDatabaseURL         = "database-url"
	flagListenAddr          = "listen-addr"
	flagGRPCListenAddr      = "grpc-listen-addr"
	flagAllowedOrigins      = "allowed-origins"
	flagAdminRole           = "admin-role"
	flagRequestTimeout      = "request-timeout"
	flagHealthProbeInterval = "health-probe-interval"
	flagSessionSigningKey   = "session-signing-key"
	flagSessionIssuer       = "session-issuer"
	flagSessionCookie       = "session-cookie-name"
	flagRedisAddr           = "redis-addr"
	flagRateLimitCapacity   = "rate-limit-capacity"
	flagRateLimitRefill     = "rate-limit-refill"
	flagRateLimitInterval   = "rate-limit-interval"
	flagEventBroker         = "event-broker"
	flagAMQPURL             = "amqp-url"
	flagAMQPQueue           = "amqp-queue"
	flagKafkaBrokers        = "kafka-brokers"
	flagKafkaTopic          = "kafka-topic"
	flagSeedCatalog         = "seed-catalog"

	eventPublishTimeout = 3 * time.Second
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "seatd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &config.Config{}
	cmd := &cobra.Command{
		Use:           "seatd",
		Short:         "Seat reservation and booking server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, viper.New(), cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.String(flagDatabaseURL, "memory", "memory, sqlite://path, postgres://… (gorm) or pgx+postgres://… (pgx)")
	flags.String(flagListenAddr, ":8080", "HTTP listen address")
	flags.String(flagGRPCListenAddr, "127.0.0.1:7000", "gRPC listen address")
	flags.String(flagAllowedOrigins, "http://localhost:8000", "comma-separated CORS origins")
	flags.String(flagAdminRole, "admin", "session role granting administrator rights")
	flags.Duration(flagRequestTimeout, 5*time.Second, "per-request engine timeout")
	flags.Duration(flagHealthProbeInterval, 5*time.Second, "interval between store readiness probes")
	flags.String(flagSessionSigningKey, "", "HS256 key used to validate session cookies")
	flags.String(flagSessionIssuer, "tauth", "expected session issuer")
	flags.String(flagSessionCookie, "app_session", "session cookie name")
	flags.String(flagRedisAddr, "", "Redis address for rate limiting; empty disables it")
	flags.Int(flagRateLimitCapacity, 20, "token bucket capacity per caller")
	flags.Int(flagRateLimitRefill, 1, "tokens added per refill interval")
	flags.Duration(flagRateLimitInterval, time.Second, "token bucket refill interval")
	flags.String(flagEventBroker, config.BrokerNone, "event broker: none, amqp or kafka")
	flags.String(flagAMQPURL, "", "RabbitMQ URL")
	flags.String(flagAMQPQueue, "seatledger.events", "RabbitMQ queue for domain events")
	flags.String(flagKafkaBrokers, "", "comma-separated Kafka brokers")
	flags.String(flagKafkaTopic, "seatledger.events", "Kafka topic for domain events")
	flags.Bool(flagSeedCatalog, true, "create the sample vehicles when the catalog is empty")

	return cmd
}

// loadConfig binds every flag to SEATD_<FLAG> and fills cfg.
func loadConfig(cmd *cobra.Command, settings *viper.Viper, cfg *config.Config) error {
	settings.SetEnvPrefix(envPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	if err := settings.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	*cfg = config.Config{
		DatabaseURL:         settings.GetString(flagDatabaseURL),
		ListenAddr:          settings.GetString(flagListenAddr),
		GRPCListenAddr:      settings.GetString(flagGRPCListenAddr),
		AllowedOrigins:      config.ParseList(settings.GetString(flagAllowedOrigins)),
		AdminRole:           settings.GetString(flagAdminRole),
		RequestTimeout:      settings.GetDuration(flagRequestTimeout),
		HealthProbeInterval: settings.GetDuration(flagHealthProbeInterval),
		SessionSigningKey:   settings.GetString(flagSessionSigningKey),
		SessionIssuer:       settings.GetString(flagSessionIssuer),
		SessionCookieName:   settings.GetString(flagSessionCookie),
		RateLimit: config.RateLimit{
			RedisAddr:      settings.GetString(flagRedisAddr),
			Capacity:       settings.GetInt(flagRateLimitCapacity),
			RefillTokens:   settings.GetInt(flagRateLimitRefill),
			RefillInterval: settings.GetDuration(flagRateLimitInterval),
		},
		Events: config.Events{
			Broker:       settings.GetString(flagEventBroker),
			AMQPURL:      settings.GetString(flagAMQPURL),
			AMQPQueue:    settings.GetString(flagAMQPQueue),
			KafkaBrokers: config.ParseList(settings.GetString(flagKafkaBrokers)),
			KafkaTopic:   settings.GetString(flagKafkaTopic),
		},
		SeedCatalog: settings.GetBool(flagSeedCatalog),
	}
	return cfg.Validate()
}

func runServer(ctx context.Context, cfg *config.Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	handle, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("store open: %w", err)
	}
	defer func() {
		if closeErr := handle.close(); closeErr != nil {
			logger.Warn("store close", zap.Error(closeErr))
		}
	}()
	logger.Info("store ready", zap.String("driver", handle.driver))

	publisher, err := openPublisher(cfg.Events, logger)
	if err != nil {
		return fmt.Errorf("event publisher: %w", err)
	}
	operationLoggers := []booking.OperationLogger{oplog.NewZapLogger(logger)}
	if publisher != nil {
		defer func() {
			if closeErr := publisher.Close(); closeErr != nil {
				logger.Warn("event publisher close", zap.Error(closeErr))
			}
		}()
		operationLoggers = append(operationLoggers, events.NewOperationPublisher(publisher, logger, eventPublishTimeout))
	}

	service, err := booking.NewService(handle.store, time.Now, booking.WithOperationLogger(oplog.NewMulti(operationLoggers...)))
	if err != nil {
		return fmt.Errorf("booking service init: %w", err)
	}
	if cfg.SeedCatalog {
		seeded, err := seedCatalog(ctx, service)
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		if seeded > 0 {
			logger.Info("catalog seeded", zap.Int("vehicles", seeded))
		}
	}

	validator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: []byte(cfg.SessionSigningKey),
		Issuer:     cfg.SessionIssuer,
		CookieName: cfg.SessionCookieName,
	})
	if err != nil {
		return fmt.Errorf("session validator: %w", err)
	}

	var limiter *httpapi.RateLimiter
	if cfg.RateLimit.Enabled() {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		defer func() { _ = redisClient.Close() }()
		limiter, err = httpapi.NewRateLimiter(redisClient, httpapi.RateLimitConfig{
			Prefix:         cfg.RateLimit.Prefix,
			Capacity:       cfg.RateLimit.Capacity,
			RefillTokens:   cfg.RateLimit.RefillTokens,
			RefillInterval: cfg.RateLimit.RefillInterval,
		}, logger)
		if err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	authenticator, err := grpcserver.NewAuthenticator(grpcserver.AuthConfig{
		SigningKey: []byte(cfg.SessionSigningKey),
		Issuer:     cfg.SessionIssuer,
		AdminRole:  cfg.AdminRole,
	})
	if err != nil {
		return fmt.Errorf("grpc auth: %w", err)
	}
	listener, err := net.Listen("tcp", cfg.GRPCListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(authenticator.UnaryInterceptor()))
	grpcserver.Register(grpcServer, grpcserver.NewBookingServiceServer(service))
	reporter := grpcserver.NewHealthReporter(grpcServer, handle.probe, cfg.HealthProbeInterval, logger)

	httpConfig := httpapi.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		AdminRole:      cfg.AdminRole,
		RequestTimeout: cfg.RequestTimeout,
	}
	dependencies := httpapi.Dependencies{
		Service:   service,
		Validator: validator,
		Limiter:   limiter,
		Logger:    logger,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return httpapi.Run(groupCtx, httpConfig, dependencies)
	})
	group.Go(func() error {
		return grpcserver.Serve(groupCtx, grpcServer, listener, logger)
	})
	group.Go(func() error {
		reporter.Watch(groupCtx)
		return nil
	})
	err = group.Wait()
	logger.Info("shutdown complete")
	return err
}

func openPublisher(cfg config.Events, logger *zap.Logger) (events.Publisher, error) {
	switch cfg.Broker {
	case config.BrokerAMQP:
		return events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue)
	case config.BrokerKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	}
	return nil, nil
}
