// Package config holds the runtime settings of seatd.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Event broker kinds.
const (
	BrokerNone  = "none"
	BrokerAMQP  = "amqp"
	BrokerKafka = "kafka"
)

const (
	defaultDatabaseURL    = "memory"
	defaultListenAddr     = ":8080"
	defaultGRPCListenAddr = "127.0.0.1:7000"
	defaultAllowedOrigin  = "http://localhost:8000"
	defaultAdminRole      = "admin"
	defaultSessionIssuer  = "tauth"
	defaultSessionCookie  = "app_session"
	defaultRequestTimeout = 5 * time.Second
	defaultProbeInterval  = 5 * time.Second
	defaultRatePrefix     = "seatd:ratelimit"
	defaultAMQPQueue      = "seatledger.events"
	defaultKafkaTopic     = "seatledger.events"
)

// Config aggregates runtime settings for seatd.
type Config struct {
	DatabaseURL         string
	ListenAddr          string
	GRPCListenAddr      string
	AllowedOrigins      []string
	AdminRole           string
	RequestTimeout      time.Duration
	HealthProbeInterval time.Duration
	SessionSigningKey   string
	SessionIssuer       string
	SessionCookieName   string
	RateLimit           RateLimit
	Events              Events
	SeedCatalog         bool
}

// RateLimit configures the Redis token bucket. An empty RedisAddr disables it.
type RateLimit struct {
	RedisAddr      string
	Prefix         string
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
}

// Enabled reports whether requests are rate limited.
func (rateLimit RateLimit) Enabled() bool {
	return strings.TrimSpace(rateLimit.RedisAddr) != ""
}

// Events selects where domain events are published.
type Events struct {
	Broker       string
	AMQPURL      string
	AMQPQueue    string
	KafkaBrokers []string
	KafkaTopic   string
}

// Validate applies defaults and ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	cfg.GRPCListenAddr = defaultIfEmpty(cfg.GRPCListenAddr, defaultGRPCListenAddr)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.AdminRole = defaultIfEmpty(cfg.AdminRole, defaultAdminRole)
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.HealthProbeInterval <= 0 {
		cfg.HealthProbeInterval = defaultProbeInterval
	}
	cfg.SessionIssuer = defaultIfEmpty(cfg.SessionIssuer, defaultSessionIssuer)
	cfg.SessionCookieName = defaultIfEmpty(cfg.SessionCookieName, defaultSessionCookie)
	if len(cfg.SessionSigningKey) == 0 {
		return fmt.Errorf("jwt signing key is required")
	}
	if err := cfg.RateLimit.validate(); err != nil {
		return err
	}
	return cfg.Events.validate()
}

func (rateLimit *RateLimit) validate() error {
	rateLimit.Prefix = defaultIfEmpty(rateLimit.Prefix, defaultRatePrefix)
	if !rateLimit.Enabled() {
		return nil
	}
	if rateLimit.Capacity <= 0 {
		return fmt.Errorf("rate limit capacity must be positive")
	}
	if rateLimit.RefillTokens < 0 {
		return fmt.Errorf("rate limit refill tokens must not be negative")
	}
	return nil
}

func (events *Events) validate() error {
	events.Broker = strings.ToLower(defaultIfEmpty(events.Broker, BrokerNone))
	switch events.Broker {
	case BrokerNone:
		return nil
	case BrokerAMQP:
		events.AMQPQueue = defaultIfEmpty(events.AMQPQueue, defaultAMQPQueue)
		if strings.TrimSpace(events.AMQPURL) == "" {
			return fmt.Errorf("amqp url is required for the amqp broker")
		}
		return nil
	case BrokerKafka:
		events.KafkaTopic = defaultIfEmpty(events.KafkaTopic, defaultKafkaTopic)
		if len(events.KafkaBrokers) == 0 {
			return fmt.Errorf("kafka brokers are required for the kafka broker")
		}
		return nil
	}
	return fmt.Errorf("unsupported event broker %q", events.Broker)
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

// ParseList splits a comma-delimited value into trimmed, non-empty parts.
// It serves CORS origins and Kafka broker lists.
func ParseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
