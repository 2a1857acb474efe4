package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StrategyREST     = "rest"
	StrategyDocstore = "docstore"

	SyncRemote = "remote"
	SyncLocal  = "local"

	StateMemory   = "memory"
	StateRedis    = "redis"
	StatePostgres = "postgres"
)

var (
	ErrMissingJWTSecret = errors.New("JWT_SECRET environment variable is required")
	ErrShortJWTSecret   = errors.New("JWT_SECRET must be at least 32 characters long")
)

// Config is the storefront's runtime configuration.
type Config struct {
	Addr     string
	LogLevel string
	// RequestTimeout bounds each HTTP request, backend calls included. Zero
	// leaves requests unbounded.
	RequestTimeout time.Duration

	BackendURL     string
	BackendTimeout time.Duration // zero means requests only end with their context

	CartStrategy          string
	CartSync              string
	RollbackOnSyncFailure bool

	DynamoTable    string
	DynamoEndpoint string
	AWSRegion      string

	StateStore  string
	RedisURL    string
	StateTTL    time.Duration
	DatabaseURL string

	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	ConfirmationDelay time.Duration
	PriceLocale       string

	SMTPHost string
	SMTPPort string
	SMTPFrom string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:     getEnv("ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RequestTimeout: getDuration("REQUEST_TIMEOUT", 0),

		BackendURL:     getEnv("BACKEND_URL", "http://localhost:5000/api"),
		BackendTimeout: getDuration("BACKEND_TIMEOUT", 0),

		CartStrategy:          getEnv("CART_STRATEGY", StrategyREST),
		CartSync:              getEnv("CART_SYNC", SyncRemote),
		RollbackOnSyncFailure: getBool("CART_ROLLBACK_ON_SYNC_FAILURE", false),

		DynamoTable:    getEnv("DYNAMO_TABLE", "technest-documents"),
		DynamoEndpoint: os.Getenv("DYNAMO_ENDPOINT"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),

		StateStore:  getEnv("STATE_STORE", StateMemory),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		StateTTL:    getDuration("STATE_TTL", 30*24*time.Hour),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "storefront-events"),

		JWTSecret:          os.Getenv("JWT_SECRET"),
		AccessTokenExpiry:  getDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
		RefreshTokenExpiry: getDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),

		ConfirmationDelay: getDuration("CONFIRMATION_DELAY", 2*time.Second),
		PriceLocale:       getEnv("PRICE_LOCALE", "en-US"),

		SMTPHost: getEnv("SMTP_HOST", "localhost"),
		SMTPPort: getEnv("SMTP_PORT", "1025"),
		SMTPFrom: getEnv("SMTP_FROM", "orders@technest.example"),
	}
}

// Validate reports configuration the storefront cannot start with.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if len(c.JWTSecret) < 32 {
		return ErrShortJWTSecret
	}
	switch c.CartStrategy {
	case StrategyREST, StrategyDocstore:
	default:
		return fmt.Errorf("unknown CART_STRATEGY %q", c.CartStrategy)
	}
	switch c.CartSync {
	case SyncRemote, SyncLocal:
	default:
		return fmt.Errorf("unknown CART_SYNC %q", c.CartSync)
	}
	switch c.StateStore {
	case StateMemory, StateRedis:
	case StatePostgres:
		if c.DatabaseURL == "" {
			return errors.New("STATE_STORE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown STATE_STORE %q", c.StateStore)
	}
	if c.BackendURL == "" {
		return errors.New("BACKEND_URL is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
