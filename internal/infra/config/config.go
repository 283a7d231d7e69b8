package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"

	ProviderSandbox = "sandbox"
	ProviderChapa   = "chapa"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string
	HTTPAddr string

	StoreDriver string
	MongoURI    string
	MongoDB     string
	PostgresDSN string
	RedisAddr   string

	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaCallbackTopic string
	KafkaGroupID       string

	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration

	PaymentProvider     string
	SandboxSettle       string
	ChapaBaseURL        string
	ChapaSecretKey      string
	ChapaCallbackURL    string
	ChapaReturnURL      string
	PaymentCurrency     string
	GatewayTimeout      time.Duration
	GatewayMaxFailures  int
	GatewayResetTimeout time.Duration
	CancelOnFailure     bool

	BookingPendingTTL  time.Duration
	CancellationCutoff time.Duration
	SweepInterval      time.Duration
	ListingsFixtures   string
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getEnv("MONGO_DB", "staybook"),
		PostgresDSN:        os.Getenv("POSTGRES_DSN"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		KafkaTopicPrefix:   getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaCallbackTopic: getEnv("KAFKA_CALLBACK_TOPIC", ""),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "staybook-callbacks"),
		PaymentProvider:    strings.ToLower(getEnv("PAYMENT_PROVIDER", ProviderSandbox)),
		SandboxSettle:      strings.ToLower(getEnv("SANDBOX_SETTLE", "pending")),
		ChapaBaseURL:       getEnv("CHAPA_BASE_URL", "https://api.chapa.co"),
		ChapaSecretKey:     os.Getenv("CHAPA_SECRET_KEY"),
		ChapaCallbackURL:   os.Getenv("CHAPA_CALLBACK_URL"),
		ChapaReturnURL:     os.Getenv("CHAPA_RETURN_URL"),
		PaymentCurrency:    strings.ToUpper(getEnv("PAYMENT_CURRENCY", "ETB")),
		ListingsFixtures:   os.Getenv("LISTINGS_FIXTURES"),
	}
	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))

	durations := []struct {
		key    string
		def    time.Duration
		target *time.Duration
	}{
		{"IDEMP_TTL", 168 * time.Hour, &cfg.IdempotencyTTL},
		{"OUTBOX_POLL_INTERVAL", 500 * time.Millisecond, &cfg.OutboxPollInterval},
		{"GATEWAY_TIMEOUT", 10 * time.Second, &cfg.GatewayTimeout},
		{"GATEWAY_RESET_TIMEOUT", 30 * time.Second, &cfg.GatewayResetTimeout},
		{"BOOKING_PENDING_TTL", 30 * time.Minute, &cfg.BookingPendingTTL},
		{"CANCELLATION_CUTOFF", 0, &cfg.CancellationCutoff},
		{"SWEEP_INTERVAL", time.Minute, &cfg.SweepInterval},
	}
	for _, d := range durations {
		v, err := parseDurationEnv(d.key, d.def)
		if err != nil {
			return Config{}, err
		}
		*d.target = v
	}

	maxFailures, err := parseIntEnv("GATEWAY_MAX_FAILURES", 5)
	if err != nil {
		return Config{}, err
	}
	cfg.GatewayMaxFailures = maxFailures

	cancelOnFailure, err := parseBoolEnv("CANCEL_ON_PAYMENT_FAILURE", true)
	if err != nil {
		return Config{}, err
	}
	cfg.CancelOnFailure = cancelOnFailure

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for STORE_DRIVER=%s", c.StoreDriver)
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for STORE_DRIVER=%s", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.PaymentProvider {
	case ProviderSandbox:
		switch c.SandboxSettle {
		case "pending", "success", "failed":
		default:
			return fmt.Errorf("invalid SANDBOX_SETTLE %q", c.SandboxSettle)
		}
	case ProviderChapa:
		if c.ChapaSecretKey == "" {
			return fmt.Errorf("CHAPA_SECRET_KEY is required for PAYMENT_PROVIDER=%s", c.PaymentProvider)
		}
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.PaymentProvider)
	}
	if len(c.PaymentCurrency) != 3 {
		return fmt.Errorf("invalid PAYMENT_CURRENCY %q", c.PaymentCurrency)
	}
	if c.KafkaCallbackTopic != "" && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_CALLBACK_TOPIC is set")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return v, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
