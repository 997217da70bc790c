package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	DefaultCurrency string

	PaystackSecretKey          string
	PaystackBaseURL            string
	PaystackTimeout            time.Duration
	PaystackVerifyAfterWebhook bool

	NexusBaseURL  string
	NexusUsername string
	NexusPassword string

	RelayMode           string
	RelayMaxAttempts    int
	RelayMaxFaults      int
	RelayAttemptTimeout time.Duration
	RelayRetryDelay     time.Duration
	RelayPollInterval   time.Duration
	RelayBatchSize      int

	RedisAddr          string
	RedisPassword      string
	PeerPushRatePerSec float64
	PeerPushBurst      int

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

const (
	RelayModeInline = "inline"
	RelayModeQueue  = "queue"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "payrelay"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		DefaultCurrency: strings.ToUpper(getenv("DEFAULT_CURRENCY", "NGN")),

		PaystackSecretKey:          strings.TrimSpace(getenv("PAYSTACK_SECRET_KEY", "")),
		PaystackBaseURL:            strings.TrimRight(getenv("PAYSTACK_BASE_URL", "https://api.paystack.co"), "/"),
		PaystackTimeout:            getenvDuration("PAYSTACK_TIMEOUT", 15*time.Second),
		PaystackVerifyAfterWebhook: getenvBool("PAYSTACK_VERIFY_AFTER_WEBHOOK", false),

		NexusBaseURL:  strings.TrimRight(getenv("NEXUS_API_URL", ""), "/"),
		NexusUsername: strings.TrimSpace(getenv("NEXUS_API_USERNAME", "")),
		NexusPassword: strings.TrimSpace(getenv("NEXUS_API_PASSWORD", "")),

		RelayMode:           normalizeRelayMode(getenv("RELAY_MODE", RelayModeInline)),
		RelayMaxAttempts:    getenvInt("RELAY_MAX_ATTEMPTS", 3),
		RelayMaxFaults:      getenvInt("RELAY_MAX_FAULTS", 2),
		RelayAttemptTimeout: getenvDuration("RELAY_ATTEMPT_TIMEOUT", 30*time.Second),
		RelayRetryDelay:     getenvDuration("RELAY_RETRY_DELAY", 2*time.Second),
		RelayPollInterval:   getenvDuration("RELAY_POLL_INTERVAL", 5*time.Second),
		RelayBatchSize:      getenvInt("RELAY_BATCH_SIZE", 20),

		RedisAddr:          strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:      getenv("REDIS_PASSWORD", ""),
		PeerPushRatePerSec: getenvFloat("PEER_PUSH_RATE_PER_SEC", 10),
		PeerPushBurst:      getenvInt("PEER_PUSH_BURST", 20),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "payrelay"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
	}

	return cfg
}

func normalizeRelayMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case RelayModeQueue:
		return RelayModeQueue
	default:
		return RelayModeInline
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
