package config

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/cast"
)

// Config holds all configuration values
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Checkout   CheckoutConfig
	Aggregator AggregatorConfig
	Settlement SettlementConfig
	Timeouts   TimeoutConfig
	Recovery   RecoveryConfig
	ChainRPC   map[uint64]string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Env             string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL            string
	PASSWORD       string
	IdempotencyTTL time.Duration
	AttemptLockTTL time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret       string
	AccessExpiry time.Duration
}

// CheckoutConfig holds the checkout signer and settlement target
type CheckoutConfig struct {
	PrivateKey        string
	RouterAddress     string
	SettlementChainID uint64
	SettlementToken   string
}

// AggregatorConfig holds the LI.FI API settings
type AggregatorConfig struct {
	BaseURL    string
	APIKey     string
	Integrator string
	Slippage   float64
}

// SettlementConfig holds the settlement write API location. An empty URL
// records settlements in-process.
type SettlementConfig struct {
	APIURL string
}

// TimeoutConfig bounds every network call of a payment attempt
type TimeoutConfig struct {
	ChainSwitch time.Duration
	Aggregator  time.Duration
	Price       time.Duration
	Signer      time.Duration
	Receipt     time.Duration
	Settlement  time.Duration
	Attempt     time.Duration
}

// RecoveryConfig holds the settlement recovery job settings
type RecoveryConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// chainIDs with RPC overrides read from RPC_URL_<chainId>
var rpcOverrideChains = []uint64{1, 10, 137, 8453, 42161}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("SERVER_ENV", "development"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "swifty"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:            getEnv("REDIS_URL", "redis://localhost:6379"),
			PASSWORD:       getEnv("REDIS_PASSWORD", ""),
			IdempotencyTTL: getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
			AttemptLockTTL: getEnvAsDuration("ATTEMPT_LOCK_TTL", 10*time.Minute),
		},
		JWT: JWTConfig{
			Secret:       getEnv("JWT_SECRET", "change-this-in-production"),
			AccessExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
		},
		Checkout: CheckoutConfig{
			PrivateKey:        getEnv("CHECKOUT_PRIVATE_KEY", getEnv("PRIVATE_KEY", "")),
			RouterAddress:     getEnv("LIFI_DIAMOND_ADDRESS", "0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE"),
			SettlementChainID: getEnvAsUint64("SETTLEMENT_CHAIN_ID", 8453),
			SettlementToken:   getEnv("SETTLEMENT_TOKEN_ADDRESS", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		},
		Aggregator: AggregatorConfig{
			BaseURL:    getEnv("LIFI_API_URL", "https://li.quest"),
			APIKey:     getEnv("LIFI_API_KEY", ""),
			Integrator: getEnv("LIFI_INTEGRATOR", "swifty"),
			Slippage:   getEnvAsFloat("LIFI_SLIPPAGE", 0.005),
		},
		Settlement: SettlementConfig{
			APIURL: getEnv("SETTLEMENT_API_URL", ""),
		},
		Timeouts: TimeoutConfig{
			ChainSwitch: getEnvAsDuration("ATTEMPT_CHAIN_SWITCH_TIMEOUT", 30*time.Second),
			Aggregator:  getEnvAsDuration("ATTEMPT_AGGREGATOR_TIMEOUT", 20*time.Second),
			Price:       getEnvAsDuration("ATTEMPT_PRICE_TIMEOUT", 10*time.Second),
			Signer:      getEnvAsDuration("ATTEMPT_SIGNER_TIMEOUT", 60*time.Second),
			Receipt:     getEnvAsDuration("ATTEMPT_RECEIPT_TIMEOUT", 3*time.Minute),
			Settlement:  getEnvAsDuration("ATTEMPT_SETTLEMENT_TIMEOUT", 15*time.Second),
			Attempt:     getEnvAsDuration("ATTEMPT_TOTAL_TIMEOUT", 10*time.Minute),
		},
		Recovery: RecoveryConfig{
			Interval:   getEnvAsDuration("SETTLEMENT_RECOVERY_INTERVAL", time.Minute),
			BatchSize:  getEnvAsInt("SETTLEMENT_RECOVERY_BATCH_SIZE", 20),
			MaxRetries: getEnvAsInt("SETTLEMENT_RECOVERY_MAX_RETRIES", 10),
		},
		ChainRPC: loadChainRPC(),
	}
}

func loadChainRPC() map[uint64]string {
	out := make(map[uint64]string)
	for _, id := range rpcOverrideChains {
		if url := os.Getenv("RPC_URL_" + strconv.FormatUint(id, 10)); url != "" {
			out[id] = url
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if v, err := cast.ToUint64E(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := cast.ToFloat64E(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
