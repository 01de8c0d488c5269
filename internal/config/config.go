package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session backends
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Extensions are the PBX destinations the dialogue transfers calls to
type Extensions struct {
	Login        string
	Register     string
	ReceiptMenu  string
	CustomerMenu string
}

// Config holds process configuration loaded from the environment
type Config struct {
	Port        string
	Environment string

	// Storage
	UseMemoryStore         bool
	DBUser                 string
	DBPass                 string
	DBName                 string
	DBHost                 string
	DBPort                 string
	InstanceConnectionName string
	SubscriptionDays       int

	// Sessions
	SessionBackend       string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	SessionLockWait      time.Duration
	SessionLockTTL       time.Duration

	// Dialogue
	MaxAttempts int
	Extensions  Extensions

	// Security
	PBXWebhookToken string
	AdminToken      string

	// Twilio
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
}

// Load reads .env (when present) and the environment
func Load() (*Config, error) {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		for _, path := range []string{".env", "environments/.env.development"} {
			if err := godotenv.Load(path); err == nil {
				log.Printf("📄 Loaded environment from %s", path)
				break
			}
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		UseMemoryStore:         getEnvAsBool("USE_MEMORY_STORE", false),
		DBUser:                 getEnv("DB_USER", "postgres"),
		DBPass:                 getEnv("DB_PASS", ""),
		DBName:                 getEnv("DB_NAME", "pbx_ivr"),
		DBHost:                 getEnv("DB_HOST", "localhost"),
		DBPort:                 getEnv("DB_PORT", "5432"),
		InstanceConnectionName: getEnv("INSTANCE_CONNECTION_NAME", ""),
		SubscriptionDays:       getEnvAsInt("SUBSCRIPTION_DAYS", 365),

		SessionBackend:       strings.ToLower(getEnv("SESSION_BACKEND", SessionBackendMemory)),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvAsInt("REDIS_DB", 0),
		SessionTTL:           getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		SessionSweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		SessionLockWait:      getEnvAsDuration("SESSION_LOCK_WAIT", 3*time.Second),
		SessionLockTTL:       getEnvAsDuration("SESSION_LOCK_TTL", 10*time.Second),

		MaxAttempts: getEnvAsInt("MAX_ATTEMPTS", 4),
		Extensions: Extensions{
			Login:        getEnv("EXT_LOGIN", "1663"),
			Register:     getEnv("EXT_REGISTER", "1664"),
			ReceiptMenu:  getEnv("EXT_RECEIPT_MENU", "1665"),
			CustomerMenu: getEnv("EXT_CUSTOMER_MENU", "1668"),
		},

		PBXWebhookToken: getEnv("PBX_WEBHOOK_TOKEN", ""),
		AdminToken:      getEnv("ADMIN_TOKEN", ""),

		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail at first use
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be positive, got %v", c.SessionSweepInterval)
	}
	if c.SessionLockWait <= 0 {
		return fmt.Errorf("SESSION_LOCK_WAIT must be positive, got %v", c.SessionLockWait)
	}
	if c.SessionLockTTL <= 0 {
		return fmt.Errorf("SESSION_LOCK_TTL must be positive, got %v", c.SessionLockTTL)
	}
	if c.SessionBackend != SessionBackendMemory && c.SessionBackend != SessionBackendRedis {
		return fmt.Errorf("SESSION_BACKEND must be %q or %q, got %q", SessionBackendMemory, SessionBackendRedis, c.SessionBackend)
	}
	return nil
}

// DSN builds the postgres connection string
func (c *Config) DSN() string {
	if c.InstanceConnectionName != "" {
		// Production: Connect via Unix socket
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=disable",
			c.InstanceConnectionName, c.DBUser, c.DBPass, c.DBName)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPass, c.DBName, c.DBPort)
}

// IsProduction reports whether the process runs on Cloud Run
func (c *Config) IsProduction() bool {
	return c.InstanceConnectionName != "" || c.Environment == "production"
}

// TwilioConfigured reports whether SMS notifications can be sent
func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioPhoneNumber != ""
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strValue)
	if err != nil {
		log.Printf("⚠️  Invalid value for %s, using default: %v", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(strValue)
	if err != nil {
		log.Printf("⚠️  Invalid value for %s, using default: %v", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(strValue)
	if err != nil {
		log.Printf("⚠️  Invalid value for %s, using default: %v", key, defaultValue)
		return defaultValue
	}
	return value
}
