package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Password PasswordConfig
	Email    EmailConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string // CORS allowed origins
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ChannelBinding string // "require" for Neon DB, empty for local
	// Upper bound for a single credential store call
	StoreTimeout time.Duration
}

type RedisConfig struct {
	Enabled         bool
	Host            string
	Port            string
	Password        string
	DB              int
	ProfileCacheTTL time.Duration
}

type AuthConfig struct {
	// PASETO symmetric key (must be 32 bytes for v4.local)
	PasetoKey []byte
	// Lifetime of issued tokens. TOKEN_TTL is read in seconds.
	TokenTTL time.Duration
	Issuer   string
}

type PasswordConfig struct {
	Algorithm         string // argon2id or bcrypt
	// Argon2 settings are read as ints and range checked in Validate
	Argon2MemoryKiB   int
	Argon2Iterations  int
	Argon2Parallelism int
	BcryptCost        int
	MaxConcurrent     int
}

type EmailConfig struct {
	SMTPHost      string
	SMTPPort      string
	SMTPUser      string
	SMTPPassword  string
	FromAddress   string
	NotifyTimeout time.Duration
}

// DefaultTokenTTL mirrors the 36000 second lifetime of the tokens issued by the
// previous deployment.
const DefaultTokenTTL = 36000 * time.Second

// Load reads configuration from environment variables
// Call godotenv.Load() before this if using .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("APP_ENV", "dev"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "credentials"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			ChannelBinding: getEnv("DB_CHANNEL_BINDING", ""),
			StoreTimeout:   getDurationEnv("DB_STORE_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Enabled:         getBoolEnv("REDIS_ENABLED", true),
			Host:            getEnv("REDIS_HOST", "localhost"),
			Port:            getEnv("REDIS_PORT", "6379"),
			Password:        getEnv("REDIS_PASSWORD", ""),
			DB:              getIntEnv("REDIS_DB", 0),
			ProfileCacheTTL: getDurationEnv("PROFILE_CACHE_TTL", 5*time.Minute),
		},
		Auth: AuthConfig{
			PasetoKey: []byte(getEnv("PASETO_KEY", "")),
			TokenTTL:  getDurationEnv("TOKEN_TTL", DefaultTokenTTL),
			Issuer:    getEnv("TOKEN_ISSUER", "credentials-api"),
		},
		Password: PasswordConfig{
			Algorithm:         getEnv("PASSWORD_ALGORITHM", "argon2id"),
			Argon2MemoryKiB:   getIntEnv("ARGON2_MEMORY_KIB", 64*1024),
			Argon2Iterations:  getIntEnv("ARGON2_ITERATIONS", 3),
			Argon2Parallelism: getIntEnv("ARGON2_PARALLELISM", 4),
			BcryptCost:        getIntEnv("BCRYPT_COST", 10),
			MaxConcurrent:     getIntEnv("PASSWORD_MAX_CONCURRENT", 0),
		},
		Email: EmailConfig{
			SMTPHost:      getEnv("SMTP_HOST", ""),
			SMTPPort:      getEnv("SMTP_PORT", "587"),
			SMTPUser:      getEnv("SMTP_USER", ""),
			SMTPPassword:  getEnv("SMTP_PASS", ""),
			FromAddress:   getEnv("SMTP_FROM", ""),
			NotifyTimeout: getDurationEnv("NOTIFY_TIMEOUT", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values that would otherwise fail late, at the first request.
func (c *Config) Validate() error {
	// Validate PASETO key length (must be 32 bytes for v4.local)
	if len(c.Auth.PasetoKey) != 32 {
		return fmt.Errorf("PASETO_KEY must be exactly 32 bytes, got %d", len(c.Auth.PasetoKey))
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}

	switch c.Password.Algorithm {
	case "argon2id", "bcrypt":
	default:
		return fmt.Errorf("PASSWORD_ALGORITHM must be argon2id or bcrypt, got %q", c.Password.Algorithm)
	}

	return c.Password.validateCost()
}

// validateCost rejects work factors the hashing primitives refuse or panic on.
// Both algorithms are checked since stored digests of either kind are verified.
func (c *PasswordConfig) validateCost() error {
	p := c.Argon2Parallelism
	if p < 1 || p > math.MaxUint8 {
		return fmt.Errorf("ARGON2_PARALLELISM must be between 1 and %d, got %d", math.MaxUint8, p)
	}
	if c.Argon2Iterations < 1 || int64(c.Argon2Iterations) > math.MaxUint32 {
		return fmt.Errorf("ARGON2_ITERATIONS must be at least 1, got %d", c.Argon2Iterations)
	}
	if c.Argon2MemoryKiB < 8*p || int64(c.Argon2MemoryKiB) > math.MaxUint32 {
		return fmt.Errorf("ARGON2_MEMORY_KIB must be at least 8 x ARGON2_PARALLELISM (%d), got %d", 8*p, c.Argon2MemoryKiB)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	// Add channel_binding if configured (required for Neon DB)
	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Split by comma and trim whitespace
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
