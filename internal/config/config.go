package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DB     DBConfig
	MinIO  MinIOConfig
	Redis  RedisConfig
	JWT    JWTConfig
	Server ServerConfig
	Login  LoginPolicy
	CSRF   CSRFConfig
	Audit  AuditConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Enabled   bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type ServerConfig struct {
	Port string
}

// LoginPolicy is the explicit configuration of the login state machine.
// AllowUsernameLogin replaces what used to be an ambient "development
// mode" check: lookup by username is a deliberate deployment decision,
// never an environment-flag branch inside business logic.
type LoginPolicy struct {
	AllowUsernameLogin bool
	LockoutThreshold   int
	LockoutDuration    time.Duration
	TOTPIssuer         string
}

type CSRFConfig struct {
	TokenTTL time.Duration
}

type AuditConfig struct {
	QueueSize      int
	ExportInterval time.Duration
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "ballotbox"),
			Password: getEnv("DB_PASSWORD", "ballotbox_secret"),
			Name:     getEnv("DB_NAME", "ballotbox"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "ballotbox"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "ballotbox_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "ballotbox-audit"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
			Enabled:   getEnvAsBool("MINIO_ENABLED", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", "change-me-in-production"),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 168*time.Hour),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Login: LoginPolicy{
			AllowUsernameLogin: getEnvAsBool("LOGIN_ALLOW_USERNAME", false),
			LockoutThreshold:   getEnvAsInt("LOGIN_LOCKOUT_THRESHOLD", 5),
			LockoutDuration:    getEnvAsDuration("LOGIN_LOCKOUT_DURATION", 15*time.Minute),
			TOTPIssuer:         getEnv("TOTP_ISSUER", "BallotBox"),
		},
		CSRF: CSRFConfig{
			TokenTTL: getEnvAsDuration("CSRF_TOKEN_TTL", 15*time.Minute),
		},
		Audit: AuditConfig{
			QueueSize:      getEnvAsInt("AUDIT_QUEUE_SIZE", 1000),
			ExportInterval: getEnvAsDuration("AUDIT_EXPORT_INTERVAL", 1*time.Hour),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
