package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// DefaultSessionSecret is used when SESSION_SECRET is unset. It is refused in production.
const DefaultSessionSecret = "dev-insecure-session-secret"

// Config holds all configuration for our application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Session  SessionConfig  `mapstructure:"session"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Mail     MailConfig     `mapstructure:"mail"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	Env            string        `mapstructure:"env"`
	CORSOrigin     string        `mapstructure:"cors_origin"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Channel string `mapstructure:"channel"`
}

type SessionConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type AdminConfig struct {
	CredentialSource string `mapstructure:"credential_source"`
	Email            string `mapstructure:"email"`
	Password         string `mapstructure:"password"`
	PasswordHash     string `mapstructure:"password_hash"`
}

type MailConfig struct {
	Driver    string `mapstructure:"driver"`
	From      string `mapstructure:"from"`
	FromName  string `mapstructure:"from_name"`
	AWSRegion string `mapstructure:"aws_region"`
}

type NotifyConfig struct {
	Schedule    string        `mapstructure:"schedule"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BatchSize   int           `mapstructure:"batch_size"`
	Backoff     time.Duration `mapstructure:"backoff"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var envBindings = map[string]string{
	"server.port":                "SERVER_PORT",
	"server.host":                "SERVER_HOST",
	"server.env":                 "ENV",
	"server.cors_origin":         "CORS_ORIGIN",
	"server.read_timeout":        "READ_TIMEOUT",
	"server.write_timeout":       "WRITE_TIMEOUT",
	"server.rate_limit_rps":      "RATE_LIMIT_RPS",
	"server.rate_limit_burst":    "RATE_LIMIT_BURST",
	"database.driver":            "STORE_DRIVER",
	"database.url":               "DATABASE_URL",
	"database.max_open_conns":    "DATABASE_MAX_OPEN_CONNS",
	"database.max_idle_conns":    "DATABASE_MAX_IDLE_CONNS",
	"database.conn_max_lifetime": "DATABASE_CONN_MAX_LIFETIME",
	"database.auto_migrate":      "DATABASE_AUTO_MIGRATE",
	"redis.url":                  "REDIS_URL",
	"redis.channel":              "REDIS_CHANNEL",
	"session.secret":             "SESSION_SECRET",
	"session.ttl":                "SESSION_TTL",
	"admin.credential_source":    "CREDENTIAL_SOURCE",
	"admin.email":                "ADMIN_EMAIL",
	"admin.password":             "ADMIN_PASSWORD",
	"admin.password_hash":        "ADMIN_PASSWORD_HASH",
	"mail.driver":                "MAIL_DRIVER",
	"mail.from":                  "MAIL_FROM",
	"mail.from_name":             "MAIL_FROM_NAME",
	"mail.aws_region":            "AWS_REGION",
	"notify.schedule":            "NOTIFY_SCHEDULE",
	"notify.max_attempts":        "NOTIFY_MAX_ATTEMPTS",
	"notify.batch_size":          "NOTIFY_BATCH_SIZE",
	"notify.backoff":             "NOTIFY_BACKOFF",
	"notify.timeout":             "NOTIFY_TIMEOUT",
	"logging.level":              "LOG_LEVEL",
	"logging.format":             "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.cors_origin", "http://localhost:3000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.rate_limit_rps", 5)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.channel", "applications:changes")
	v.SetDefault("session.secret", "")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("admin.credential_source", "static")
	v.SetDefault("admin.email", "admin@baadaye.com")
	v.SetDefault("admin.password", "admin123")
	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.from", "support@baadaye.com")
	v.SetDefault("mail.from_name", "Baadaye Support")
	v.SetDefault("mail.aws_region", "us-east-1")
	v.SetDefault("notify.schedule", "@every 30s")
	v.SetDefault("notify.max_attempts", 5)
	v.SetDefault("notify.batch_size", 20)
	v.SetDefault("notify.backoff", "1m")
	v.SetDefault("notify.timeout", "30s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	// Don't fail if .env file doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if config.Session.Secret == "" {
		config.Session.Secret = DefaultSessionSecret
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be greater than 0 when RATE_LIMIT_RPS is set")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.Database.Driver)
	}

	if c.IsProduction() && (c.Session.Secret == "" || c.Session.Secret == DefaultSessionSecret) {
		return fmt.Errorf("SESSION_SECRET must be set in production")
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be greater than 0")
	}

	switch c.Admin.CredentialSource {
	case "static":
		if c.Admin.Email == "" || (c.Admin.Password == "" && c.Admin.PasswordHash == "") {
			return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD or ADMIN_PASSWORD_HASH are required")
		}
	case "database":
		if c.Database.Driver != "postgres" {
			return fmt.Errorf("CREDENTIAL_SOURCE=database requires STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("CREDENTIAL_SOURCE must be static or database, got %q", c.Admin.CredentialSource)
	}

	switch c.Mail.Driver {
	case "ses", "log":
	default:
		return fmt.Errorf("MAIL_DRIVER must be ses or log, got %q", c.Mail.Driver)
	}

	if c.Notify.MaxAttempts <= 0 {
		return fmt.Errorf("NOTIFY_MAX_ATTEMPTS must be greater than 0")
	}

	if c.Notify.BatchSize <= 0 {
		return fmt.Errorf("NOTIFY_BATCH_SIZE must be greater than 0")
	}

	// Validate dispatcher schedule
	if _, err := cron.ParseStandard(c.Notify.Schedule); err != nil {
		return fmt.Errorf("NOTIFY_SCHEDULE must be a valid cron spec: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Env)
	return env == "development" || env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Env)
	return env == "production" || env == "prod"
}

// UsesDefaultSecret reports whether sessions are signed with the development fallback.
func (c *Config) UsesDefaultSecret() bool {
	return c.Session.Secret == DefaultSessionSecret
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
