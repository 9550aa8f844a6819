package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Port              string
	TotalSpaces       int
	CapacityThreshold float64

	Store       string
	DatabaseURL string
	SQLitePath  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret         string
	AdminEmail        string
	AdminPasswordHash string
	TokenTTL          time.Duration

	RateLimitRPS      float64
	RateLimitBurst    int
	TrustForwardedFor bool

	OccupancyReportSchedule string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	Timezone          string

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// LoadDotEnv reads .env files into the process environment. A missing file is not an error.
func LoadDotEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// Flags declares every setting as a CLI flag bound to its environment variable.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "port", Value: "8080", EnvVars: []string{"PORT"}},
		&cli.IntFlag{Name: "total-spaces", Value: 100, EnvVars: []string{"TOTAL_SPACES"}},
		&cli.Float64Flag{Name: "capacity-threshold", Value: 0.8, EnvVars: []string{"CAPACITY_THRESHOLD"}},
		&cli.StringFlag{Name: "store", Value: StoreMemory, Usage: "memory, postgres or sqlite", EnvVars: []string{"STORE"}},
		&cli.StringFlag{Name: "database-url", EnvVars: []string{"DATABASE_URL"}},
		&cli.StringFlag{Name: "sqlite-path", Value: "data/parking.db", EnvVars: []string{"SQLITE_PATH"}},
		&cli.StringFlag{Name: "redis-addr", Usage: "enables Redis-backed admission stats", EnvVars: []string{"REDIS_ADDR"}},
		&cli.StringFlag{Name: "redis-password", EnvVars: []string{"REDIS_PASSWORD"}},
		&cli.IntFlag{Name: "redis-db", EnvVars: []string{"REDIS_DB"}},
		&cli.StringFlag{Name: "jwt-secret", EnvVars: []string{"JWT_SECRET"}},
		&cli.StringFlag{Name: "admin-email", EnvVars: []string{"ADMIN_EMAIL"}},
		&cli.StringFlag{Name: "admin-password-hash", EnvVars: []string{"ADMIN_PASSWORD_HASH"}},
		&cli.DurationFlag{Name: "token-ttl", Value: time.Hour, EnvVars: []string{"TOKEN_TTL"}},
		&cli.Float64Flag{Name: "rate-limit-rps", Value: 5, EnvVars: []string{"RATE_LIMIT_RPS"}},
		&cli.IntFlag{Name: "rate-limit-burst", Value: 10, EnvVars: []string{"RATE_LIMIT_BURST"}},
		&cli.BoolFlag{Name: "trust-forwarded-for", Usage: "key rate limits on X-Forwarded-For (behind a trusted proxy only)", EnvVars: []string{"TRUST_FORWARDED_FOR"}},
		&cli.StringFlag{Name: "occupancy-report-schedule", Value: "@every 5m", EnvVars: []string{"OCCUPANCY_REPORT_SCHEDULE"}},
		&cli.StringFlag{Name: "sendgrid-api-key", EnvVars: []string{"SENDGRID_API_KEY"}},
		&cli.StringFlag{Name: "sendgrid-from-email", EnvVars: []string{"SENDGRID_FROM_EMAIL"}},
		&cli.StringFlag{Name: "sendgrid-from-name", EnvVars: []string{"SENDGRID_FROM_NAME"}},
		&cli.StringFlag{Name: "twilio-account-sid", EnvVars: []string{"TWILIO_ACCOUNT_SID"}},
		&cli.StringFlag{Name: "twilio-auth-token", EnvVars: []string{"TWILIO_AUTH_TOKEN"}},
		&cli.StringFlag{Name: "twilio-from-number", EnvVars: []string{"TWILIO_FROM_NUMBER"}},
		&cli.StringFlag{Name: "timezone", Value: "UTC", Usage: "zone used to format times in notifications", EnvVars: []string{"TIMEZONE"}},
		&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"LOG_LEVEL"}},
		&cli.StringFlag{Name: "log-format", Value: "text", EnvVars: []string{"LOG_FORMAT"}},
		&cli.DurationFlag{Name: "shutdown-timeout", Value: 10 * time.Second, EnvVars: []string{"SHUTDOWN_TIMEOUT"}},
	}
}

func FromContext(c *cli.Context) (*Config, error) {
	cfg := &Config{
		Port:                    c.String("port"),
		TotalSpaces:             c.Int("total-spaces"),
		CapacityThreshold:       c.Float64("capacity-threshold"),
		Store:                   strings.ToLower(strings.TrimSpace(c.String("store"))),
		DatabaseURL:             c.String("database-url"),
		SQLitePath:              c.String("sqlite-path"),
		RedisAddr:               c.String("redis-addr"),
		RedisPassword:           c.String("redis-password"),
		RedisDB:                 c.Int("redis-db"),
		JWTSecret:               c.String("jwt-secret"),
		AdminEmail:              c.String("admin-email"),
		AdminPasswordHash:       c.String("admin-password-hash"),
		TokenTTL:                c.Duration("token-ttl"),
		RateLimitRPS:            c.Float64("rate-limit-rps"),
		RateLimitBurst:          c.Int("rate-limit-burst"),
		TrustForwardedFor:       c.Bool("trust-forwarded-for"),
		OccupancyReportSchedule: c.String("occupancy-report-schedule"),
		SendGridAPIKey:          c.String("sendgrid-api-key"),
		SendGridFromEmail:       c.String("sendgrid-from-email"),
		SendGridFromName:        c.String("sendgrid-from-name"),
		TwilioAccountSID:        c.String("twilio-account-sid"),
		TwilioAuthToken:         c.String("twilio-auth-token"),
		TwilioFromNumber:        c.String("twilio-from-number"),
		Timezone:                c.String("timezone"),
		LogLevel:                c.String("log-level"),
		LogFormat:               c.String("log-format"),
		ShutdownTimeout:         c.Duration("shutdown-timeout"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.TotalSpaces <= 0 {
		errs = append(errs, fmt.Errorf("TOTAL_SPACES must be positive, got %d", c.TotalSpaces))
	}
	if c.CapacityThreshold <= 0 || c.CapacityThreshold > 1 {
		errs = append(errs, fmt.Errorf("CAPACITY_THRESHOLD must be in (0, 1], got %v", c.CapacityThreshold))
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL not set"))
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE %q", c.Store))
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, errors.New("rate limit settings cannot be negative"))
	} else if c.RateLimitRPS > 0 && c.RateLimitBurst == 0 {
		errs = append(errs, errors.New("RATE_LIMIT_BURST must be positive when RATE_LIMIT_RPS is set"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err))
	}
	return errors.Join(errs...)
}

func (c *Config) EmailEnabled() bool {
	return c.SendGridAPIKey != "" && c.SendGridFromEmail != ""
}

func (c *Config) SMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
