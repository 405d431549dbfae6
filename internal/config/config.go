package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	App       AppConfig
	Auth      AuthConfig
	Points    PointsConfig
	RateLimit RateLimitConfig
	NATS      NATSConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver         string `envconfig:"DB_DRIVER" default:"postgres"`
	Host           string `envconfig:"DB_HOST" default:"localhost"`
	Port           string `envconfig:"DB_PORT" default:"5432"`
	User           string `envconfig:"DB_USER" default:"postgres"`
	Password       string `envconfig:"DB_PASSWORD"`
	DBName         string `envconfig:"DB_NAME" default:"ppplay"`
	SSLMode        string `envconfig:"DB_SSLMODE" default:"disable"`
	SQLitePath     string `envconfig:"DB_SQLITE_PATH" default:"ppplay.db"`
	MaxOpenConns   int    `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns   int    `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	MigrateOnStart bool   `envconfig:"DB_MIGRATE_ON_START" default:"true"`
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" default:"8080"`
	FrontendURL     string        `envconfig:"FRONTEND_URL"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"5s"`
	IPRateLimit     float64       `envconfig:"IP_RATE_LIMIT" default:"20"`
	IPRateBurst     int           `envconfig:"IP_RATE_BURST" default:"40"`
}

// AppConfig holds application-wide settings
type AppConfig struct {
	Env      string         `envconfig:"APP_ENV" default:"development"`
	LogLevel string         `envconfig:"LOG_LEVEL" default:"info"`
	Timezone string         `envconfig:"APP_TIMEZONE" default:"Asia/Seoul"`
	Location *time.Location `ignored:"true"`
}

// AuthConfig holds token verification and admin allowlist settings
type AuthConfig struct {
	JWTSecret      string   `envconfig:"JWT_SECRET"`
	AdminEmailsRaw string   `envconfig:"ADMIN_EMAILS" default:"admin@ppplay.com"`
	AdminEmails    []string `ignored:"true"`
}

// PointsConfig holds the point economy constants
type PointsConfig struct {
	StartingBalance     int64 `envconfig:"POINTS_STARTING_BALANCE" default:"100"`
	MarketCreationFee   int64 `envconfig:"POINTS_MARKET_CREATION_FEE" default:"1000"`
	CreatorBonus        int64 `envconfig:"POINTS_CREATOR_BONUS" default:"100"`
	ParticipationReward int64 `envconfig:"POINTS_PARTICIPATION_REWARD" default:"5"`
	AccuracyReward      int64 `envconfig:"POINTS_ACCURACY_REWARD" default:"20"`
	DailyVoteLimit      int   `envconfig:"POINTS_DAILY_VOTE_LIMIT" default:"10"`
	AttendancePoints    int64 `envconfig:"POINTS_ATTENDANCE" default:"100"`
	StreakBonus3        int64 `envconfig:"POINTS_STREAK_BONUS_3" default:"50"`
	StreakBonus7        int64 `envconfig:"POINTS_STREAK_BONUS_7" default:"500"`
}

// RateLimitConfig holds per-action limits
type RateLimitConfig struct {
	Store              string        `envconfig:"RATE_LIMIT_STORE" default:"memory"`
	MarketCreateLimit  int           `envconfig:"RATE_LIMIT_MARKET_CREATE" default:"3"`
	MarketCreateWindow time.Duration `envconfig:"RATE_LIMIT_MARKET_CREATE_WINDOW" default:"1h"`
	CommentLimit       int           `envconfig:"RATE_LIMIT_COMMENT" default:"1"`
	CommentWindow      time.Duration `envconfig:"RATE_LIMIT_COMMENT_WINDOW" default:"10s"`
}

// NATSConfig holds event bus settings. An empty URL disables publishing.
type NATSConfig struct {
	URL    string `envconfig:"NATS_URL"`
	Stream string `envconfig:"NATS_STREAM" default:"PPPLAY_EVENTS"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{}
	sections := []interface{}{
		&config.Database,
		&config.Server,
		&config.App,
		&config.Auth,
		&config.Points,
		&config.RateLimit,
		&config.NATS,
	}
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	config.Auth.AdminEmails = ParseEmailList(config.Auth.AdminEmailsRaw)

	loc, err := time.LoadLocation(config.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", config.App.Timezone, err)
	}
	config.App.Location = loc

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.RateLimit.Store != "memory" && c.RateLimit.Store != "database" {
		return fmt.Errorf("RATE_LIMIT_STORE must be memory or database, got %q", c.RateLimit.Store)
	}

	p := c.Points
	if p.MarketCreationFee <= 0 || p.ParticipationReward < 0 || p.AccuracyReward < 0 ||
		p.CreatorBonus < 0 || p.StartingBalance < 0 || p.AttendancePoints < 0 {
		return fmt.Errorf("point constants must be non-negative and the creation fee positive")
	}
	if p.DailyVoteLimit <= 0 {
		return fmt.Errorf("POINTS_DAILY_VOTE_LIMIT must be > 0")
	}
	if c.RateLimit.MarketCreateLimit <= 0 || c.RateLimit.CommentLimit <= 0 {
		return fmt.Errorf("rate limits must be > 0")
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetDatabaseURL returns the PostgreSQL connection URL used by migrations
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// IsDevelopment reports whether the app runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// ParseEmailList splits a comma-separated list into trimmed, lowercased emails
func ParseEmailList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DefaultPointsConfig returns the stock point economy
func DefaultPointsConfig() PointsConfig {
	return PointsConfig{
		StartingBalance:     100,
		MarketCreationFee:   1000,
		CreatorBonus:        100,
		ParticipationReward: 5,
		AccuracyReward:      20,
		DailyVoteLimit:      10,
		AttendancePoints:    100,
		StreakBonus3:        50,
		StreakBonus7:        500,
	}
}
