package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

// Config represents application configuration
type Config struct {
	App        AppConfig        `envconfig:"APP"`
	Database   DatabaseConfig   `envconfig:"DB"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	ClickHouse ClickHouseConfig `envconfig:"CLICKHOUSE"`
	DeepSeek   DeepSeekConfig   `envconfig:"DEEPSEEK"`
	Reddit     RedditConfig     `envconfig:"REDDIT"`
	Pipeline   PipelineConfig   `envconfig:"PIPELINE"`
	Telegram   TelegramConfig   `envconfig:"TELEGRAM"`
	Sentry     SentryConfig     `envconfig:"SENTRY"`
	Logging    LoggingConfig    `envconfig:"LOG"`
}

// AppConfig represents process-level settings
type AppConfig struct {
	Env        string `envconfig:"ENV" default:"development"`
	HTTPPort   string `envconfig:"HTTP_PORT" default:"8000"`
	HealthPort string `envconfig:"HEALTH_PORT" default:"8081"`
}

// DatabaseConfig represents database connection parameters
type DatabaseConfig struct {
	Host           string `envconfig:"HOST" default:"localhost"`
	Port           int    `envconfig:"PORT" default:"5432"`
	Name           string `envconfig:"NAME" default:"marketmood"`
	User           string `envconfig:"USER" default:"marketmood"`
	Password       string `envconfig:"PASSWORD"`
	SSLMode        string `envconfig:"SSLMODE" default:"disable"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH"` // empty = embedded migrations

	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"5m"`
}

// RedisConfig represents redis connection parameters
type RedisConfig struct {
	Enabled  bool          `envconfig:"ENABLED" default:"true"`
	Host     string        `envconfig:"HOST" default:"localhost"`
	Port     int           `envconfig:"PORT" default:"6379"`
	Password string        `envconfig:"PASSWORD"`
	DB       int           `envconfig:"DB" default:"0"`
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"10m"`

	// LockAddrs are extra host:port instances for a redlock quorum; empty
	// means the cache instance alone
	LockAddrs []string `envconfig:"LOCK_ADDRS"`
}

// ClickHouseConfig represents mention history store parameters
type ClickHouseConfig struct {
	Enabled  bool          `envconfig:"ENABLED" default:"false"`
	DSN      string        `envconfig:"DSN" default:"clickhouse://localhost:9000/marketmood"`
	MaxBatch int           `envconfig:"MAX_BATCH" default:"500"`
	MaxWait  time.Duration `envconfig:"MAX_WAIT" default:"5s"`
}

// DeepSeekConfig represents the structured-completion provider
type DeepSeekConfig struct {
	APIKey      string        `envconfig:"API_KEY"`
	BaseURL     string        `envconfig:"BASE_URL" default:"https://api.deepseek.com/v1/"`
	Model       string        `envconfig:"MODEL" default:"deepseek-chat"`
	Temperature float64       `envconfig:"TEMPERATURE" default:"0.3"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"25s"`
}

// RedditConfig represents corpus collection parameters
type RedditConfig struct {
	Enabled         bool          `envconfig:"ENABLED" default:"true"`
	ClientID        string        `envconfig:"CLIENT_ID"`
	ClientSecret    string        `envconfig:"CLIENT_SECRET"`
	UserAgent       string        `envconfig:"USER_AGENT" default:"marketmood/1.0"`
	Subreddits      []string      `envconfig:"SUBREDDITS" default:"wallstreetbets,investing,stocks,stockmarket,options"`
	PostLimit       int           `envconfig:"POST_LIMIT" default:"100"`
	CommentLimit    int           `envconfig:"COMMENT_LIMIT" default:"100"`
	RequestsPerSec  float64       `envconfig:"REQUESTS_PER_SEC" default:"1"`
	CollectInterval time.Duration `envconfig:"COLLECT_INTERVAL" default:"1h"`
}

// PipelineConfig represents daily analysis pipeline parameters
type PipelineConfig struct {
	Schedule       string        `envconfig:"SCHEDULE" default:"0 0 * * *"`
	Window         time.Duration `envconfig:"WINDOW" default:"24h"`
	MaxWords       int           `envconfig:"MAX_WORDS" default:"100"`
	Workers        int           `envconfig:"WORKERS" default:"8"`
	MaxPromptChars int           `envconfig:"MAX_PROMPT_CHARS" default:"0"` // 0 = unlimited
	LockTTL        time.Duration `envconfig:"LOCK_TTL" default:"10m"`
	// MaxRunAge marks /health degraded when no run succeeded for this long
	MaxRunAge time.Duration `envconfig:"MAX_RUN_AGE" default:"26h"`
}

// TelegramConfig represents run notification parameters
type TelegramConfig struct {
	BotToken string `envconfig:"BOT_TOKEN"`
	ChatID   int64  `envconfig:"CHAT_ID"`
}

// SentryConfig represents error tracking parameters
type SentryConfig struct {
	DSN string `envconfig:"DSN"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"console"` // console | json
	File   string `envconfig:"FILE"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg, err := LoadUnvalidated()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadUnvalidated reads the environment without cross-field checks, for
// commands that only touch the database
func LoadUnvalidated() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.DeepSeek.APIKey == "" {
		return fmt.Errorf("DEEPSEEK_API_KEY is required")
	}
	if c.DeepSeek.Temperature < 0 || c.DeepSeek.Temperature > 2 {
		return fmt.Errorf("deepseek temperature must be between 0 and 2")
	}
	if c.DeepSeek.Timeout <= 0 {
		return fmt.Errorf("deepseek timeout must be positive")
	}

	if c.Pipeline.Window <= 0 {
		return fmt.Errorf("pipeline window must be positive")
	}
	if c.Pipeline.MaxWords < 1 {
		return fmt.Errorf("pipeline max_words must be at least 1")
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline workers must be at least 1")
	}
	if _, err := cron.ParseStandard(c.Pipeline.Schedule); err != nil {
		return fmt.Errorf("invalid pipeline schedule %q: %w", c.Pipeline.Schedule, err)
	}

	if c.Reddit.Enabled {
		if len(c.Reddit.Subreddits) == 0 {
			return fmt.Errorf("at least one subreddit must be configured")
		}
		if c.Reddit.RequestsPerSec <= 0 {
			return fmt.Errorf("reddit requests_per_sec must be positive")
		}
		if (c.Reddit.ClientID == "") != (c.Reddit.ClientSecret == "") {
			return fmt.Errorf("reddit client id and secret must be set together")
		}
	}

	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram chat_id is required when bot token is set")
	}

	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Addr returns redis host:port
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// UsesOAuth reports whether app-only OAuth credentials are configured
func (c *RedditConfig) UsesOAuth() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// TelegramEnabled reports whether run notifications should be sent
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != ""
}
