package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Storage    StorageConfig    `mapstructure:"storage"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Session    SessionConfig    `mapstructure:"session"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

type BotConfig struct {
	Token           string  `mapstructure:"token"`
	UpdateTimeout   int     `mapstructure:"update_timeout"`
	MaxMessageBytes int     `mapstructure:"max_message_bytes"`
	SendRate        float64 `mapstructure:"send_rate"`
	SendBurst       int     `mapstructure:"send_burst"`
}

// ProviderConfig describes the OpenAI-compatible chat endpoint the
// assistant reasons with.
type ProviderConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Temperature   float64       `mapstructure:"temperature"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	MaxToolRounds int           `mapstructure:"max_tool_rounds"`
	SystemPrompt  string        `mapstructure:"system_prompt"`
}

type StorageConfig struct {
	Type   string       `mapstructure:"type"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
	Redis  RedisConfig  `mapstructure:"redis"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type BreakerConfig struct {
	Threshold int           `mapstructure:"threshold"`
	Cooldown  time.Duration `mapstructure:"cooldown"`
}

type SessionConfig struct {
	MaxTurns      int           `mapstructure:"max_turns"`
	Oversize      int           `mapstructure:"oversize"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type SchedulerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Timezone         string        `mapstructure:"timezone"`
	BillReminderHour int           `mapstructure:"bill_reminder_hour"`
	ReminderPoll     time.Duration `mapstructure:"reminder_poll"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
	Path            string   `mapstructure:"path"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	setDefaults()

	// Enable environment variable substitution
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Set environment variable overrides
	viper.BindEnv("bot.token", "BOT_TOKEN")
	viper.BindEnv("provider.base_url", "PROVIDER_BASE_URL")
	viper.BindEnv("provider.api_key", "PROVIDER_API_KEY")
	viper.BindEnv("provider.model", "PROVIDER_MODEL")
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.sqlite.path", "SQLITE_PATH")
	viper.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	viper.BindEnv("storage.redis.db", "REDIS_DB")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Handle Redis address special case
	if redisHost := viper.GetString("REDIS_HOST"); redisHost != "" {
		redisPort := viper.GetString("REDIS_PORT")
		if redisPort == "" {
			redisPort = "6379"
		}
		config.Storage.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	}

	// Validate required fields
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("bot.update_timeout", 30)
	viper.SetDefault("bot.max_message_bytes", 4096)
	viper.SetDefault("bot.send_rate", 25.0)
	viper.SetDefault("bot.send_burst", 5)

	viper.SetDefault("provider.max_tokens", 2048)
	viper.SetDefault("provider.temperature", 0.7)
	viper.SetDefault("provider.timeout", 30*time.Second)
	viper.SetDefault("provider.max_retries", 3)
	viper.SetDefault("provider.max_tool_rounds", 3)

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.sqlite.path", "data/finance.db")

	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests", 10)
	viper.SetDefault("rate_limit.window", time.Minute)

	viper.SetDefault("breaker.threshold", 5)
	viper.SetDefault("breaker.cooldown", 30*time.Second)

	viper.SetDefault("session.max_turns", 40)
	viper.SetDefault("session.oversize", 50)
	viper.SetDefault("session.stale_after", 2*time.Hour)
	viper.SetDefault("session.sweep_interval", 2*time.Hour)

	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.timezone", "America/Bogota")
	viper.SetDefault("scheduler.bill_reminder_hour", 8)
	viper.SetDefault("scheduler.reminder_poll", time.Minute)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stdout")

	viper.SetDefault("monitoring.metrics.enabled", false)
	viper.SetDefault("monitoring.metrics.port", 9090)
	viper.SetDefault("monitoring.metrics.path", "/metrics")

	viper.SetDefault("i18n.default_language", "es")
	viper.SetDefault("i18n.languages", []string{"es", "en"})
	viper.SetDefault("i18n.path", "configs/i18n")
}

func validateConfig(cfg *Config) error {
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token is required")
	}
	if cfg.Provider.BaseURL == "" {
		return fmt.Errorf("provider base_url is required")
	}
	switch cfg.Storage.Type {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
	if cfg.RateLimit.Requests <= 0 {
		return fmt.Errorf("rate_limit.requests must be positive")
	}
	if cfg.Breaker.Threshold <= 0 {
		return fmt.Errorf("breaker.threshold must be positive")
	}
	if cfg.Session.MaxTurns < 2 {
		return fmt.Errorf("session.max_turns must be at least 2")
	}
	if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler timezone: %w", err)
	}
	return nil
}
