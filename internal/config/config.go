package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Market   MarketConfig   `mapstructure:"market"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Watcher  WatcherConfig  `mapstructure:"watcher"`
	Recorder RecorderConfig `mapstructure:"recorder"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// MarketConfig holds CLOB API configuration
type MarketConfig struct {
	CLOBAPIURL     string        `mapstructure:"clob_api_url"`
	WSURL          string        `mapstructure:"ws_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	BookDepth      int           `mapstructure:"book_depth"`
}

// ScannerConfig holds poll-driven scanner behavior configuration
type ScannerConfig struct {
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	DedupeWindow      time.Duration `mapstructure:"dedupe_window"`
	BackoffBase       time.Duration `mapstructure:"backoff_base"`
	BackoffCap        time.Duration `mapstructure:"backoff_cap"`
	MaxRetries        int           `mapstructure:"max_retries"`
	ThresholdsPath    string        `mapstructure:"thresholds_path"`
}

// WatcherConfig holds stream-driven price alert watcher configuration
type WatcherConfig struct {
	AlertsPath string        `mapstructure:"alerts_path"`
	Cooldown   time.Duration `mapstructure:"cooldown"`
}

// RecorderConfig holds tick recorder configuration
type RecorderConfig struct {
	SamplingInterval time.Duration `mapstructure:"sampling_interval"`
	QueueSize        int           `mapstructure:"queue_size"`
	StopTimeout      time.Duration `mapstructure:"stop_timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	Enabled  bool          `mapstructure:"enabled"`
	Throttle time.Duration `mapstructure:"throttle"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. A missing
// config file is not an error; defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("DEPTHWATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Market defaults
	v.SetDefault("market.clob_api_url", "https://clob.polymarket.com")
	v.SetDefault("market.ws_url", "wss://ws-subscriptions-clob.polymarket.com/ws")
	v.SetDefault("market.timeout", "30s")
	v.SetDefault("market.max_retries", 3)
	v.SetDefault("market.retry_delay_base", "1s")
	v.SetDefault("market.book_depth", 10)

	// Scanner defaults
	v.SetDefault("scanner.poll_interval", "30s")
	v.SetDefault("scanner.heartbeat_interval", "60s")
	v.SetDefault("scanner.dedupe_window", "300s")
	v.SetDefault("scanner.backoff_base", "2s")
	v.SetDefault("scanner.backoff_cap", "300s")
	v.SetDefault("scanner.max_retries", 5)
	v.SetDefault("scanner.thresholds_path", "./data/thresholds.json")

	// Watcher defaults
	v.SetDefault("watcher.alerts_path", "./data/alerts.json")
	v.SetDefault("watcher.cooldown", "300s")

	// Recorder defaults
	v.SetDefault("recorder.sampling_interval", "60s")
	v.SetDefault("recorder.queue_size", 1000)
	v.SetDefault("recorder.stop_timeout", "5s")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.throttle", "60s")

	// Storage defaults
	v.SetDefault("storage.db_path", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Market config
	if c.Market.CLOBAPIURL == "" {
		return fmt.Errorf("market.clob_api_url is required")
	}
	if c.Market.WSURL == "" {
		return fmt.Errorf("market.ws_url is required")
	}
	if c.Market.Timeout < 1*time.Second {
		return fmt.Errorf("market.timeout must be at least 1 second")
	}
	if c.Market.MaxRetries < 1 {
		return fmt.Errorf("market.max_retries must be at least 1")
	}
	if c.Market.BookDepth < 1 {
		return fmt.Errorf("market.book_depth must be at least 1")
	}

	// Validate Scanner config
	if c.Scanner.PollInterval < 1*time.Second {
		return fmt.Errorf("scanner.poll_interval must be at least 1 second")
	}
	if c.Scanner.HeartbeatInterval < c.Scanner.PollInterval {
		return fmt.Errorf("scanner.heartbeat_interval must not be shorter than scanner.poll_interval")
	}
	if c.Scanner.DedupeWindow < 0 {
		return fmt.Errorf("scanner.dedupe_window must not be negative")
	}
	if c.Scanner.BackoffBase < 1*time.Second {
		return fmt.Errorf("scanner.backoff_base must be at least 1 second")
	}
	if c.Scanner.BackoffCap < c.Scanner.BackoffBase {
		return fmt.Errorf("scanner.backoff_cap must not be smaller than scanner.backoff_base")
	}
	if c.Scanner.MaxRetries < 1 {
		return fmt.Errorf("scanner.max_retries must be at least 1")
	}
	if c.Scanner.ThresholdsPath == "" {
		return fmt.Errorf("scanner.thresholds_path is required")
	}

	// Validate Watcher config
	if c.Watcher.AlertsPath == "" {
		return fmt.Errorf("watcher.alerts_path is required")
	}
	if c.Watcher.Cooldown < 0 {
		return fmt.Errorf("watcher.cooldown must not be negative")
	}

	// Validate Recorder config
	if c.Recorder.SamplingInterval < 0 {
		return fmt.Errorf("recorder.sampling_interval must not be negative")
	}
	if c.Recorder.QueueSize < 1 {
		return fmt.Errorf("recorder.queue_size must be at least 1")
	}
	if c.Recorder.StopTimeout < 1*time.Second {
		return fmt.Errorf("recorder.stop_timeout must be at least 1 second")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
