package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	MarketData MarketDataConfig `mapstructure:"marketdata"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Anomaly    AnomalyConfig    `mapstructure:"anomaly"`
	OrderBook  OrderBookConfig  `mapstructure:"orderbook"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// MarketDataConfig holds the quote endpoint configuration
type MarketDataConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond int           `mapstructure:"requests_per_second"`
	MaxRetryElapsed   time.Duration `mapstructure:"max_retry_elapsed"`
}

// MonitorConfig holds monitoring behavior configuration
type MonitorConfig struct {
	Symbols      []string      `mapstructure:"symbols"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxWorkers   int           `mapstructure:"max_workers"`
	HistoryDays  int           `mapstructure:"history_days"`
	Enabled      bool          `mapstructure:"enabled"`
}

// AlertsConfig holds alert rule thresholds and dedup behavior
type AlertsConfig struct {
	PriceThresholdPercent float64       `mapstructure:"price_threshold_percent"`
	VolumeRatioThreshold  float64       `mapstructure:"volume_ratio_threshold"`
	SmallCapCeiling       float64       `mapstructure:"small_cap_ceiling"`
	Cooldown              time.Duration `mapstructure:"cooldown"`
	Retention             time.Duration `mapstructure:"retention"`
}

// AnomalyConfig holds detector thresholds
type AnomalyConfig struct {
	Window               int     `mapstructure:"window"`
	VolumeThreshold      float64 `mapstructure:"volume_threshold"`
	PriceZScoreThreshold float64 `mapstructure:"price_zscore_threshold"`
	GapThresholdPercent  float64 `mapstructure:"gap_threshold_percent"`
	CorrelationThreshold float64 `mapstructure:"correlation_threshold"`
}

// OrderBookConfig holds order book analysis configuration
type OrderBookConfig struct {
	Levels         int  `mapstructure:"levels"`
	PressureLevels int  `mapstructure:"pressure_levels"`
	Synthesize     bool `mapstructure:"synthesize"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken    string        `mapstructure:"bot_token"`
	ChatID      string        `mapstructure:"chat_id"`
	Enabled     bool          `mapstructure:"enabled"`
	DigestEvery time.Duration `mapstructure:"digest_every"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	Path          string        `mapstructure:"path"`
	RetentionDays int           `mapstructure:"retention_days"`
	CleanupEvery  time.Duration `mapstructure:"cleanup_every"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("CAPWATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("marketdata.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("marketdata.timeout", "10s")
	v.SetDefault("marketdata.requests_per_second", 5)
	v.SetDefault("marketdata.max_retry_elapsed", "30s")

	v.SetDefault("monitor.poll_interval", "1m")
	v.SetDefault("monitor.max_workers", 8)
	v.SetDefault("monitor.history_days", 30)
	v.SetDefault("monitor.enabled", true)

	v.SetDefault("alerts.price_threshold_percent", 25.0)
	v.SetDefault("alerts.volume_ratio_threshold", 5.0)
	v.SetDefault("alerts.small_cap_ceiling", 1e9)
	v.SetDefault("alerts.cooldown", "5m")
	v.SetDefault("alerts.retention", "48h")

	v.SetDefault("anomaly.window", 20)
	v.SetDefault("anomaly.volume_threshold", 5.0)
	v.SetDefault("anomaly.price_zscore_threshold", 2.0)
	v.SetDefault("anomaly.gap_threshold_percent", 10.0)
	v.SetDefault("anomaly.correlation_threshold", 0.2)

	v.SetDefault("orderbook.levels", 20)
	v.SetDefault("orderbook.pressure_levels", 10)
	v.SetDefault("orderbook.synthesize", true)

	v.SetDefault("telegram.digest_every", "1h")

	v.SetDefault("storage.path", "./data/capwatch.db")
	v.SetDefault("storage.retention_days", 30)
	v.SetDefault("storage.cleanup_every", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if len(c.Monitor.Symbols) == 0 {
		return fmt.Errorf("monitor.symbols must contain at least one symbol")
	}
	if c.Monitor.PollInterval < time.Second {
		return fmt.Errorf("monitor.poll_interval must be at least 1 second")
	}
	if c.Monitor.MaxWorkers < 1 {
		return fmt.Errorf("monitor.max_workers must be at least 1")
	}
	if c.MarketData.BaseURL == "" {
		return fmt.Errorf("marketdata.base_url is required")
	}
	if c.MarketData.RequestsPerSecond < 1 {
		return fmt.Errorf("marketdata.requests_per_second must be at least 1")
	}
	if c.Alerts.PriceThresholdPercent < 1 {
		return fmt.Errorf("alerts.price_threshold_percent must be at least 1")
	}
	if c.Alerts.VolumeRatioThreshold <= 0 {
		return fmt.Errorf("alerts.volume_ratio_threshold must be positive")
	}
	if c.Alerts.Cooldown < time.Second {
		return fmt.Errorf("alerts.cooldown must be at least 1 second")
	}
	if c.Anomaly.Window < 5 {
		return fmt.Errorf("anomaly.window must be at least 5")
	}
	if c.Anomaly.VolumeThreshold <= 1 {
		return fmt.Errorf("anomaly.volume_threshold must be greater than 1")
	}
	if c.Anomaly.GapThresholdPercent <= 0 {
		return fmt.Errorf("anomaly.gap_threshold_percent must be positive")
	}
	if c.OrderBook.Levels < 1 {
		return fmt.Errorf("orderbook.levels must be at least 1")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Storage.RetentionDays < 1 {
		return fmt.Errorf("storage.retention_days must be at least 1")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	return nil
}
