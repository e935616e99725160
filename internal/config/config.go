package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"oi-surge-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Binance   BinanceConfig   `mapstructure:"binance"`
	Guard     GuardConfig     `mapstructure:"guard"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name         string        `mapstructure:"name"`
	Environment  string        `mapstructure:"environment"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// BinanceConfig covers the futures REST API.
type BinanceConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	APISecret       string        `mapstructure:"api_secret"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	SettlementAsset string        `mapstructure:"settlement_asset"`
}

// GuardConfig governs retries and rate-limit bans.
type GuardConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	DefaultBan  time.Duration `mapstructure:"default_ban"`
	BanMargin   time.Duration `mapstructure:"ban_margin"`
}

// MonitorConfig sets retention, horizons and loop pacing.
type MonitorConfig struct {
	Retention        time.Duration   `mapstructure:"retention"`
	Horizons         []time.Duration `mapstructure:"horizons"`
	Cooldown         time.Duration   `mapstructure:"cooldown"`
	MaxRepeatHistory int             `mapstructure:"max_repeat_history"`
	FetchPause       time.Duration   `mapstructure:"fetch_pause"`
	MinCycle         time.Duration   `mapstructure:"min_cycle"`
	PerInstrument    time.Duration   `mapstructure:"per_instrument"`
	CycleOverhead    time.Duration   `mapstructure:"cycle_overhead"`
	InitBackoff      time.Duration   `mapstructure:"init_backoff"`
}

// AlertingConfig defines notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the alert audit log.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// HeartbeatConfig schedules periodic status messages.
type HeartbeatConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OISURGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "oisurge")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.startup_delay", "0s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("binance.base_url", "https://fapi.binance.com")
	v.SetDefault("binance.request_timeout", "10s")
	v.SetDefault("binance.settlement_asset", "USDT")

	v.SetDefault("guard.max_attempts", 3)
	v.SetDefault("guard.base_delay", "1s")
	v.SetDefault("guard.default_ban", "5m")
	v.SetDefault("guard.ban_margin", "5s")

	v.SetDefault("monitor.retention", "16m")
	v.SetDefault("monitor.horizons", []string{"1m", "5m", "15m"})
	v.SetDefault("monitor.cooldown", "5m")
	v.SetDefault("monitor.max_repeat_history", 64)
	v.SetDefault("monitor.fetch_pause", "100ms")
	v.SetDefault("monitor.min_cycle", "60s")
	v.SetDefault("monitor.per_instrument", "500ms")
	v.SetDefault("monitor.cycle_overhead", "10s")
	v.SetDefault("monitor.init_backoff", "60s")

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.request_timeout", "10s")

	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("heartbeat.enabled", false)
	v.SetDefault("heartbeat.cron", "0 0 */6 * * *")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.App.StartupDelay < 0 {
		return fmt.Errorf("app.startup_delay cannot be negative")
	}
	if c.Monitor.Retention <= 0 {
		return fmt.Errorf("monitor.retention must be greater than zero")
	}
	if len(c.Monitor.Horizons) == 0 {
		return fmt.Errorf("monitor.horizons must not be empty")
	}
	for _, h := range c.Monitor.Horizons {
		if h <= 0 || h >= c.Monitor.Retention {
			return fmt.Errorf("monitor.horizons: %s must be positive and shorter than retention %s", h, c.Monitor.Retention)
		}
	}
	if c.Monitor.Cooldown <= 0 {
		return fmt.Errorf("monitor.cooldown must be greater than zero")
	}
	if c.Monitor.MaxRepeatHistory < 0 {
		return fmt.Errorf("monitor.max_repeat_history cannot be negative")
	}
	if c.Monitor.MinCycle <= 0 {
		return fmt.Errorf("monitor.min_cycle must be greater than zero")
	}
	if c.Monitor.InitBackoff <= 0 {
		return fmt.Errorf("monitor.init_backoff must be greater than zero")
	}
	if c.Guard.MaxAttempts <= 0 {
		return fmt.Errorf("guard.max_attempts must be greater than zero")
	}
	if strings.TrimSpace(c.Binance.SettlementAsset) == "" {
		return fmt.Errorf("binance.settlement_asset must be configured")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	if c.Heartbeat.Enabled {
		if _, err := cronParser.Parse(c.Heartbeat.Cron); err != nil {
			return fmt.Errorf("heartbeat.cron: %w", err)
		}
	}
	return nil
}

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
