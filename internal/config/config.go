package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"tariff-optimizer/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Entsoe    EntsoeConfig    `mapstructure:"entsoe"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// EntsoeConfig covers ENTSO-E Transparency Platform access.
type EntsoeConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Country        string        `mapstructure:"country"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// IngestConfig governs synthetic household disaggregation.
type IngestConfig struct {
	Households        int     `mapstructure:"households"`
	HouseholdFraction float64 `mapstructure:"household_fraction"`
	DaysBack          int     `mapstructure:"days_back"`
	MaxDaysBack       int     `mapstructure:"max_days_back"`
	MaxHouseholds     int     `mapstructure:"max_households"`
}

// PricingConfig carries default strategy parameters.
type PricingConfig struct {
	PeakHours         []int   `mapstructure:"peak_hours"`
	PeakMultiplier    float64 `mapstructure:"peak_multiplier"`
	OffPeakMultiplier float64 `mapstructure:"offpeak_multiplier"`
	MinMultiplier     float64 `mapstructure:"min_multiplier"`
	MaxMultiplier     float64 `mapstructure:"max_multiplier"`
}

// OptimizerConfig carries default optimization parameters.
type OptimizerConfig struct {
	FairnessWeight     float64       `mapstructure:"fairness_weight"`
	ProfitWeight       float64       `mapstructure:"profit_weight"`
	MinPrice           float64       `mapstructure:"min_price"`
	MaxPrice           float64       `mapstructure:"max_price"`
	SolverTimeout      time.Duration `mapstructure:"solver_timeout"`
	Mode               string        `mapstructure:"mode"`
	MinCostRecoveryPct float64       `mapstructure:"min_cost_recovery_pct"`
	MaxCostRecoveryPct float64       `mapstructure:"max_cost_recovery_pct"`
	TargetPricePerKWh  float64       `mapstructure:"target_price_per_kwh"`
}

// SchedulerConfig governs the repricing cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	WindowDays      int           `mapstructure:"window_days"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled       bool           `mapstructure:"enabled"`
	GiniThreshold float64        `mapstructure:"gini_threshold"`
	Channels      []string       `mapstructure:"channels"`
	Telegram      TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram alert channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TARIFFD")
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
	v.SetDefault("app.name", "tariffd")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("entsoe.base_url", "https://web-api.tp.entsoe.eu/api")
	v.SetDefault("entsoe.country", "DE")
	v.SetDefault("entsoe.request_timeout", "30s")
	v.SetDefault("entsoe.user_agent", "tariffd/1.0")

	v.SetDefault("ingest.households", 100)
	v.SetDefault("ingest.household_fraction", 0.30)
	v.SetDefault("ingest.days_back", 30)
	v.SetDefault("ingest.max_days_back", 90)
	v.SetDefault("ingest.max_households", 1000)

	v.SetDefault("pricing.peak_hours", []int{7, 8, 17, 18, 19, 20, 21})
	v.SetDefault("pricing.peak_multiplier", 1.5)
	v.SetDefault("pricing.offpeak_multiplier", 0.7)
	v.SetDefault("pricing.min_multiplier", 0.5)
	v.SetDefault("pricing.max_multiplier", 2.0)

	v.SetDefault("optimizer.fairness_weight", 0.5)
	v.SetDefault("optimizer.profit_weight", 0.5)
	v.SetDefault("optimizer.min_price", 0.05)
	v.SetDefault("optimizer.max_price", 0.50)
	v.SetDefault("optimizer.solver_timeout", "30s")
	v.SetDefault("optimizer.mode", "regulated")
	v.SetDefault("optimizer.min_cost_recovery_pct", 100.0)
	v.SetDefault("optimizer.max_cost_recovery_pct", 110.0)
	v.SetDefault("optimizer.target_price_per_kwh", 0.30)

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x74726664))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.window_days", 7)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.gini_threshold", 0.25)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)
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
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scheduler.WindowDays <= 0 {
		return fmt.Errorf("scheduler.window_days must be greater than zero")
	}
	if c.Optimizer.FairnessWeight < 0 || c.Optimizer.FairnessWeight > 1 {
		return fmt.Errorf("optimizer.fairness_weight must be within [0,1]")
	}
	if c.Optimizer.ProfitWeight < 0 || c.Optimizer.ProfitWeight > 1 {
		return fmt.Errorf("optimizer.profit_weight must be within [0,1]")
	}
	if c.Optimizer.MinPrice >= c.Optimizer.MaxPrice {
		return fmt.Errorf("optimizer.min_price must be below optimizer.max_price")
	}
	if c.Ingest.Households <= 0 || c.Ingest.Households > c.Ingest.MaxHouseholds {
		return fmt.Errorf("ingest.households must be within [1,%d]", c.Ingest.MaxHouseholds)
	}
	if c.Ingest.HouseholdFraction <= 0 || c.Ingest.HouseholdFraction > 1 {
		return fmt.Errorf("ingest.household_fraction must be within (0,1]")
	}
	if c.Alerting.GiniThreshold < 0 || c.Alerting.GiniThreshold > 1 {
		return fmt.Errorf("alerting.gini_threshold must be within [0,1]")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
