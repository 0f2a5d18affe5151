package config

import (
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/barstock/stock-cli/internal/errs"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig     `yaml:"store" mapstructure:"store"`
	Thresholds ThresholdConfig `yaml:"thresholds" mapstructure:"thresholds"`
	Backup     BackupConfig    `yaml:"backup" mapstructure:"backup"`
	Export     ExportConfig    `yaml:"export" mapstructure:"export"`
	Log        LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig locates the purchase store on disk.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ThresholdConfig holds the alert rule thresholds. ExcessStockBaseline is
// the stock level the excess rule compares against; the rule fires when a
// product's period volume exceeds baseline * (1 + ExcessStockPct).
type ThresholdConfig struct {
	ExcessStockPct      float64 `yaml:"excess_stock_pct" mapstructure:"excess_stock_pct"`
	ExcessStockBaseline float64 `yaml:"excess_stock_baseline" mapstructure:"excess_stock_baseline"`
	DaysWithoutPurchase int     `yaml:"days_without_purchase" mapstructure:"days_without_purchase"`
	DaysStaleAlert      int     `yaml:"days_stale_alert" mapstructure:"days_stale_alert"`
	PriceVariationPct   float64 `yaml:"price_variation_pct" mapstructure:"price_variation_pct"`
}

// Baseline returns the excess-stock baseline as an exact decimal.
func (t ThresholdConfig) Baseline() decimal.Decimal {
	return decimal.NewFromFloat(t.ExcessStockBaseline)
}

// Validate rejects thresholds the alert rules cannot evaluate.
func (t ThresholdConfig) Validate() error {
	for name, v := range map[string]float64{
		"excess_stock_pct":      t.ExcessStockPct,
		"excess_stock_baseline": t.ExcessStockBaseline,
		"price_variation_pct":   t.PriceVariationPct,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errs.Validationf("thresholds: %s must be finite", name)
		}
		if v < 0 {
			return errs.Validationf("thresholds: %s must be >= 0, got %v", name, v)
		}
	}
	if t.DaysWithoutPurchase < 0 {
		return errs.Validationf("thresholds: days_without_purchase must be >= 0, got %d", t.DaysWithoutPurchase)
	}
	if t.DaysStaleAlert < t.DaysWithoutPurchase {
		return errs.Validationf("thresholds: days_stale_alert %d must be >= days_without_purchase %d",
			t.DaysStaleAlert, t.DaysWithoutPurchase)
	}
	return nil
}

// BackupConfig configures snapshot creation, retention, and locking.
type BackupConfig struct {
	Dir           string        `yaml:"dir" mapstructure:"dir"`
	RetentionDays int           `yaml:"retention_days" mapstructure:"retention_days"`
	Interval      time.Duration `yaml:"interval" mapstructure:"interval"`
	Compress      bool          `yaml:"compress" mapstructure:"compress"`
	LockTimeout   time.Duration `yaml:"lock_timeout" mapstructure:"lock_timeout"`
}

// Validate rejects backup settings the manager cannot honor.
func (b BackupConfig) Validate() error {
	if b.Dir == "" {
		return errs.Validationf("backup: dir is required")
	}
	if b.RetentionDays < 0 {
		return errs.Validationf("backup: retention_days must be >= 0, got %d", b.RetentionDays)
	}
	if b.Interval <= 0 {
		return errs.Validationf("backup: interval must be positive, got %s", b.Interval)
	}
	if b.LockTimeout <= 0 {
		return errs.Validationf("backup: lock_timeout must be positive, got %s", b.LockTimeout)
	}
	return nil
}

// ExportConfig configures report artifact output.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", "stock.db")
	v.SetDefault("thresholds.excess_stock_pct", 0.20)
	v.SetDefault("thresholds.excess_stock_baseline", 10.0)
	v.SetDefault("thresholds.days_without_purchase", 30)
	v.SetDefault("thresholds.days_stale_alert", 60)
	v.SetDefault("thresholds.price_variation_pct", 0.15)
	v.SetDefault("backup.dir", "backups")
	v.SetDefault("backup.retention_days", 30)
	v.SetDefault("backup.interval", "24h")
	v.SetDefault("backup.compress", true)
	v.SetDefault("backup.lock_timeout", "10s")
	v.SetDefault("export.dir", "exports")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "config: validate")
	}

	return &cfg, nil
}

// Validate checks every section. Out-of-range settings fail the load rather
// than degrading at use sites.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return errs.Validationf("store: path is required")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if err := c.Backup.Validate(); err != nil {
		return err
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
