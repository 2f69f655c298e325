// Package config defines the engine's startup configuration: header risk,
// fee and anti-toxicity parameters, and storage/logging settings. Pool
// capacities are compile-time constants in internal/slab, not settings. Config is loaded from a YAML file with env var overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	Risk    RiskConfig    `mapstructure:"risk"`
	Fees    FeesConfig    `mapstructure:"fees"`
	AntiTox AntiToxConfig `mapstructure:"anti_toxicity"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// RiskConfig holds the IM/MM ratios applied to every instrument.
type RiskConfig struct {
	IMRBps uint64 `mapstructure:"imr_bps"`
	MMRBps uint64 `mapstructure:"mmr_bps"`
}

// FeesConfig holds the taker fee and maker fee/rebate, in basis points.
// MakerFeeBps may be negative: that is a rebate, not a debit.
type FeesConfig struct {
	MakerFeeBps int64  `mapstructure:"maker_fee_bps"`
	TakerFeeBps uint64 `mapstructure:"taker_fee_bps"`
}

// AntiToxConfig holds the batch/epoch gate and anti-sandwich parameters.
type AntiToxConfig struct {
	BatchMs          uint64 `mapstructure:"batch_ms"`
	FreezeLevels     uint16 `mapstructure:"freeze_levels"`
	KillBandBps      uint64 `mapstructure:"kill_band_bps"`
	AsFeeK           uint64 `mapstructure:"as_fee_k"`
	JitPenaltyOn     bool   `mapstructure:"jit_penalty_on"`
	MakerRebateMinMs uint64 `mapstructure:"maker_rebate_min_ms"`
}

// StorageConfig holds the trade-ledger database connection.
type StorageConfig struct {
	DSN          string `mapstructure:"dsn"`
	BatchSize    int    `mapstructure:"batch_size"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads config from a YAML file, with env var overrides under the
// PERCOLATOR_ prefix (e.g. PERCOLATOR_STORAGE_DSN).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("PERCOLATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if dsn := os.Getenv("PERCOLATOR_STORAGE_DSN"); dsn != "" {
		cfg.Storage.DSN = dsn
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("risk.imr_bps", 500)
	v.SetDefault("risk.mmr_bps", 250)
	v.SetDefault("fees.taker_fee_bps", 10)
	v.SetDefault("fees.maker_fee_bps", -2)
	v.SetDefault("anti_toxicity.batch_ms", 100)
	v.SetDefault("anti_toxicity.freeze_levels", 3)
	v.SetDefault("anti_toxicity.kill_band_bps", 100)
	v.SetDefault("anti_toxicity.as_fee_k", 50)
	v.SetDefault("anti_toxicity.jit_penalty_on", true)
	v.SetDefault("anti_toxicity.maker_rebate_min_ms", 100)
	v.SetDefault("storage.batch_size", 500)
	v.SetDefault("logging.level", "info")
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Risk.IMRBps == 0 {
		return fmt.Errorf("risk.imr_bps must be > 0")
	}
	if c.Risk.MMRBps == 0 {
		return fmt.Errorf("risk.mmr_bps must be > 0")
	}
	if c.Risk.MMRBps >= c.Risk.IMRBps {
		return fmt.Errorf("risk.mmr_bps must be less than risk.imr_bps")
	}
	if c.AntiTox.BatchMs == 0 {
		return fmt.Errorf("anti_toxicity.batch_ms must be > 0")
	}
	return nil
}
