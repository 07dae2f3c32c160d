// Package config loads the scizor YAML configuration file and applies
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the scizor platform.
type Config struct {
	Storage   Storage         `yaml:"storage"`
	Logging   Logging         `yaml:"logging"`
	Alpaca    Alpaca          `yaml:"alpaca"`
	Gather    GatherConfig    `yaml:"gather"`
	Backtest  BacktestConfig  `yaml:"backtest"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
}

// Storage holds paths for data persistence. Backend selects which bar
// store serves reads: "parquet" or "sqlite".
type Storage struct {
	Backend    string `yaml:"backend"`
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// GatherConfig controls the daily-bar gathering job.
type GatherConfig struct {
	Market          string   `yaml:"market"`
	Symbols         []string `yaml:"symbols"`
	StartDate       string   `yaml:"start_date"`
	BatchSize       int      `yaml:"batch_size"`
	MaxWorkers      int      `yaml:"max_workers"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
}

// BacktestConfig holds the simulation parameters for one backtest run.
type BacktestConfig struct {
	Market             string             `yaml:"market"`
	Symbols            []string           `yaml:"symbols"`
	StartDate          string             `yaml:"start_date"`
	EndDate            string             `yaml:"end_date"`
	InitialCapital     float64            `yaml:"initial_capital"`
	CommissionPerShare float64            `yaml:"commission_per_share"`
	CommissionPct      float64            `yaml:"commission_pct"`
	SlippageBps        float64            `yaml:"slippage_bps"`
	MaxPositions       int                `yaml:"max_positions"`
	MaxPositionPct     float64            `yaml:"max_position_pct"`
	RiskPerTrade       float64            `yaml:"risk_per_trade"`
	StopLossPct        float64            `yaml:"stop_loss_pct"`
	TakeProfitPct      float64            `yaml:"take_profit_pct"`
	Lookback           int                `yaml:"lookback"`
	Rebalance          string             `yaml:"rebalance"`
	EnableShortSelling bool               `yaml:"enable_short_selling"`
	RiskFreeRate       float64            `yaml:"risk_free_rate"`
	LiquidateAtEnd     bool               `yaml:"liquidate_at_end"`
	Strategy           string             `yaml:"strategy"`
	Params             map[string]float64 `yaml:"params"`
}

// Dates parses the configured date range.
func (c *BacktestConfig) Dates() (start, end time.Time, err error) {
	start, err = time.Parse(time.DateOnly, c.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date %q: %w", c.StartDate, err)
	}
	end, err = time.Parse(time.DateOnly, c.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date %q: %w", c.EndDate, err)
	}
	return start, end, nil
}

// OptimizerConfig controls the grid-search sweep.
type OptimizerConfig struct {
	Workers         int                  `yaml:"workers"`
	MaxCombinations int                  `yaml:"max_combinations"`
	Grid            map[string][]float64 `yaml:"grid"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it over
// the defaults, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// defaults returns the configuration used where the YAML file is silent.
func defaults() *Config {
	return &Config{
		Storage: Storage{
			Backend:    "parquet",
			DataDir:    "data",
			SQLitePath: "scizor.db",
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Gather: GatherConfig{
			BatchSize:       200,
			MaxWorkers:      4,
			RateLimitPerMin: 200,
		},
		Backtest: BacktestConfig{
			InitialCapital:     100000,
			CommissionPerShare: 0.002,
			MaxPositions:       10,
			MaxPositionPct:     1.0,
			RiskPerTrade:       1.0,
			Rebalance:          "daily",
			Strategy:           "sma-cross",
		},
		Optimizer: OptimizerConfig{
			Workers:         4,
			MaxCombinations: 1000,
		},
	}
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars win over everything else; these are the
	// canonical names the SDK itself reads.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
