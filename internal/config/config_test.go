package config

import (
	"os"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "scizor-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}
	return tmpFile.Name()
}

func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ALPACA_API_KEY", "ALPACA_API_SECRET",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
		"DATA_DIR", "SQLITE_PATH", "LOG_LEVEL",
	} {
		os.Unsetenv(k)
	}
}

func TestLoadFullConfig(t *testing.T) {
	clearEnvOverrides(t)
	path := writeTempConfig(t, `
storage:
  backend: "sqlite"
  data_dir: "/tmp/scizor/data"
  sqlite_path: "/tmp/scizor/scizor.db"
logging:
  level: "debug"
  format: "json"
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  data_url: "https://data.alpaca.markets"
gather:
  market: "us"
  symbols: ["AAPL", "MSFT"]
  start_date: "2020-01-01"
  batch_size: 500
  max_workers: 8
  rate_limit_per_min: 200
backtest:
  market: "asx"
  symbols: ["BHP", "CSL"]
  start_date: "2023-01-01"
  end_date: "2023-12-31"
  initial_capital: 250000
  commission_per_share: 0.005
  slippage_bps: 5
  max_positions: 5
  max_position_pct: 0.25
  risk_per_trade: 0.02
  stop_loss_pct: 0.05
  strategy: "rsi-reversion"
  params:
    rsi_period: 10
    oversold: 25
optimizer:
  workers: 2
  max_combinations: 50
  grid:
    short: [5, 10]
    long: [20, 50]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, "sqlite")
	}
	if cfg.Storage.DataDir != "/tmp/scizor/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/scizor/data")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}

	if len(cfg.Gather.Symbols) != 2 || cfg.Gather.Symbols[0] != "AAPL" {
		t.Errorf("Gather.Symbols = %v, want [AAPL MSFT]", cfg.Gather.Symbols)
	}
	if cfg.Gather.BatchSize != 500 {
		t.Errorf("Gather.BatchSize = %d, want 500", cfg.Gather.BatchSize)
	}

	bt := cfg.Backtest
	if bt.InitialCapital != 250000 {
		t.Errorf("Backtest.InitialCapital = %v, want 250000", bt.InitialCapital)
	}
	if bt.Strategy != "rsi-reversion" {
		t.Errorf("Backtest.Strategy = %q, want rsi-reversion", bt.Strategy)
	}
	if bt.Params["rsi_period"] != 10 {
		t.Errorf("Backtest.Params[rsi_period] = %v, want 10", bt.Params["rsi_period"])
	}
	if bt.RiskPerTrade != 0.02 {
		t.Errorf("Backtest.RiskPerTrade = %v, want 0.02", bt.RiskPerTrade)
	}

	start, end, err := bt.Dates()
	if err != nil {
		t.Fatalf("Dates() returned error: %v", err)
	}
	if start != time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("start = %v, want 2023-01-01", start)
	}
	if end != time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC) {
		t.Errorf("end = %v, want 2023-12-31", end)
	}

	if cfg.Optimizer.MaxCombinations != 50 {
		t.Errorf("Optimizer.MaxCombinations = %d, want 50", cfg.Optimizer.MaxCombinations)
	}
	if got := cfg.Optimizer.Grid["short"]; len(got) != 2 || got[0] != 5 {
		t.Errorf("Optimizer.Grid[short] = %v, want [5 10]", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnvOverrides(t)
	// Minimal file: everything else comes from defaults.
	path := writeTempConfig(t, `
backtest:
  symbols: ["BHP"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.Backend != "parquet" {
		t.Errorf("default Storage.Backend = %q, want parquet", cfg.Storage.Backend)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Backtest.InitialCapital != 100000 {
		t.Errorf("default InitialCapital = %v, want 100000", cfg.Backtest.InitialCapital)
	}
	if cfg.Backtest.CommissionPerShare != 0.002 {
		t.Errorf("default CommissionPerShare = %v, want 0.002", cfg.Backtest.CommissionPerShare)
	}
	if cfg.Backtest.Strategy != "sma-cross" {
		t.Errorf("default Strategy = %q, want sma-cross", cfg.Backtest.Strategy)
	}
	if cfg.Optimizer.Workers != 4 {
		t.Errorf("default Optimizer.Workers = %d, want 4", cfg.Optimizer.Workers)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnvOverrides(t)
	path := writeTempConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	os.Setenv("ALPACA_API_KEY", "env-key")
	os.Setenv("DATA_DIR", "/env/data")
	defer os.Unsetenv("ALPACA_API_KEY")
	defer os.Unsetenv("DATA_DIR")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
}

func TestDatesRejectsBadFormat(t *testing.T) {
	bt := BacktestConfig{StartDate: "01/02/2023", EndDate: "2023-12-31"}
	if _, _, err := bt.Dates(); err == nil {
		t.Error("Dates() accepted malformed start_date")
	}
}
