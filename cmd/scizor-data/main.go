// Command scizor-data downloads daily OHLCV bars for the configured
// watchlist from Alpaca and writes them to the bar store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"scizor/internal/config"
	"scizor/internal/domain"
	"scizor/internal/gather"
	"scizor/internal/store"
	"scizor/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/scizor.yaml", "path to the configuration file")
	startDate := flag.String("start", "", "start date YYYY-MM-DD (overrides config)")
	flag.Parse()

	// Credentials may live in a local .env file; missing is fine.
	_ = godotenv.Load()

	if p := os.Getenv("SCIZOR_CONFIG"); p != "" && *cfgPath == "config/scizor.yaml" {
		cfgPath = &p
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logPath := fmt.Sprintf("/tmp/scizor-data-%s.log", time.Now().Format(time.DateOnly))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("failed to open log file %s: %v", logPath, err)
	}
	defer logFile.Close()

	logger := util.NewLoggerTo(io.MultiWriter(os.Stdout, logFile), cfg.Logging.Level)
	util.SetDefault(logger)

	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("missing Alpaca credentials: set alpaca.api_key/api_secret or APCA_API_KEY_ID/APCA_API_SECRET_KEY")
	}
	if *startDate != "" {
		cfg.Gather.StartDate = *startDate
	}

	barStore, err := openBarStore(cfg.Storage)
	if err != nil {
		log.Fatalf("opening bar store: %v", err)
	}

	gatherer := gather.NewDailyBarGatherer(gather.DailyBarOptions{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		BaseURL:         cfg.Alpaca.BaseURL,
		Market:          domain.Market(cfg.Gather.Market),
		Symbols:         cfg.Gather.Symbols,
		StartDate:       cfg.Gather.StartDate,
		BatchSize:       cfg.Gather.BatchSize,
		MaxWorkers:      cfg.Gather.MaxWorkers,
		RateLimitPerMin: cfg.Gather.RateLimitPerMin,
	}, barStore)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := gatherer.Run(ctx); err != nil {
		slog.Error("gather failed", "err", err)
		os.Exit(1)
	}
}

func openBarStore(s config.Storage) (store.BarStore, error) {
	switch s.Backend {
	case "sqlite":
		return store.NewSQLiteStore(s.SQLitePath)
	case "", "parquet":
		return store.NewParquetStore(s.DataDir), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.Backend)
	}
}
