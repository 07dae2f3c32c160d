// Command scizor-optimize grid-searches a strategy's parameter space and
// prints the ranked results.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"scizor/internal/backtest"
	"scizor/internal/config"
	"scizor/internal/domain"
	"scizor/internal/store"
	"scizor/internal/strategy"
	"scizor/internal/strategy/builtins"
	"scizor/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/scizor.yaml", "path to the configuration file")
	strategyName := flag.String("strategy", "", "strategy name (overrides config)")
	top := flag.Int("top", 10, "number of ranked results to print")
	flag.Parse()

	if p := os.Getenv("SCIZOR_CONFIG"); p != "" && *cfgPath == "config/scizor.yaml" {
		cfgPath = &p
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level))

	if *strategyName != "" {
		cfg.Backtest.Strategy = *strategyName
	}
	if len(cfg.Optimizer.Grid) == 0 {
		log.Fatal("optimizer.grid is empty: nothing to sweep")
	}

	registry := strategy.NewRegistry()
	builtins.Register(registry)
	name := cfg.Backtest.Strategy
	factory := func(params strategy.Params) (strategy.Strategy, error) {
		s, ok, err := registry.New(name, params)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
		return s, nil
	}

	runCfg, err := buildRunConfig(cfg.Backtest)
	if err != nil {
		log.Fatalf("invalid backtest config: %v", err)
	}

	barStore, err := openBarStore(cfg.Storage)
	if err != nil {
		log.Fatalf("opening bar store: %v", err)
	}
	provider := backtest.NewStoreProvider(barStore, domain.Market(cfg.Backtest.Market))

	opt := backtest.NewOptimizer(backtest.OptimizerConfig{
		Workers:         cfg.Optimizer.Workers,
		MaxCombinations: cfg.Optimizer.MaxCombinations,
	}, factory, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	results, err := opt.Run(ctx, runCfg, provider, backtest.Grid(cfg.Optimizer.Grid))
	if err != nil && len(results) == 0 {
		log.Fatalf("optimization failed: %v", err)
	}
	if err != nil {
		log.Printf("optimization ended early: %v", err)
	}

	printRanking(name, results, *top)
}

func buildRunConfig(bt config.BacktestConfig) (backtest.Config, error) {
	start, end, err := bt.Dates()
	if err != nil {
		return backtest.Config{}, err
	}
	cfg := backtest.Config{
		Symbols:            bt.Symbols,
		Start:              start,
		End:                end,
		InitialCapital:     bt.InitialCapital,
		CommissionPerShare: bt.CommissionPerShare,
		CommissionPct:      bt.CommissionPct,
		SlippageBps:        bt.SlippageBps,
		MaxPositions:       bt.MaxPositions,
		MaxPositionPct:     bt.MaxPositionPct,
		RiskPerTrade:       bt.RiskPerTrade,
		StopLossPct:        bt.StopLossPct,
		TakeProfitPct:      bt.TakeProfitPct,
		Lookback:           bt.Lookback,
		Rebalance:          backtest.RebalanceFrequency(bt.Rebalance),
		EnableShortSelling: bt.EnableShortSelling,
		RiskFreeRate:       bt.RiskFreeRate,
		LiquidateAtEnd:     bt.LiquidateAtEnd,
	}
	return cfg, cfg.Validate()
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

func printRanking(strategyName string, results []backtest.RunResult, top int) {
	fmt.Printf("Optimization ranking: %s (%d runs)\n", strategyName, len(results))
	fmt.Printf("%-4s  %-40s  %10s  %10s  %8s\n", "rank", "params", "sharpe", "return", "trades")

	if top > len(results) {
		top = len(results)
	}
	for i, r := range results[:top] {
		if r.Err != nil {
			fmt.Printf("%-4d  %-40s  failed: %v\n", i+1, formatParams(r.Params), r.Err)
			continue
		}
		fmt.Printf("%-4d  %-40s  %10s  %9.2f%%  %8d\n",
			i+1,
			formatParams(r.Params),
			formatScore(r.Score),
			r.Result.Metrics.TotalReturn*100,
			r.Result.Metrics.TotalTrades,
		)
	}
}

func formatParams(p strategy.Params) string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%g", name, p[name]))
	}
	return strings.Join(parts, " ")
}

func formatScore(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", v)
}
