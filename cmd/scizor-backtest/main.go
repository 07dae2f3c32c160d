// Command scizor-backtest runs one backtest from the configuration file
// and prints a performance report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
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
	symbols := flag.String("symbols", "", "comma-separated symbols (overrides config)")
	start := flag.String("start", "", "start date YYYY-MM-DD (overrides config)")
	end := flag.String("end", "", "end date YYYY-MM-DD (overrides config)")
	capital := flag.Float64("capital", 0, "initial capital (overrides config)")
	listStrategies := flag.Bool("list", false, "list available strategies and exit")
	flag.Parse()

	registry := strategy.NewRegistry()
	builtins.Register(registry)

	if *listStrategies {
		for _, name := range registry.List() {
			fmt.Println(name)
		}
		return
	}

	if p := os.Getenv("SCIZOR_CONFIG"); p != "" && *cfgPath == "config/scizor.yaml" {
		cfgPath = &p
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level))

	applyFlags(&cfg.Backtest, *strategyName, *symbols, *start, *end, *capital)

	runCfg, err := buildRunConfig(cfg.Backtest)
	if err != nil {
		log.Fatalf("invalid backtest config: %v", err)
	}

	strat, ok, err := registry.New(cfg.Backtest.Strategy, cfg.Backtest.Params)
	if err != nil {
		log.Fatalf("building strategy %q: %v", cfg.Backtest.Strategy, err)
	}
	if !ok {
		log.Fatalf("unknown strategy %q (known: %s)",
			cfg.Backtest.Strategy, strings.Join(registry.List(), ", "))
	}

	barStore, err := openBarStore(cfg.Storage)
	if err != nil {
		log.Fatalf("opening bar store: %v", err)
	}
	provider := backtest.NewStoreProvider(barStore, domain.Market(cfg.Backtest.Market))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := backtest.Run(ctx, runCfg, strat, provider, nil)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}
	printReport(strat.Name(), res)
}

// applyFlags overlays non-empty flag values onto the config.
func applyFlags(bt *config.BacktestConfig, strategyName, symbols, start, end string, capital float64) {
	if strategyName != "" {
		bt.Strategy = strategyName
	}
	if symbols != "" {
		bt.Symbols = strings.Split(symbols, ",")
		for i := range bt.Symbols {
			bt.Symbols[i] = strings.ToUpper(strings.TrimSpace(bt.Symbols[i]))
		}
	}
	if start != "" {
		bt.StartDate = start
	}
	if end != "" {
		bt.EndDate = end
	}
	if capital > 0 {
		bt.InitialCapital = capital
	}
}

// buildRunConfig translates the YAML config into an engine config.
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

// openBarStore builds the configured storage backend.
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

func printReport(strategyName string, res *backtest.Result) {
	m := res.Metrics
	fmt.Printf("Backtest report: %s\n", strategyName)
	fmt.Printf("  Symbols:         %s\n", strings.Join(res.Symbols, ", "))
	fmt.Printf("  Period:          %s .. %s\n",
		res.Start.Format("2006-01-02"), res.End.Format("2006-01-02"))
	fmt.Printf("  Initial capital: %.2f\n", res.InitialCapital)
	fmt.Printf("  Final value:     %.2f\n", res.FinalValue)
	fmt.Printf("  Total return:    %s\n", pct(m.TotalReturn))
	fmt.Printf("  Annual return:   %s\n", pct(m.AnnualReturn))
	fmt.Printf("  Sharpe ratio:    %s\n", num(m.SharpeRatio))
	fmt.Printf("  Volatility:      %s\n", pct(m.Volatility))
	fmt.Printf("  Max drawdown:    %s\n", pct(m.MaxDrawdown))
	fmt.Println()
	fmt.Printf("  Trades:          %d (%d won / %d lost)\n",
		m.TotalTrades, m.WinningTrades, m.LosingTrades)
	fmt.Printf("  Win rate:        %s\n", pct(m.WinRate))
	fmt.Printf("  Profit factor:   %s\n", num(m.ProfitFactor))
	fmt.Printf("  Avg trade P&L:   %s\n", num(m.AvgTradePnL))
	fmt.Printf("  Avg hold (days): %s\n", num(m.AvgHoldingDays))
	fmt.Printf("  Rejected orders: %d\n", len(res.Rejections))
}

func pct(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}
