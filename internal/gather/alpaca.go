package gather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"scizor/internal/domain"
	"scizor/internal/store"
	"scizor/internal/util"
)

// Compile-time interface check.
var _ Gatherer = (*DailyBarGatherer)(nil)

// DailyBarGatherer fetches daily OHLCV bars for a configured watchlist via
// the Alpaca market-data API and writes them to a bar store. Symbols are
// fetched in batches by a bounded worker pool, rate limited and retried on
// transient failures.
type DailyBarGatherer struct {
	client     *marketdata.Client
	store      store.BarStore
	market     domain.Market
	symbols    []string
	startDate  string
	batchSize  int
	maxWorkers int
	limiter    *util.RateLimiter
	apiKey     string
	apiSecret  string
	baseURL    string // live trading API, for the trading calendar
	log        *slog.Logger
}

// DailyBarOptions configures a DailyBarGatherer.
type DailyBarOptions struct {
	APIKey          string
	APISecret       string
	DataURL         string
	BaseURL         string
	Market          domain.Market
	Symbols         []string
	StartDate       string // YYYY-MM-DD
	BatchSize       int
	MaxWorkers      int
	RateLimitPerMin int
}

// NewDailyBarGatherer creates a DailyBarGatherer writing to s.
func NewDailyBarGatherer(opts DailyBarOptions, s store.BarStore) *DailyBarGatherer {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		clientOpts.BaseURL = opts.DataURL
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}
	maxWorkers := opts.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	rate := opts.RateLimitPerMin
	if rate <= 0 {
		rate = 200
	}

	return &DailyBarGatherer{
		client:     marketdata.NewClient(clientOpts),
		store:      s,
		market:     opts.Market,
		symbols:    opts.Symbols,
		startDate:  opts.StartDate,
		batchSize:  batchSize,
		maxWorkers: maxWorkers,
		limiter:    util.NewRateLimiter(rate),
		apiKey:     opts.APIKey,
		apiSecret:  opts.APISecret,
		baseURL:    opts.BaseURL,
		log:        slog.Default().With("gatherer", "daily-bars"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "daily-bars" }

// Run fetches daily bars for the watchlist from the configured start date
// through the most recent finished trading day and writes them to the
// store. Writes are idempotent: re-running over the same range replaces
// existing bars.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	if len(g.symbols) == 0 {
		return fmt.Errorf("gather: empty watchlist")
	}
	start, err := time.Parse(time.DateOnly, g.startDate)
	if err != nil {
		return fmt.Errorf("gather: parsing start date %q: %w", g.startDate, err)
	}
	end, err := g.endDate()
	if err != nil {
		return fmt.Errorf("gather: determining end date: %w", err)
	}

	batches := splitBatches(g.symbols, g.batchSize)
	g.log.Info("starting daily-bars",
		"symbols", len(g.symbols),
		"batches", len(batches),
		"start", g.startDate,
		"end", end.Format(time.DateOnly),
	)

	batchCh := make(chan int, len(batches))
	for i := range batches {
		batchCh <- i
	}
	close(batchCh)

	var (
		wg        sync.WaitGroup
		totalBars atomic.Int64
		failures  atomic.Int64
		runStart  = time.Now()
	)

	workers := g.maxWorkers
	if workers > len(batches) {
		workers = len(batches)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range batchCh {
				if ctx.Err() != nil {
					return
				}
				n, err := g.gatherBatch(ctx, batches[idx], start, end)
				if err != nil {
					failures.Add(1)
					g.log.Error("batch failed",
						"batch", fmt.Sprintf("%d/%d", idx+1, len(batches)),
						"err", err,
					)
					continue
				}
				totalBars.Add(int64(n))
				g.log.Info("batch done",
					"batch", fmt.Sprintf("%d/%d", idx+1, len(batches)),
					"bars", n,
					"elapsed", time.Since(runStart).Round(time.Second),
				)
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if n := failures.Load(); n > 0 {
		return fmt.Errorf("gather: %d of %d batches failed", n, len(batches))
	}

	g.log.Info("complete",
		"bars", totalBars.Load(),
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	return nil
}

// endDate resolves the last finished trading day for the gatherer's
// market. US dates come from the Alpaca trading calendar, which knows
// exchange holidays; other markets use the local session calendar, which
// models weekends and session close only.
func (g *DailyBarGatherer) endDate() (time.Time, error) {
	if g.market == domain.MarketUS {
		return LatestFinishedTradingDay(g.apiKey, g.apiSecret, g.baseURL)
	}
	cal, err := util.NewTradingCalendar(g.market)
	if err != nil {
		return time.Time{}, err
	}
	return cal.LatestFinishedTradingDay(time.Now()), nil
}

// gatherBatch fetches one symbol batch and writes it to the store,
// retrying transient API failures with backoff.
func (g *DailyBarGatherer) gatherBatch(ctx context.Context, symbols []string, start, end time.Time) (int, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var bars []domain.Bar
	err := util.Retry(ctx, 3, time.Second, func() error {
		var ferr error
		bars, ferr = g.fetchMultiBars(ctx, symbols, start, end)
		return ferr
	})
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, nil
	}

	if err := g.store.WriteBars(ctx, g.market, bars); err != nil {
		return 0, fmt.Errorf("writing bars: %w", err)
	}
	return len(bars), nil
}

// fetchMultiBars fetches daily bars for multiple symbols in one API call.
func (g *DailyBarGatherer) fetchMultiBars(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	multiBars, err := g.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      "sip",
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  ab.Timestamp,
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	return bars, nil
}

// splitBatches chunks symbols into batches of at most size.
func splitBatches(symbols []string, size int) [][]string {
	var batches [][]string
	for i := 0; i < len(symbols); i += size {
		end := i + size
		if end > len(symbols) {
			end = len(symbols)
		}
		batches = append(batches, symbols[i:end])
	}
	return batches
}
