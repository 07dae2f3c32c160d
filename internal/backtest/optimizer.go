package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"scizor/internal/strategy"
)

// ErrTooManyCombinations reports a parameter grid whose cartesian product
// exceeds the configured ceiling. The optimizer fails fast rather than
// starting a runaway sweep.
var ErrTooManyCombinations = errors.New("parameter grid exceeds combination ceiling")

// Grid maps parameter names to their candidate values.
type Grid map[string][]float64

// Combinations enumerates the full cartesian product in deterministic
// order: names sorted, last name varying fastest. An empty grid yields one
// empty parameter set; a grid with an empty value list yields none.
func (g Grid) Combinations() []strategy.Params {
	names := make([]string, 0, len(g))
	for name, values := range g {
		if len(values) == 0 {
			return nil
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return []strategy.Params{{}}
	}

	total := 1
	for _, name := range names {
		total *= len(g[name])
	}

	combos := make([]strategy.Params, 0, total)
	idx := make([]int, len(names))
	for {
		p := make(strategy.Params, len(names))
		for i, name := range names {
			p[name] = g[name][idx[i]]
		}
		combos = append(combos, p)

		i := len(names) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(g[names[i]]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return combos
		}
	}
}

// Objective scores a completed run; higher is better.
type Objective func(Metrics) float64

// SharpeObjective is the default ranking objective.
func SharpeObjective(m Metrics) float64 { return m.SharpeRatio }

// OptimizerConfig bounds the sweep. Zero Workers means one worker; zero
// MaxCombinations means unbounded.
type OptimizerConfig struct {
	Workers         int
	MaxCombinations int
	Objective       Objective
}

// RunResult is one grid point's outcome. Err is set when the strategy
// factory or the run itself failed (including early termination); such
// entries rank after every successful run.
type RunResult struct {
	Params strategy.Params
	Result *Result
	Score  float64
	Err    error
}

// Optimizer sweeps a strategy's parameter grid with a bounded worker pool.
// Every run gets a fresh strategy instance and portfolio; workers share
// only the provider's read-only bar cache.
type Optimizer struct {
	cfg     OptimizerConfig
	factory strategy.Factory
	logger  *slog.Logger
}

// NewOptimizer creates an optimizer for the given strategy factory. A nil
// logger falls back to slog.Default.
func NewOptimizer(cfg OptimizerConfig, factory strategy.Factory, logger *slog.Logger) *Optimizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Objective == nil {
		cfg.Objective = SharpeObjective
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Optimizer{cfg: cfg, factory: factory, logger: logger.With("component", "optimizer")}
}

// Run backtests every grid combination against the base config and returns
// the results ranked by the objective (descending, ties broken by total
// return). On context cancellation it stops dispatching new runs, waits for
// in-flight runs to finish their current step, and returns the completed
// results together with the context error.
func (o *Optimizer) Run(ctx context.Context, base Config, provider DataProvider, grid Grid) ([]RunResult, error) {
	combos := grid.Combinations()
	if o.cfg.MaxCombinations > 0 && len(combos) > o.cfg.MaxCombinations {
		return nil, fmt.Errorf("optimizer: %d combinations, ceiling %d: %w",
			len(combos), o.cfg.MaxCombinations, ErrTooManyCombinations)
	}
	o.logger.Info("starting sweep", "combinations", len(combos), "workers", o.cfg.Workers)

	jobs := make(chan int)
	results := make([]*RunResult, len(combos))
	var wg sync.WaitGroup
	for w := 0; w < o.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = o.runOne(ctx, base, provider, combos[idx])
			}
		}()
	}

dispatch:
	for i := range combos {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	out := make([]RunResult, 0, len(combos))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	rankResults(out)

	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("optimizer: terminated early after %d of %d runs: %w",
			len(out), len(combos), err)
	}
	return out, nil
}

func (o *Optimizer) runOne(ctx context.Context, base Config, provider DataProvider, params strategy.Params) *RunResult {
	rr := &RunResult{Params: params, Score: math.NaN()}

	strat, err := o.factory(params)
	if err != nil {
		rr.Err = fmt.Errorf("build strategy: %w", err)
		return rr
	}
	res, err := Run(ctx, base, strat, provider, o.logger)
	if err != nil {
		rr.Err = err
		return rr
	}
	rr.Result = res
	rr.Score = o.cfg.Objective(res.Metrics)
	return rr
}

// rankResults orders results best-first: successful runs by score
// descending, NaN scores after real ones, ties broken by total return,
// failed runs last.
func rankResults(rs []RunResult) {
	sort.SliceStable(rs, func(i, j int) bool { return betterRun(rs[i], rs[j]) })
}

func betterRun(a, b RunResult) bool {
	if (a.Err == nil) != (b.Err == nil) {
		return a.Err == nil
	}
	if a.Err != nil {
		return false
	}
	aNaN, bNaN := math.IsNaN(a.Score), math.IsNaN(b.Score)
	switch {
	case aNaN && bNaN:
		return a.Result.Metrics.TotalReturn > b.Result.Metrics.TotalReturn
	case aNaN || bNaN:
		return bNaN
	case a.Score != b.Score:
		return a.Score > b.Score
	}
	return a.Result.Metrics.TotalReturn > b.Result.Metrics.TotalReturn
}
