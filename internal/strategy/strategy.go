// Package strategy defines the Strategy interface for trading strategies
// and provides a Registry of named strategy factories. Strategies are
// compiled in and registered at startup; there is no runtime code loading.
package strategy

import (
	"sort"
	"time"

	"scizor/internal/domain"
	"scizor/internal/portfolio"
)

// Window is a per-symbol view of historical bars up to and including the
// current time step. It is read-only by contract: strategies must not
// modify the slices.
type Window map[string][]domain.Bar

// Closes extracts the close-price series for symbol from the window.
func (w Window) Closes(symbol string) []float64 {
	bars := w[symbol]
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// Latest returns the most recent bar for symbol, if the window holds one.
func (w Window) Latest(symbol string) (domain.Bar, bool) {
	bars := w[symbol]
	if len(bars) == 0 {
		return domain.Bar{}, false
	}
	return bars[len(bars)-1], true
}

// Strategy is the contract all trading strategies implement. The engine
// drives it once per time step: GenerateSignals, then signal execution,
// then UpdateState. Strategies never mutate the portfolio directly; all
// position changes flow through returned signals.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Init performs one-time setup before the first GenerateSignals call.
	// Strategies may precompute per-symbol state here.
	Init(symbols []string, start, end time.Time) error

	// GenerateSignals returns zero or more signals for the current step.
	// The order of the returned slice is the execution order.
	GenerateSignals(window Window, ts time.Time, pf portfolio.Snapshot) ([]domain.Signal, error)

	// UpdateState is called after signal execution each step, for
	// strategies that track internal state (e.g. trailing stops)
	// independent of the signals they emitted.
	UpdateState(window Window, ts time.Time, pf portfolio.Snapshot) error
}

// Params is a named bundle of strategy parameters. Factories read the
// parameters they understand and fall back to defaults for the rest.
type Params map[string]float64

// Get returns the named parameter, or fallback when it is absent.
func (p Params) Get(name string, fallback float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return fallback
}

// Factory constructs a strategy instance from a parameter set. The
// optimizer calls the factory once per grid combination so that every run
// gets a fresh instance with no shared state.
type Factory func(params Params) (Strategy, error)

// Registry holds a named collection of strategy factories for lookup and
// enumeration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory to the registry under the given name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New constructs a strategy by name. The second return value indicates
// whether the name was registered.
func (r *Registry) New(name string, params Params) (Strategy, bool, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, false, nil
	}
	s, err := f(params)
	return s, true, err
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
