package strategy

import (
	"testing"
	"time"

	"scizor/internal/domain"
	"scizor/internal/portfolio"
)

// stubStrategy is a minimal Strategy implementation used in registry tests.
type stubStrategy struct {
	name string
}

func (s *stubStrategy) Name() string                                  { return s.name }
func (s *stubStrategy) Init(_ []string, _, _ time.Time) error         { return nil }
func (s *stubStrategy) GenerateSignals(_ Window, _ time.Time, _ portfolio.Snapshot) ([]domain.Signal, error) {
	return nil, nil
}
func (s *stubStrategy) UpdateState(_ Window, _ time.Time, _ portfolio.Snapshot) error { return nil }

func TestRegistryRegisterAndNew(t *testing.T) {
	r := NewRegistry()
	r.Register("test-strategy", func(_ Params) (Strategy, error) {
		return &stubStrategy{name: "test-strategy"}, nil
	})

	got, ok, err := r.New("test-strategy", nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if !ok {
		t.Fatal("New returned false for registered strategy")
	}
	if got.Name() != "test-strategy" {
		t.Errorf("New returned strategy with Name() = %q, want %q", got.Name(), "test-strategy")
	}
}

func TestRegistryNew_NotFound(t *testing.T) {
	r := NewRegistry()
	_, ok, _ := r.New("nonexistent", nil)
	if ok {
		t.Error("New returned true for unregistered strategy")
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	factory := func(_ Params) (Strategy, error) { return &stubStrategy{}, nil }
	r.Register("beta", factory)
	r.Register("alpha", factory)

	names := r.List()
	if len(names) != 2 {
		t.Fatalf("List returned %d names, want 2", len(names))
	}
	// List returns sorted names.
	if names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("List returned %v, want [alpha beta]", names)
	}
}

func TestParamsGet(t *testing.T) {
	p := Params{"short": 5}
	if got := p.Get("short", 10); got != 5 {
		t.Errorf("Get(short) = %v, want 5", got)
	}
	if got := p.Get("long", 20); got != 20 {
		t.Errorf("Get(long) = %v, want fallback 20", got)
	}
}

func TestWindowHelpers(t *testing.T) {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	w := Window{
		"BHP": {
			{Symbol: "BHP", Timestamp: ts, Close: 40},
			{Symbol: "BHP", Timestamp: ts.Add(24 * time.Hour), Close: 41},
		},
	}

	closes := w.Closes("BHP")
	if len(closes) != 2 || closes[0] != 40 || closes[1] != 41 {
		t.Errorf("Closes(BHP) = %v, want [40 41]", closes)
	}

	latest, ok := w.Latest("BHP")
	if !ok || latest.Close != 41 {
		t.Errorf("Latest(BHP) = %+v, %v; want close 41", latest, ok)
	}
	if _, ok := w.Latest("CBA"); ok {
		t.Error("Latest(CBA) should report no bar")
	}
}
