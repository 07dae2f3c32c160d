package domain

import (
	"testing"
	"time"
)

func TestZeroValues(t *testing.T) {
	// Verify Bar can be instantiated with zero values.
	bar := Bar{}
	if bar.Symbol != "" {
		t.Error("expected empty Symbol for zero-value Bar")
	}
	if !bar.Timestamp.IsZero() {
		t.Error("expected zero Timestamp for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 {
		t.Error("expected zero OHLC values for zero-value Bar")
	}
	if bar.Volume != 0 || bar.TradeCount != 0 || bar.VWAP != 0 {
		t.Error("expected zero Volume/TradeCount/VWAP for zero-value Bar")
	}

	// Verify enum constants are defined correctly.
	if SignalBuy != "BUY" || SignalSell != "SELL" || SignalClose != "CLOSE" {
		t.Error("SignalType constants have unexpected values")
	}
	if OrderMarket != "MARKET" {
		t.Errorf("OrderMarket = %q, want %q", OrderMarket, "MARKET")
	}
	if MarketASX != "asx" || MarketUS != "us" {
		t.Error("Market constants have unexpected values")
	}
}

func TestSideSign(t *testing.T) {
	if got := SideLong.Sign(); got != 1 {
		t.Errorf("SideLong.Sign() = %v, want 1", got)
	}
	if got := SideShort.Sign(); got != -1 {
		t.Errorf("SideShort.Sign() = %v, want -1", got)
	}
}

func TestPositionMarketValue(t *testing.T) {
	now := time.Now()

	long := Position{
		Symbol:     "BHP",
		Side:       SideLong,
		Quantity:   100,
		EntryPrice: 40,
		EntryTime:  now,
		MarkPrice:  42,
	}
	if got := long.MarketValue(); got != 4200 {
		t.Errorf("long MarketValue() = %v, want 4200", got)
	}

	short := Position{
		Symbol:     "CBA",
		Side:       SideShort,
		Quantity:   10,
		EntryPrice: 100,
		EntryTime:  now,
		MarkPrice:  90,
	}
	if got := short.MarketValue(); got != -900 {
		t.Errorf("short MarketValue() = %v, want -900", got)
	}
}
