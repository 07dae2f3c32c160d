package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"scizor/internal/domain"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, 0, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRetryCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Retry(ctx, 3, time.Hour, func() error {
		attempts++
		return errors.New("transient error")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Retry error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times before cancellation, want 1", attempts)
	}
}

func TestRateLimiterNew(t *testing.T) {
	rl := NewRateLimiter(60)
	if rl == nil {
		t.Fatal("NewRateLimiter returned nil")
	}
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait should not block: %v", err)
	}
}

func TestRateLimiterSpacesCalls(t *testing.T) {
	// 6000 per minute is a 10ms interval; the third call cannot start
	// before 20ms have passed.
	rl := NewRateLimiter(6000)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("three calls took %v, want at least 20ms", elapsed)
	}
}

func TestRateLimiterCancelled(t *testing.T) {
	rl := NewRateLimiter(1)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait error = %v, want context.Canceled", err)
	}
}

func TestTradingCalendarUS(t *testing.T) {
	cal, err := NewTradingCalendar(domain.MarketUS)
	if err != nil {
		t.Fatalf("NewTradingCalendar: %v", err)
	}
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("loading ET: %v", err)
	}

	// Wednesday 2024-01-10, mid-session.
	open := time.Date(2024, 1, 10, 12, 0, 0, 0, et)
	if !cal.IsMarketOpen(open) {
		t.Error("US market should be open Wednesday noon ET")
	}
	// Before the bell.
	if cal.IsMarketOpen(time.Date(2024, 1, 10, 9, 0, 0, 0, et)) {
		t.Error("US market should be closed at 09:00 ET")
	}
	// Saturday.
	if cal.IsMarketOpen(time.Date(2024, 1, 13, 12, 0, 0, 0, et)) {
		t.Error("US market should be closed on Saturday")
	}

	// NextOpen from Saturday lands on Monday 09:30.
	next := cal.NextOpen(time.Date(2024, 1, 13, 12, 0, 0, 0, et))
	want := time.Date(2024, 1, 15, 9, 30, 0, 0, et)
	if !next.Equal(want) {
		t.Errorf("NextOpen = %v, want %v", next, want)
	}
}

func TestTradingCalendarLatestFinishedTradingDay(t *testing.T) {
	us, err := NewTradingCalendar(domain.MarketUS)
	if err != nil {
		t.Fatalf("NewTradingCalendar(US): %v", err)
	}
	et, _ := time.LoadLocation("America/New_York")

	// Mid-session Wednesday: today has not closed, so Tuesday is the
	// latest finished day.
	got := us.LatestFinishedTradingDay(time.Date(2024, 1, 10, 12, 0, 0, 0, et))
	if want := time.Date(2024, 1, 9, 0, 0, 0, 0, et); !got.Equal(want) {
		t.Errorf("mid-session = %v, want %v", got, want)
	}
	// After Wednesday's close the same day counts.
	got = us.LatestFinishedTradingDay(time.Date(2024, 1, 10, 17, 0, 0, 0, et))
	if want := time.Date(2024, 1, 10, 0, 0, 0, 0, et); !got.Equal(want) {
		t.Errorf("post-close = %v, want %v", got, want)
	}
	// Sunday rolls back to Friday.
	got = us.LatestFinishedTradingDay(time.Date(2024, 1, 14, 12, 0, 0, 0, et))
	if want := time.Date(2024, 1, 12, 0, 0, 0, 0, et); !got.Equal(want) {
		t.Errorf("weekend = %v, want %v", got, want)
	}

	asx, err := NewTradingCalendar(domain.MarketASX)
	if err != nil {
		t.Fatalf("NewTradingCalendar(ASX): %v", err)
	}
	syd, _ := time.LoadLocation("Australia/Sydney")

	// Monday before the Sydney open: Friday is the latest finished day.
	got = asx.LatestFinishedTradingDay(time.Date(2024, 1, 8, 9, 0, 0, 0, syd))
	if want := time.Date(2024, 1, 5, 0, 0, 0, 0, syd); !got.Equal(want) {
		t.Errorf("ASX pre-open Monday = %v, want %v", got, want)
	}
}

func TestTradingCalendarUnknownMarket(t *testing.T) {
	if _, err := NewTradingCalendar(domain.Market("lse")); err == nil {
		t.Error("NewTradingCalendar should reject an unknown market")
	}
}
