package util

import (
	"fmt"
	"time"

	"scizor/internal/domain"
)

// session is a market's regular trading hours in its local timezone.
type session struct {
	tz        string
	openHour  int
	openMin   int
	closeHour int
	closeMin  int
}

var sessions = map[domain.Market]session{
	// NYSE/NASDAQ regular session.
	domain.MarketUS: {tz: "America/New_York", openHour: 9, openMin: 30, closeHour: 16},
	// ASX normal trading.
	domain.MarketASX: {tz: "Australia/Sydney", openHour: 10, closeHour: 16},
}

// TradingCalendar provides market-hours awareness for a specific market.
// Weekends are closed; exchange holidays are not modelled.
type TradingCalendar struct {
	market domain.Market
	loc    *time.Location
	sess   session
}

// NewTradingCalendar creates a TradingCalendar for the given market.
func NewTradingCalendar(market domain.Market) (*TradingCalendar, error) {
	sess, ok := sessions[market]
	if !ok {
		return nil, fmt.Errorf("no trading session defined for market %q", market)
	}
	loc, err := time.LoadLocation(sess.tz)
	if err != nil {
		return nil, fmt.Errorf("loading %s timezone: %w", sess.tz, err)
	}
	return &TradingCalendar{market: market, loc: loc, sess: sess}, nil
}

// IsTradingDay reports whether t falls on a weekday in the market's
// timezone.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	wd := t.In(tc.loc).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsMarketOpen reports whether the market's regular session is open at t.
func (tc *TradingCalendar) IsMarketOpen(t time.Time) bool {
	if !tc.IsTradingDay(t) {
		return false
	}
	local := t.In(tc.loc)
	open := tc.sessionTime(local, tc.sess.openHour, tc.sess.openMin)
	close := tc.sessionTime(local, tc.sess.closeHour, tc.sess.closeMin)
	return !local.Before(open) && local.Before(close)
}

// NextOpen returns the next session open at or after t.
func (tc *TradingCalendar) NextOpen(t time.Time) time.Time {
	local := t.In(tc.loc)
	for {
		open := tc.sessionTime(local, tc.sess.openHour, tc.sess.openMin)
		if tc.IsTradingDay(open) && !open.Before(local) {
			return open
		}
		local = tc.sessionTime(local.AddDate(0, 0, 1), 0, 0)
	}
}

// NextClose returns the next session close at or after t.
func (tc *TradingCalendar) NextClose(t time.Time) time.Time {
	local := t.In(tc.loc)
	for {
		close := tc.sessionTime(local, tc.sess.closeHour, tc.sess.closeMin)
		if tc.IsTradingDay(close) && !close.Before(local) {
			return close
		}
		local = tc.sessionTime(local.AddDate(0, 0, 1), 0, 0)
	}
}

// LatestFinishedTradingDay returns the most recent trading day whose
// session close is at or before t, as a midnight date in the market's
// timezone. Daily bars for that day are complete and safe to fetch.
func (tc *TradingCalendar) LatestFinishedTradingDay(t time.Time) time.Time {
	now := t.In(tc.loc)
	day := now
	for {
		close := tc.sessionTime(day, tc.sess.closeHour, tc.sess.closeMin)
		if tc.IsTradingDay(day) && !close.After(now) {
			return tc.sessionTime(day, 0, 0)
		}
		day = day.AddDate(0, 0, -1)
	}
}

func (tc *TradingCalendar) sessionTime(day time.Time, hour, min int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, tc.loc)
}
