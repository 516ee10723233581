// FILE: trader.go
// Package main – The day scheduler driving both session machines.
//
// What's here:
//   • Trader: holds config, broker, journal and the current day's sessions
//   • step(): the core tick fed one completed bar at a time
//   • Finish(): end-of-run finalization (backtests)
//
// Concurrency design:
//   - step() is only ever called from one goroutine (the backtest loop or
//     the live poll loop), so the trader carries no lock. Decisions depend
//     purely on bar order, which is what makes replays deterministic.
//
// Day handling:
//   - A new calendar date (in the session timezone) finalizes the previous
//     day first: any legs still open are force-closed at the last seen bar
//     close and the journal rolls a daily equity row.
//   - Saturdays and Sundays get no sessions; their bars are consumed but
//     ignored.

package main

import (
	"context"
	"log"
	"time"
)

// Trader sequences bars into per-day session machines.
type Trader struct {
	cfg     *Config
	broker  Broker
	journal *Journal

	day      string // date currently in flight, YYYY-MM-DD in cfg.Loc
	lastBar  Bar
	haveBar  bool
	sessions []*Session
}

func NewTrader(cfg *Config, broker Broker, journal *Journal) *Trader {
	return &Trader{cfg: cfg, broker: broker, journal: journal}
}

// Journal exposes the run ledger for reporting.
func (t *Trader) Journal() *Journal { return t.journal }

// Sessions exposes the in-flight day's machines (may be nil on weekends).
func (t *Trader) Sessions() []*Session { return t.sessions }

// step advances the run with one completed bar. Bars must arrive in strictly
// increasing time order; stale or malformed bars are dropped with a warning.
// The only error that comes back is a failed close, which ends the run.
func (t *Trader) step(ctx context.Context, b Bar) error {
	if err := validateBar(b); err != nil {
		log.Printf("[WARN] dropping malformed bar %s: %v", b.Time.Format(time.RFC3339), err)
		return nil
	}
	if t.haveBar && !b.Time.After(t.lastBar.Time) {
		log.Printf("[WARN] dropping out-of-order bar %s (last %s)",
			b.Time.Format(time.RFC3339), t.lastBar.Time.Format(time.RFC3339))
		return nil
	}

	date := b.Time.In(t.cfg.Loc).Format("2006-01-02")
	if date != t.day {
		if err := t.rollDay(ctx, date, b.Time.In(t.cfg.Loc).Weekday()); err != nil {
			return err
		}
	}

	for _, s := range t.sessions {
		if err := s.HandleBar(ctx, b); err != nil {
			return err
		}
	}

	t.lastBar = b
	t.haveBar = true
	return nil
}

// rollDay finalizes the previous trading day and arms the new one.
func (t *Trader) rollDay(ctx context.Context, date string, wd time.Weekday) error {
	if err := t.finalizeDay(ctx); err != nil {
		return err
	}

	t.day = date
	if wd == time.Saturday || wd == time.Sunday {
		t.sessions = nil
		log.Printf("[SESSION] %s: %s, no sessions", date, wd)
		return nil
	}
	t.sessions = []*Session{
		newSession(t.cfg.Morning, t.cfg, t.broker, t.journal, date),
		newSession(t.cfg.Afternoon, t.cfg, t.broker, t.journal, date),
	}
	return nil
}

// finalizeDay force-closes anything the in-flight day left open (at the last
// seen bar close) and rolls the journal's daily equity row. Weekend days run
// no sessions and leave no row.
func (t *Trader) finalizeDay(ctx context.Context) error {
	if t.day == "" || t.sessions == nil {
		return nil
	}
	for _, s := range t.sessions {
		if s.Status() == StatusInPosition && len(s.OpenLegs()) > 0 {
			log.Printf("[SAFETY] %s: day ended with open legs, force-closing at last close %.5f",
				t.day, t.lastBar.Close)
		}
		if err := s.forceExit(ctx, t.lastBar.Close, t.lastBar.Time, "day_end"); err != nil {
			return err
		}
	}
	t.journal.RollDay(t.day, t.lastBar.Time.In(t.cfg.Loc).Weekday())
	t.sessions = nil
	return nil
}

// Finish closes out the run: the backtest loop calls it after the last bar
// so the final day gets the same treatment as a day roll.
func (t *Trader) Finish(ctx context.Context) error {
	return t.finalizeDay(ctx)
}
