// FILE: session.go
// Package main – Per-session range-breakout state machine.
//
// One Session instance exists per configured window (morning, afternoon) per
// trading day. It consumes completed bars one at a time, in time order, with
// no look-ahead, and owns every piece of mutable strategy state for its
// window. The same HandleBar path runs in backtests and live, which is what
// makes replays reproduce live decisions bar for bar.
//
// Lifecycle: AWAITING_RANGE → AWAITING_BREAKOUT → IN_POSITION → CLOSED.
// While IN_POSITION the per-bar checks run in a fixed order:
//   1. forced time exit   (exogenous cutoff wins over everything)
//   2. take profit        (favored over reversal on freak bars hitting both)
//   3. reversal           (close all, flip with scaled size, count capped)
//   4. scale-ins          (consume pending retracement levels, in list order)
//
// Failure policy: a rejected open is logged and never retried; the state the
// machine already reached stands and the position simply has one fewer leg.
// A failed close is fatal to the session-day and escalates to the caller.

package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// SessionStatus is the lifecycle tag for one session-day.
type SessionStatus int

const (
	StatusAwaitingRange SessionStatus = iota
	StatusAwaitingBreakout
	StatusInPosition
	StatusClosed
)

func (s SessionStatus) String() string {
	switch s {
	case StatusAwaitingRange:
		return "AWAITING_RANGE"
	case StatusAwaitingBreakout:
		return "AWAITING_BREAKOUT"
	case StatusInPosition:
		return "IN_POSITION"
	default:
		return "CLOSED"
	}
}

// ExitReason explains why a session's legs were closed.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
	ExitReversal   ExitReason = "REVERSAL"
	ExitTimeExit   ExitReason = "TIME_EXIT"
)

// Breakout records the close that opened (or flipped) the session position.
type Breakout struct {
	Side  OrderSide
	Price float64
	Time  time.Time
}

// SessionSpec is the immutable clock layout of one session window.
// EntryCutoff and ExitTime are optional (ClockUnset): the morning session
// typically carries a cutoff, the afternoon one a forced exit.
type SessionSpec struct {
	Name        string
	RangeStart  DayClock // range window [RangeStart, RangeEnd)
	RangeEnd    DayClock
	EntryStart  DayClock // earliest initial entry
	EntryCutoff DayClock // last minute (inclusive) an initial entry may fire
	ExitTime    DayClock // force-close at/after this minute
}

// Session is the state machine for one window on one trading day.
type Session struct {
	spec    SessionSpec
	cfg     *Config
	broker  Broker
	journal *Journal
	date    string // session-day, YYYY-MM-DD in cfg.Loc

	status    SessionStatus
	windowBuf []Bar // bars collected inside the range window
	rng       Range
	bo        *Breakout
	tp        float64
	legs      []*Leg
	pending   []float64 // unconsumed retracement fractions, in fire order
	reversals int
}

func newSession(spec SessionSpec, cfg *Config, broker Broker, journal *Journal, date string) *Session {
	return &Session{
		spec:    spec,
		cfg:     cfg,
		broker:  broker,
		journal: journal,
		date:    date,
		status:  StatusAwaitingRange,
	}
}

func (s *Session) Status() SessionStatus { return s.status }
func (s *Session) Reversals() int        { return s.reversals }
func (s *Session) OpenLegs() []*Leg      { return s.legs }

// HandleBar advances the machine with one completed bar. The only error it
// returns is a failed close, which the scheduler escalates; every other
// condition is handled (and logged) internally.
func (s *Session) HandleBar(ctx context.Context, b Bar) error {
	if s.status == StatusClosed {
		return nil
	}
	clk := dayClockOf(b.Time, s.cfg.Loc)

	// Forced exit is evaluated before anything else can consume the bar.
	if s.spec.ExitTime.Set() && clk >= s.spec.ExitTime {
		return s.forceExit(ctx, b.Close, b.Time, "exit_time")
	}

	if s.status == StatusAwaitingRange {
		s.observeRange(b, clk)
	}
	if s.status == StatusAwaitingBreakout {
		if s.tryEnter(ctx, b, clk) {
			// The breakout bar itself is never managed: scales, reversals
			// and TP start with the next bar.
			return nil
		}
	}
	if s.status == StatusInPosition {
		return s.manage(ctx, b)
	}
	return nil
}

// observeRange accumulates window bars and finalizes the range on the first
// bar at or past the window end.
func (s *Session) observeRange(b Bar, clk DayClock) {
	if clk < s.spec.RangeStart {
		return
	}
	if clk < s.spec.RangeEnd {
		s.windowBuf = append(s.windowBuf, b)
		return
	}
	rng, ok := buildRange(s.windowBuf, s.cfg.RangeMinBars)
	s.windowBuf = nil
	if !ok {
		s.close("skipped")
		log.Printf("[SESSION] %s %s: no range (need >=%d bars in %s..%s), skipping day",
			s.date, s.spec.Name, s.cfg.RangeMinBars, s.spec.RangeStart, s.spec.RangeEnd)
		return
	}
	s.rng = rng
	s.status = StatusAwaitingBreakout
	log.Printf("[SESSION] %s %s: range %s", s.date, s.spec.Name, s.rng)
}

// tryEnter opens the initial leg on the first qualifying breakout close.
// Returns true when this bar produced the entry.
func (s *Session) tryEnter(ctx context.Context, b Bar, clk DayClock) bool {
	if s.spec.EntryCutoff.Set() && clk > s.spec.EntryCutoff {
		s.close("cutoff")
		log.Printf("[SESSION] %s %s: entry cutoff %s passed with no breakout",
			s.date, s.spec.Name, s.spec.EntryCutoff)
		return false
	}
	if clk < s.spec.EntryStart {
		return false
	}
	side, ok := breakoutSide(s.rng, b.Close)
	if !ok {
		return false
	}

	s.bo = &Breakout{Side: side, Price: b.Close, Time: b.Time}
	s.tp = takeProfitPrice(side, b.Close, s.cfg.TPDistance())
	s.pending = append([]float64(nil), s.cfg.ScaleLevels...)
	s.status = StatusInPosition
	log.Printf("[SESSION] %s %s: breakout %s at %.5f (range %s) tp=%.5f",
		s.date, s.spec.Name, side, b.Close, s.rng, s.tp)

	s.open(ctx, side, b.Close, b.Time, RoleInitial)
	return true
}

// manage runs the in-position checks for one bar: TP, then reversal, then
// scale-ins (the forced exit was already handled by HandleBar).
func (s *Session) manage(ctx context.Context, b Bar) error {
	if tpHit(s.bo.Side, b, s.tp) {
		if err := s.closeAll(ctx, s.tp, b.Time, ExitTakeProfit); err != nil {
			return err
		}
		s.close("take_profit")
		log.Printf("[SESSION] %s %s: take profit hit at %.5f", s.date, s.spec.Name, s.tp)
		return nil
	}
	if isReversal(s.rng, s.bo.Side, b.Close) {
		return s.reverse(ctx, b)
	}
	s.scaleIn(ctx, b)
	return nil
}

// reverse closes everything at the trigger close and, below the reversal
// cap, re-enters the opposite direction at scaled size with a fresh pending
// level set and take-profit.
func (s *Session) reverse(ctx context.Context, b Bar) error {
	if err := s.closeAll(ctx, b.Close, b.Time, ExitReversal); err != nil {
		return err
	}
	s.reversals++
	mtxReversals.WithLabelValues(s.spec.Name).Inc()

	if s.reversals >= s.cfg.MaxReversals {
		s.close("reversal_limit")
		log.Printf("[SESSION] %s %s: reversal #%d hit the cap, session done",
			s.date, s.spec.Name, s.reversals)
		return nil
	}

	side := s.bo.Side.Opposite()
	s.bo = &Breakout{Side: side, Price: b.Close, Time: b.Time}
	s.tp = takeProfitPrice(side, b.Close, s.cfg.TPDistance())
	s.pending = append([]float64(nil), s.cfg.ReversalScaleLevels...)
	log.Printf("[SESSION] %s %s: reversal #%d, flipping %s at %.5f tp=%.5f",
		s.date, s.spec.Name, s.reversals, side, b.Close, s.tp)

	s.open(ctx, side, b.Close, b.Time, RoleInitial)
	return nil
}

// scaleIn consumes every pending level the bar retraced to, in list order.
// A consumed level never re-triggers, even when the open was rejected.
func (s *Session) scaleIn(ctx context.Context, b Bar) {
	if len(s.pending) == 0 {
		return
	}
	var remaining []float64
	for _, pct := range s.pending {
		level := scaleLevelPrice(s.rng, s.bo.Side, pct)
		if !scaleHit(s.bo.Side, b, level) {
			remaining = append(remaining, pct)
			continue
		}
		log.Printf("[SESSION] %s %s: retraced to %.0f%% level %.5f", s.date, s.spec.Name, pct*100, level)
		s.open(ctx, s.bo.Side, level, b.Time, scaleRole(pct))
	}
	s.pending = remaining
}

// forceExit closes any open legs at the given price and ends the session.
// Safe to call on a session that already finished.
func (s *Session) forceExit(ctx context.Context, price float64, at time.Time, why string) error {
	if s.status == StatusClosed {
		return nil
	}
	if s.status == StatusInPosition && len(s.legs) > 0 {
		if err := s.closeAll(ctx, price, at, ExitTimeExit); err != nil {
			return err
		}
		log.Printf("[SESSION] %s %s: time exit (%s), closed at %.5f", s.date, s.spec.Name, why, price)
	}
	s.close("time_exit")
	return nil
}

// lotFor returns the size of the next leg: the base lot, doubled (by
// ReversalSizeMult) once the session has flipped at least once.
func (s *Session) lotFor() float64 {
	if s.reversals >= 1 {
		return s.cfg.LotSize * s.cfg.ReversalSizeMult
	}
	return s.cfg.LotSize
}

// open places one leg. Rejections are logged and counted but do not unwind
// any state the machine already committed.
func (s *Session) open(ctx context.Context, side OrderSide, price float64, at time.Time, role LegRole) {
	req := OrderRequest{
		Symbol:     s.cfg.Symbol,
		Side:       side,
		Lot:        s.lotFor(),
		PriceHint:  price,
		TakeProfit: s.tp,
		Role:       role,
		Session:    s.spec.Name,
		Time:       at,
	}
	leg, err := s.broker.Open(ctx, req)
	if err != nil {
		mtxOrderRejects.WithLabelValues(strings.ToLower(string(side))).Inc()
		log.Printf("[ORDER] %s %s: open %s %s lot=%.2f at %.5f rejected: %v",
			s.date, s.spec.Name, role, side, req.Lot, price, err)
		return
	}
	s.legs = append(s.legs, leg)
	mtxOrders.WithLabelValues(s.broker.Name(), strings.ToLower(string(side))).Inc()
	log.Printf("[ORDER] %s %s: %s %s lot=%.2f at %.5f id=%s",
		s.date, s.spec.Name, role, side, leg.Lot, leg.EntryPrice, leg.ID)
}

// closeAll exits every open leg at one shared price/time/reason and records
// the resulting trades. The caller owns the status transition on success; a
// broker failure marks the session CLOSED and is returned for escalation.
func (s *Session) closeAll(ctx context.Context, price float64, at time.Time, reason ExitReason) error {
	if len(s.legs) == 0 {
		return nil
	}
	fills, err := s.broker.CloseAll(ctx, s.legs, price, at)
	if err != nil {
		s.status = StatusClosed
		return fmt.Errorf("%s %s: close %d legs (%s): %w", s.date, s.spec.Name, len(s.legs), reason, err)
	}
	for _, f := range fills {
		tr := newTradeRecord(f, reason, s.cfg.PricePoint)
		s.journal.Record(tr)
		mtxExitReasons.WithLabelValues(strings.ToLower(string(reason)), strings.ToLower(string(f.Leg.Side))).Inc()
	}
	log.Printf("[SESSION] %s %s: closed %d legs at %.5f reason=%s balance=%.2f",
		s.date, s.spec.Name, len(fills), price, reason, s.journal.Balance())
	s.legs = nil
	mtxPnL.Set(s.journal.Balance())
	return nil
}

// close marks the session terminal and records the outcome.
func (s *Session) close(outcome string) {
	s.status = StatusClosed
	mtxSessions.WithLabelValues(s.spec.Name, outcome).Inc()
}
