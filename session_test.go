// FILE: session_test.go
// Package main – Scenario tests for the per-session state machine.
//
// Bars are hand-written around a [1.1000, 1.1020] range so every level and
// boundary is easy to eyeball: TP distance is 0.0058 (580 points), the BUY
// scale levels sit at 1.1005 / 1.1010 / 1.1015.

package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dc(t *testing.T, s string) DayClock {
	t.Helper()
	d, err := parseDayClock(s)
	require.NoError(t, err)
	return d
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Symbol:     "XAUUSD",
		Timeframe:  "5m",
		PricePoint: 0.00001,
		LotSize:    0.01,

		TPUnits:             580,
		ScaleLevels:         []float64{0.75, 0.50, 0.25},
		ReversalScaleLevels: []float64{0.50},
		ReversalSizeMult:    2.0,
		MaxReversals:        2,
		RangeMinBars:        1,

		Morning: SessionSpec{
			Name:        "morning",
			RangeStart:  dc(t, "10:00"),
			RangeEnd:    dc(t, "10:15"),
			EntryStart:  dc(t, "10:15"),
			EntryCutoff: dc(t, "16:29"),
			ExitTime:    ClockUnset,
		},
		Afternoon: SessionSpec{
			Name:        "afternoon",
			RangeStart:  dc(t, "16:30"),
			RangeEnd:    dc(t, "16:45"),
			EntryStart:  dc(t, "16:45"),
			EntryCutoff: ClockUnset,
			ExitTime:    dc(t, "23:55"),
		},
		Timezone: "UTC",
		Loc:      time.UTC,

		InitialBalance: 10000,
	}
}

// mk builds a bar on Monday 2024-03-04 at the given wall-clock minute.
func mk(t *testing.T, hhmm string, o, h, l, c float64) Bar {
	t.Helper()
	tt, err := time.Parse(time.RFC3339, "2024-03-04T"+hhmm+":00Z")
	require.NoError(t, err)
	b := Bar{Time: tt, Open: o, High: h, Low: l, Close: c}
	require.NoError(t, validateBar(b), "test bar must be well formed")
	return b
}

// rangeBars fills the morning range window so the band is [1.1000, 1.1020].
func rangeBars(t *testing.T) []Bar {
	t.Helper()
	return []Bar{
		mk(t, "10:00", 1.1005, 1.1012, 1.1000, 1.1010),
		mk(t, "10:05", 1.1010, 1.1020, 1.1006, 1.1018),
		mk(t, "10:10", 1.1018, 1.1019, 1.1004, 1.1008),
	}
}

func newMorning(t *testing.T) (*Session, *Journal, *PaperBroker) {
	t.Helper()
	cfg := testConfig(t)
	j := NewJournal(cfg.InitialBalance, cfg.Loc)
	b := NewPaperBroker()
	return newSession(cfg.Morning, cfg, b, j, "2024-03-04"), j, b
}

func feed(t *testing.T, s *Session, bars ...Bar) {
	t.Helper()
	for _, b := range bars {
		require.NoError(t, s.HandleBar(context.Background(), b))
	}
}

func TestSessionBuyBreakoutScalesAndTakeProfit(t *testing.T) {
	s, j, pb := newMorning(t)

	feed(t, s, rangeBars(t)...)
	assert.Equal(t, StatusAwaitingRange, s.Status())

	// The range-end bar both forms the range and breaks out above it. The
	// deep low would touch every scale level, but the entry bar is never
	// managed: only the initial leg may exist after it.
	feed(t, s, mk(t, "10:15", 1.1019, 1.1026, 1.1004, 1.1025))
	require.Equal(t, StatusInPosition, s.Status())
	require.Len(t, s.OpenLegs(), 1)
	initial := s.OpenLegs()[0]
	assert.Equal(t, RoleInitial, initial.Role)
	assert.Equal(t, SideBuy, initial.Side)
	assert.Equal(t, 1.1025, initial.EntryPrice)
	assert.Equal(t, 0.01, initial.Lot)
	assert.InDelta(t, 1.1083, initial.TakeProfit, 1e-9)

	// Shallow dip reaches only the 25% level at 1.1015.
	feed(t, s, mk(t, "10:20", 1.1024, 1.1024, 1.1012, 1.1018))
	require.Len(t, s.OpenLegs(), 2)
	assert.Equal(t, RoleScale25, s.OpenLegs()[1].Role)
	assert.InDelta(t, 1.1015, s.OpenLegs()[1].EntryPrice, 1e-9)

	// Deep dip reaches 75% and 50% together; both fire on one bar, entries
	// at the level prices, in list order.
	feed(t, s, mk(t, "10:25", 1.1018, 1.1018, 1.1003, 1.1009))
	require.Len(t, s.OpenLegs(), 4)
	assert.Equal(t, RoleScale75, s.OpenLegs()[2].Role)
	assert.InDelta(t, 1.1005, s.OpenLegs()[2].EntryPrice, 1e-9)
	assert.Equal(t, RoleScale50, s.OpenLegs()[3].Role)
	assert.InDelta(t, 1.1010, s.OpenLegs()[3].EntryPrice, 1e-9)

	// Consumed levels never re-trigger.
	feed(t, s, mk(t, "10:30", 1.1009, 1.1010, 1.1001, 1.1006))
	assert.Len(t, s.OpenLegs(), 4)

	// TP touch closes everything at the TP price, one shared exit.
	tpBar := mk(t, "10:35", 1.1008, 1.1085, 1.1007, 1.1080)
	feed(t, s, tpBar)
	assert.Equal(t, StatusClosed, s.Status())
	assert.Empty(t, s.OpenLegs())
	assert.Zero(t, pb.OpenLegs())

	trades := j.Trades()
	require.Len(t, trades, 4)
	for _, tr := range trades {
		assert.Equal(t, ExitTakeProfit, tr.ExitReason)
		assert.InDelta(t, 1.1083, tr.ExitPrice, 1e-9)
		assert.Equal(t, tpBar.Time, tr.ExitTime)
	}
	// 58 + 68 + 78 + 73 pips at $1/pip for 0.01 lots.
	assert.InDelta(t, 58, trades[0].Pips, 1e-6)
	assert.InDelta(t, 68, trades[1].Pips, 1e-6)
	assert.InDelta(t, 78, trades[2].Pips, 1e-6)
	assert.InDelta(t, 73, trades[3].Pips, 1e-6)
	assert.InDelta(t, 10277, j.Balance(), 1e-6)

	// Terminal: later bars are ignored.
	feed(t, s, mk(t, "10:40", 1.1080, 1.1090, 1.1075, 1.1088))
	assert.Len(t, j.Trades(), 4)
}

func TestSessionBoundaryCloseDoesNotEnter(t *testing.T) {
	s, j, _ := newMorning(t)
	feed(t, s, rangeBars(t)...)

	// Closes exactly on the band never trigger.
	feed(t, s, mk(t, "10:15", 1.1018, 1.1022, 1.1010, 1.1020))
	assert.Equal(t, StatusAwaitingBreakout, s.Status())
	feed(t, s, mk(t, "10:20", 1.1010, 1.1012, 1.0998, 1.1000))
	assert.Equal(t, StatusAwaitingBreakout, s.Status())
	assert.Empty(t, j.Trades())

	// The first strictly-outside close does.
	feed(t, s, mk(t, "10:25", 1.1001, 1.1001, 1.0992, 1.0995))
	require.Equal(t, StatusInPosition, s.Status())
	assert.Equal(t, SideSell, s.OpenLegs()[0].Side)
}

func TestSessionReversalFlipAndCap(t *testing.T) {
	s, j, _ := newMorning(t)
	feed(t, s, rangeBars(t)...)
	feed(t, s, mk(t, "10:15", 1.1019, 1.1026, 1.1018, 1.1025))
	require.Equal(t, StatusInPosition, s.Status())

	// Close strictly below the original range low: flip to SELL at 2x lot
	// with the reversal pending set.
	revBar := mk(t, "10:20", 1.1020, 1.1021, 1.0994, 1.0995)
	feed(t, s, revBar)
	require.Equal(t, StatusInPosition, s.Status())
	assert.Equal(t, 1, s.Reversals())
	require.Len(t, s.OpenLegs(), 1)
	flip := s.OpenLegs()[0]
	assert.Equal(t, SideSell, flip.Side)
	assert.Equal(t, RoleInitial, flip.Role, "reversal re-entries are initial legs")
	assert.Equal(t, 0.02, flip.Lot)
	assert.Equal(t, 1.0995, flip.EntryPrice)
	assert.InDelta(t, 1.0937, flip.TakeProfit, 1e-9)

	require.Len(t, j.Trades(), 1)
	assert.Equal(t, ExitReversal, j.Trades()[0].ExitReason)
	assert.Equal(t, revBar.Time, j.Trades()[0].ExitTime)
	assert.InDelta(t, -30, j.Trades()[0].Pips, 1e-6)

	// SELL retracement level: low + 0.50*size = 1.1010. Doubled lot there too.
	feed(t, s, mk(t, "10:25", 1.0996, 1.1012, 1.0996, 1.1008))
	require.Len(t, s.OpenLegs(), 2)
	assert.Equal(t, RoleScale50, s.OpenLegs()[1].Role)
	assert.InDelta(t, 1.1010, s.OpenLegs()[1].EntryPrice, 1e-9)
	assert.Equal(t, 0.02, s.OpenLegs()[1].Lot)

	// Second reversal hits the cap: close everything, no re-entry.
	feed(t, s, mk(t, "10:30", 1.1009, 1.1022, 1.1008, 1.1021))
	assert.Equal(t, StatusClosed, s.Status())
	assert.Equal(t, 2, s.Reversals())
	assert.Empty(t, s.OpenLegs())

	trades := j.Trades()
	require.Len(t, trades, 3)
	assert.Equal(t, ExitReversal, trades[1].ExitReason)
	assert.Equal(t, ExitReversal, trades[2].ExitReason)
	assert.InDelta(t, -26, trades[1].Pips, 1e-6) // 1.0995 -> 1.1021 short
	assert.InDelta(t, -11, trades[2].Pips, 1e-6) // 1.1010 -> 1.1021 short
	// -30*1 + -26*2 + -11*2
	assert.InDelta(t, 10000-30-52-22, j.Balance(), 1e-6)
}

func TestSessionTakeProfitBeatsReversalOnSameBar(t *testing.T) {
	s, j, _ := newMorning(t)
	feed(t, s, rangeBars(t)...)
	feed(t, s, mk(t, "10:15", 1.1019, 1.1026, 1.1018, 1.1025))

	// High tags the TP and the close is out the other side of the band.
	// TP is checked first, so the session ends flat with a win and no flip.
	feed(t, s, mk(t, "10:20", 1.1030, 1.1090, 1.0985, 1.0990))
	assert.Equal(t, StatusClosed, s.Status())
	assert.Zero(t, s.Reversals())
	require.Len(t, j.Trades(), 1)
	assert.Equal(t, ExitTakeProfit, j.Trades()[0].ExitReason)
	assert.InDelta(t, 1.1083, j.Trades()[0].ExitPrice, 1e-9)
}

func TestSessionEntryCutoff(t *testing.T) {
	s, j, _ := newMorning(t)
	feed(t, s, rangeBars(t)...)
	feed(t, s, mk(t, "10:15", 1.1010, 1.1015, 1.1005, 1.1012))
	assert.Equal(t, StatusAwaitingBreakout, s.Status())

	// 16:29 is still eligible (cutoff is inclusive)...
	feed(t, s, mk(t, "16:25", 1.1012, 1.1016, 1.1008, 1.1010))
	assert.Equal(t, StatusAwaitingBreakout, s.Status())

	// ...but the first bar past it retires the session without a trade.
	feed(t, s, mk(t, "16:30", 1.1010, 1.1014, 1.1006, 1.1008))
	assert.Equal(t, StatusClosed, s.Status())
	assert.Empty(t, j.Trades())
}

func TestSessionEntryAtCutoffMinuteStillFires(t *testing.T) {
	s, _, _ := newMorning(t)
	feed(t, s, rangeBars(t)...)
	feed(t, s, mk(t, "16:29", 1.1018, 1.1026, 1.1016, 1.1025))
	assert.Equal(t, StatusInPosition, s.Status())
}

func TestAfternoonForcedExitWinsOverTakeProfit(t *testing.T) {
	cfg := testConfig(t)
	j := NewJournal(cfg.InitialBalance, cfg.Loc)
	s := newSession(cfg.Afternoon, cfg, NewPaperBroker(), j, "2024-03-04")

	feed(t, s,
		mk(t, "16:30", 1.1005, 1.1012, 1.1000, 1.1010),
		mk(t, "16:35", 1.1010, 1.1020, 1.1006, 1.1018),
		mk(t, "16:40", 1.1018, 1.1019, 1.1004, 1.1008),
		mk(t, "16:45", 1.1019, 1.1026, 1.1018, 1.1025),
	)
	require.Equal(t, StatusInPosition, s.Status())

	// The 23:55 bar would also tag the TP, but the forced exit is checked
	// first and settles at the bar close.
	exitBar := mk(t, "23:55", 1.1050, 1.1090, 1.1040, 1.1044)
	feed(t, s, exitBar)
	assert.Equal(t, StatusClosed, s.Status())
	require.Len(t, j.Trades(), 1)
	assert.Equal(t, ExitTimeExit, j.Trades()[0].ExitReason)
	assert.Equal(t, 1.1044, j.Trades()[0].ExitPrice)
	assert.Equal(t, exitBar.Time, j.Trades()[0].ExitTime)
}

func TestSessionSkippedWhenRangeWindowEmpty(t *testing.T) {
	s, j, _ := newMorning(t)

	// First bar of the day lands at the range end with nothing collected.
	feed(t, s, mk(t, "10:15", 1.1019, 1.1026, 1.1018, 1.1025))
	assert.Equal(t, StatusClosed, s.Status())
	assert.Empty(t, j.Trades())
}

// rejectBroker declines opens for the configured roles.
type rejectBroker struct {
	*PaperBroker
	reject map[LegRole]bool
}

func (rb *rejectBroker) Open(ctx context.Context, req OrderRequest) (*Leg, error) {
	if rb.reject[req.Role] {
		return nil, fmt.Errorf("venue says no: %w", ErrOrderRejected)
	}
	return rb.PaperBroker.Open(ctx, req)
}

func TestSessionRejectedScaleIsConsumedNotRetried(t *testing.T) {
	cfg := testConfig(t)
	j := NewJournal(cfg.InitialBalance, cfg.Loc)
	rb := &rejectBroker{PaperBroker: NewPaperBroker(), reject: map[LegRole]bool{RoleScale75: true}}
	s := newSession(cfg.Morning, cfg, rb, j, "2024-03-04")

	feed(t, s, rangeBars(t)...)
	feed(t, s, mk(t, "10:15", 1.1019, 1.1026, 1.1018, 1.1025))

	// Dip through all three levels: 75% is declined, the others fill. The
	// declined level stays consumed.
	feed(t, s, mk(t, "10:20", 1.1024, 1.1024, 1.1003, 1.1012))
	require.Len(t, s.OpenLegs(), 3)
	assert.Equal(t, RoleInitial, s.OpenLegs()[0].Role)
	assert.Equal(t, RoleScale50, s.OpenLegs()[1].Role)
	assert.Equal(t, RoleScale25, s.OpenLegs()[2].Role)

	feed(t, s, mk(t, "10:25", 1.1012, 1.1013, 1.1002, 1.1008))
	assert.Len(t, s.OpenLegs(), 3, "declined level must not re-trigger")

	feed(t, s, mk(t, "10:30", 1.1008, 1.1085, 1.1007, 1.1080))
	assert.Equal(t, StatusClosed, s.Status())
	assert.Len(t, j.Trades(), 3)
}

// failingCloseBroker accepts opens but cannot close.
type failingCloseBroker struct {
	*PaperBroker
}

func (fb *failingCloseBroker) CloseAll(ctx context.Context, legs []*Leg, price float64, at time.Time) ([]Fill, error) {
	return nil, fmt.Errorf("venue timeout: %w", ErrCloseFailed)
}

func TestSessionFailedCloseEscalates(t *testing.T) {
	cfg := testConfig(t)
	j := NewJournal(cfg.InitialBalance, cfg.Loc)
	fb := &failingCloseBroker{PaperBroker: NewPaperBroker()}
	s := newSession(cfg.Morning, cfg, fb, j, "2024-03-04")

	feed(t, s, rangeBars(t)...)
	feed(t, s, mk(t, "10:15", 1.1019, 1.1026, 1.1018, 1.1025))

	err := s.HandleBar(context.Background(), mk(t, "10:20", 1.1028, 1.1085, 1.1025, 1.1080))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCloseFailed))
	assert.Equal(t, StatusClosed, s.Status(), "session-day is unrecoverable")
	assert.Empty(t, j.Trades(), "nothing may be journaled on an unconfirmed close")
}

func TestSessionReplayIsDeterministic(t *testing.T) {
	bars := append(rangeBars(t),
		mk(t, "10:15", 1.1019, 1.1026, 1.1018, 1.1025),
		mk(t, "10:20", 1.1024, 1.1024, 1.1012, 1.1018),
		mk(t, "10:25", 1.1018, 1.1018, 1.1003, 1.1009),
		mk(t, "10:30", 1.1009, 1.1085, 1.1007, 1.1080),
	)

	run := func() []TradeRecord {
		cfg := testConfig(t)
		j := NewJournal(cfg.InitialBalance, cfg.Loc)
		s := newSession(cfg.Morning, cfg, NewPaperBroker(), j, "2024-03-04")
		feed(t, s, bars...)
		return j.Trades()
	}

	first := run()
	second := run()
	require.NotEmpty(t, first)
	assert.Equal(t, first, second, "same bars must yield identical trades")
}
