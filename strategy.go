// FILE: strategy.go
// Package main – Core market data types and range-breakout math.
//
// This file declares the bar type used across the bot, the session range,
// and the pure functions that turn bars into breakout, scale and take-profit
// decisions. Everything here is deterministic and side-effect free, so the
// exact same arithmetic serves backtests and the live loop.
//
// The strategy in one paragraph: the high/low of the bars inside a session's
// range window form a band. The first close strictly outside the band opens
// a position in that direction (UP ⇒ BUY, DOWN ⇒ SELL). While the position
// is open, retracements back into the band add scale legs at fixed fractions
// of the band, a close strictly out the opposite side flips the position,
// and a fixed take-profit distance from the breakout close ends the session.

package main

import (
	"fmt"
	"time"
)

// Bar is the normalized OHLCV row the bot uses everywhere.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// validateBar rejects rows whose OHLC geometry is impossible or whose
// timestamp is missing. Such bars are logged and skipped, never traded on.
func validateBar(b Bar) error {
	if b.Time.IsZero() {
		return fmt.Errorf("zero timestamp")
	}
	if b.High < b.Low {
		return fmt.Errorf("high %v below low %v", b.High, b.Low)
	}
	if b.Open > b.High || b.Open < b.Low {
		return fmt.Errorf("open %v outside [%v, %v]", b.Open, b.Low, b.High)
	}
	if b.Close > b.High || b.Close < b.Low {
		return fmt.Errorf("close %v outside [%v, %v]", b.Close, b.Low, b.High)
	}
	return nil
}

// Range is the high/low band computed over a session's range window.
// Immutable once formed; reversals are judged against this original band
// for the whole session, not against any later price structure.
type Range struct {
	High     float64
	Low      float64
	FormedAt time.Time
}

func (r Range) Size() float64 { return r.High - r.Low }

func (r Range) String() string {
	return fmt.Sprintf("[%.5f, %.5f] size=%.5f", r.Low, r.High, r.Size())
}

// barsInWindow selects bars whose open time falls inside [start, end) on the
// minute-of-day scale in loc.
func barsInWindow(bars []Bar, start, end DayClock, loc *time.Location) []Bar {
	var out []Bar
	for _, b := range bars {
		clk := dayClockOf(b.Time, loc)
		if clk >= start && clk < end {
			out = append(out, b)
		}
	}
	return out
}

// buildRange folds the window's bars into a Range. Returns false when fewer
// than minBars are available; the caller skips the session for the day.
// Pure and idempotent: the same bar set always yields the same Range.
func buildRange(bars []Bar, minBars int) (Range, bool) {
	if minBars < 1 {
		minBars = 1
	}
	if len(bars) < minBars {
		return Range{}, false
	}
	r := Range{High: bars[0].High, Low: bars[0].Low, FormedAt: bars[len(bars)-1].Time}
	for _, b := range bars[1:] {
		if b.High > r.High {
			r.High = b.High
		}
		if b.Low < r.Low {
			r.Low = b.Low
		}
	}
	return r, true
}

// breakoutSide reports the trade side for a close strictly outside the range.
// Closes exactly on a boundary never trigger.
func breakoutSide(r Range, close float64) (OrderSide, bool) {
	switch {
	case close > r.High:
		return SideBuy, true
	case close < r.Low:
		return SideSell, true
	default:
		return "", false
	}
}

// isReversal reports whether close breaks the original range strictly on the
// side opposite the current position.
func isReversal(r Range, side OrderSide, close float64) bool {
	if side == SideBuy {
		return close < r.Low
	}
	return close > r.High
}

// takeProfitPrice shifts the breakout close by tpDistance in the trade's
// favorable direction.
func takeProfitPrice(side OrderSide, breakoutClose, tpDistance float64) float64 {
	if side == SideBuy {
		return breakoutClose + tpDistance
	}
	return breakoutClose - tpDistance
}

// tpHit reports whether the bar reached the take-profit price.
func tpHit(side OrderSide, b Bar, tp float64) bool {
	if side == SideBuy {
		return b.High >= tp
	}
	return b.Low <= tp
}

// scaleLevelPrice computes the retracement entry for the given fraction of
// the range. BUY scales hang below the range high, SELL scales above the
// range low, so a deeper fraction means a better price.
func scaleLevelPrice(r Range, side OrderSide, pct float64) float64 {
	if side == SideBuy {
		return r.High - pct*r.Size()
	}
	return r.Low + pct*r.Size()
}

// scaleHit reports whether the bar retraced to or past the level price.
func scaleHit(side OrderSide, b Bar, level float64) bool {
	if side == SideBuy {
		return b.Low <= level
	}
	return b.High >= level
}

// scaleRole maps a retracement fraction to the leg role recorded on fills.
// Fractions outside the canonical trio fall back to the nearest of the three
// so journals stay groupable under custom level lists.
func scaleRole(pct float64) LegRole {
	switch {
	case pct >= 0.625:
		return RoleScale75
	case pct >= 0.375:
		return RoleScale50
	default:
		return RoleScale25
	}
}
