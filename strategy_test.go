// FILE: strategy_test.go
// Package main – Tests for the pure range/breakout/scale arithmetic.

package main

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func barAt(ts string, o, h, l, c float64) Bar {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return Bar{Time: t, Open: o, High: h, Low: l, Close: c}
}

func TestValidateBar(t *testing.T) {
	good := barAt("2024-03-04T10:00:00Z", 1.1005, 1.1010, 1.1000, 1.1008)
	require.NoError(t, validateBar(good))

	cases := []struct {
		name string
		bar  Bar
	}{
		{"zero timestamp", Bar{Open: 1, High: 1, Low: 1, Close: 1}},
		{"high below low", barAt("2024-03-04T10:00:00Z", 1.1, 1.0, 1.2, 1.1)},
		{"open above high", Bar{Time: good.Time, Open: 1.2, High: 1.1, Low: 1.0, Close: 1.05}},
		{"close below low", Bar{Time: good.Time, Open: 1.05, High: 1.1, Low: 1.0, Close: 0.9}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, validateBar(tc.bar))
		})
	}
}

func TestBuildRange(t *testing.T) {
	bars := []Bar{
		barAt("2024-03-04T10:00:00Z", 1.1005, 1.1012, 1.1000, 1.1010),
		barAt("2024-03-04T10:05:00Z", 1.1010, 1.1020, 1.1006, 1.1018),
		barAt("2024-03-04T10:10:00Z", 1.1018, 1.1019, 1.1004, 1.1008),
	}
	r, ok := buildRange(bars, 1)
	require.True(t, ok)
	assert.Equal(t, 1.1020, r.High)
	assert.Equal(t, 1.1000, r.Low)
	assert.InDelta(t, 0.0020, r.Size(), 1e-12)
	assert.Equal(t, bars[2].Time, r.FormedAt)

	_, ok = buildRange(nil, 1)
	assert.False(t, ok, "no bars, no range")

	_, ok = buildRange(bars[:2], 3)
	assert.False(t, ok, "below the bar minimum")

	// A single bar is enough at the default minimum.
	r, ok = buildRange(bars[:1], 1)
	require.True(t, ok)
	assert.Equal(t, 1.1012, r.High)
	assert.Equal(t, 1.1000, r.Low)
}

// Randomized cross-check: the range over a session window must equal the
// plain max/min over exactly the bars whose open time lands in [start, end).
func TestBuildRangeOverWindowRandomBars(t *testing.T) {
	rng := rand.New(rand.NewSource(42)) // fixed seed for reproducibility
	start, err := parseDayClock("10:00")
	require.NoError(t, err)
	end, err := parseDayClock("10:15")
	require.NoError(t, err)
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	for trial := 0; trial < 250; trial++ {
		n := rng.Intn(30)
		bars := make([]Bar, 0, n)
		for i := 0; i < n; i++ {
			lo := 1.0900 + rng.Float64()*0.02
			hi := lo + rng.Float64()*0.004
			bars = append(bars, Bar{
				// Minutes 09:50..10:29, straddling both window edges.
				Time:   day.Add(time.Duration(590+rng.Intn(40)) * time.Minute),
				Open:   lo + rng.Float64()*(hi-lo),
				High:   hi,
				Low:    lo,
				Close:  lo + rng.Float64()*(hi-lo),
				Volume: 1,
			})
		}

		var want []Bar
		for _, b := range bars {
			clk := dayClockOf(b.Time, time.UTC)
			if clk >= start && clk < end {
				want = append(want, b)
			}
		}

		in := barsInWindow(bars, start, end, time.UTC)
		require.Len(t, in, len(want), "trial %d", trial)

		r, ok := buildRange(in, 1)
		if len(want) == 0 {
			assert.False(t, ok, "trial %d: empty window must not form a range", trial)
			continue
		}
		require.True(t, ok, "trial %d", trial)
		hi, lo := want[0].High, want[0].Low
		for _, b := range want[1:] {
			if b.High > hi {
				hi = b.High
			}
			if b.Low < lo {
				lo = b.Low
			}
		}
		assert.Equal(t, hi, r.High, "trial %d", trial)
		assert.Equal(t, lo, r.Low, "trial %d", trial)
	}
}

func TestBreakoutSideBoundaries(t *testing.T) {
	r := Range{High: 1.1020, Low: 1.1000}

	side, ok := breakoutSide(r, 1.1025)
	require.True(t, ok)
	assert.Equal(t, SideBuy, side)

	side, ok = breakoutSide(r, 1.0995)
	require.True(t, ok)
	assert.Equal(t, SideSell, side)

	// Boundary ties never trigger.
	_, ok = breakoutSide(r, 1.1020)
	assert.False(t, ok)
	_, ok = breakoutSide(r, 1.1000)
	assert.False(t, ok)
	_, ok = breakoutSide(r, 1.1010)
	assert.False(t, ok)
}

func TestTakeProfitPriceAndHit(t *testing.T) {
	tpDist := 580 * 0.00001 // 580 points on a 5-decimal instrument

	tp := takeProfitPrice(SideBuy, 1.1025, tpDist)
	assert.InDelta(t, 1.1083, tp, 1e-9)
	tp = takeProfitPrice(SideSell, 1.0995, tpDist)
	assert.InDelta(t, 1.0937, tp, 1e-9)

	buyTP := 1.1083
	assert.True(t, tpHit(SideBuy, Bar{High: 1.1083, Low: 1.1050}, buyTP), "touch counts")
	assert.True(t, tpHit(SideBuy, Bar{High: 1.1090, Low: 1.1050}, buyTP))
	assert.False(t, tpHit(SideBuy, Bar{High: 1.1082, Low: 1.1050}, buyTP))

	sellTP := 1.0937
	assert.True(t, tpHit(SideSell, Bar{High: 1.0960, Low: 1.0937}, sellTP))
	assert.False(t, tpHit(SideSell, Bar{High: 1.0960, Low: 1.0938}, sellTP))
}

func TestScaleLevelPrice(t *testing.T) {
	r := Range{High: 1.1020, Low: 1.1000}

	assert.InDelta(t, 1.1005, scaleLevelPrice(r, SideBuy, 0.75), 1e-9)
	assert.InDelta(t, 1.1010, scaleLevelPrice(r, SideBuy, 0.50), 1e-9)
	assert.InDelta(t, 1.1015, scaleLevelPrice(r, SideBuy, 0.25), 1e-9)

	assert.InDelta(t, 1.1015, scaleLevelPrice(r, SideSell, 0.75), 1e-9)
	assert.InDelta(t, 1.1010, scaleLevelPrice(r, SideSell, 0.50), 1e-9)
	assert.InDelta(t, 1.1005, scaleLevelPrice(r, SideSell, 0.25), 1e-9)
}

func TestScaleHit(t *testing.T) {
	level := 1.1005
	assert.True(t, scaleHit(SideBuy, Bar{High: 1.1010, Low: 1.1005}, level), "touch counts")
	assert.True(t, scaleHit(SideBuy, Bar{High: 1.1010, Low: 1.1001}, level))
	assert.False(t, scaleHit(SideBuy, Bar{High: 1.1010, Low: 1.1006}, level))

	level = 1.1015
	assert.True(t, scaleHit(SideSell, Bar{High: 1.1015, Low: 1.1008}, level))
	assert.False(t, scaleHit(SideSell, Bar{High: 1.1014, Low: 1.1008}, level))
}

func TestIsReversal(t *testing.T) {
	r := Range{High: 1.1020, Low: 1.1000}

	assert.True(t, isReversal(r, SideBuy, 1.0999))
	assert.False(t, isReversal(r, SideBuy, 1.1000), "boundary tie is not a reversal")
	assert.False(t, isReversal(r, SideBuy, 1.1030), "same-side move is not a reversal")

	assert.True(t, isReversal(r, SideSell, 1.1021))
	assert.False(t, isReversal(r, SideSell, 1.1020))
	assert.False(t, isReversal(r, SideSell, 1.0990))
}

func TestScaleRole(t *testing.T) {
	assert.Equal(t, RoleScale75, scaleRole(0.75))
	assert.Equal(t, RoleScale50, scaleRole(0.50))
	assert.Equal(t, RoleScale25, scaleRole(0.25))
}

func TestBarsInWindow(t *testing.T) {
	bars := []Bar{
		barAt("2024-03-04T09:55:00Z", 1, 1, 1, 1),
		barAt("2024-03-04T10:00:00Z", 1, 1, 1, 1),
		barAt("2024-03-04T10:10:00Z", 1, 1, 1, 1),
		barAt("2024-03-04T10:15:00Z", 1, 1, 1, 1),
	}
	start, err := parseDayClock("10:00")
	require.NoError(t, err)
	end, err := parseDayClock("10:15")
	require.NoError(t, err)

	in := barsInWindow(bars, start, end, time.UTC)
	require.Len(t, in, 2, "window is [start, end)")
	assert.Equal(t, bars[1].Time, in[0].Time)
	assert.Equal(t, bars[2].Time, in[1].Time)
}

func TestOppositeSide(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
}
