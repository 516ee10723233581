// FILE: feed_alpaca.go
// Package main – Alpaca market data bar feed.
//
// Credentials come from the standard Alpaca env (APCA_API_KEY_ID,
// APCA_API_SECRET_KEY); the SDK client picks them up on its own. The feed
// only maps our timeframe labels onto the SDK's TimeFrame type and converts
// the returned bars.

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// AlpacaFeed serves bars from the Alpaca market data API.
type AlpacaFeed struct {
	md *marketdata.Client
}

func NewAlpacaFeed() *AlpacaFeed {
	return &AlpacaFeed{md: marketdata.NewClient(marketdata.ClientOpts{})}
}

func (f *AlpacaFeed) Name() string { return "alpaca" }

func (f *AlpacaFeed) Fetch(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tf, err := alpacaTimeFrame(timeframe)
	if err != nil {
		return nil, err
	}
	req := marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     from,
	}
	if !to.IsZero() {
		req.End = to
	}
	bars, err := f.md.GetBars(symbol, req)
	if err != nil {
		return nil, fmt.Errorf("alpaca bars %s: %w", symbol, err)
	}

	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		out = append(out, Bar{
			Time:   b.Timestamp,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	return clipWindow(cleanBars(f.Name(), out), from, to), nil
}

// alpacaTimeFrame maps "5m"/"1h"/"1d" style labels onto the SDK type.
func alpacaTimeFrame(tf string) (marketdata.TimeFrame, error) {
	s := strings.ToLower(strings.TrimSpace(tf))
	if len(s) < 2 {
		return marketdata.TimeFrame{}, fmt.Errorf("bad timeframe %q", tf)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return marketdata.TimeFrame{}, fmt.Errorf("bad timeframe %q", tf)
	}
	switch s[len(s)-1] {
	case 'm':
		return marketdata.NewTimeFrame(n, marketdata.Min), nil
	case 'h':
		return marketdata.NewTimeFrame(n, marketdata.Hour), nil
	case 'd':
		return marketdata.NewTimeFrame(n, marketdata.Day), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("bad timeframe %q", tf)
	}
}
