// FILE: feed.go
// Package main – Bar feed abstraction shared by backtests and live polling.
//
// A BarFeed returns completed bars for [from, to), ascending by open time.
// Four backends implement it:
//   • feed_csv.go        – local CSV files (default; deterministic replays)
//   • feed_clickhouse.go – candles table in ClickHouse
//   • feed_alpaca.go     – Alpaca market data API
//   • feed_redis.go      – candle history lists published to Redis
//
// All backends funnel their rows through cleanBars, so the strategy only
// ever sees validated, de-duplicated, time-ordered bars regardless of the
// source's hygiene.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrDataUnavailable marks a feed that cannot serve the requested window at
// all (missing file, empty store). Callers skip or back off; they never
// trade on a partial guess.
var ErrDataUnavailable = errors.New("data unavailable")

// BarFeed serves completed bars for a symbol/timeframe window.
type BarFeed interface {
	Name() string
	Fetch(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]Bar, error)
}

// newFeed builds the backend selected by FEED.
func newFeed(ctx context.Context, cfg *Config) (BarFeed, error) {
	switch strings.ToLower(cfg.Feed) {
	case "csv":
		return NewCSVFeed(cfg.CSVPath), nil
	case "clickhouse":
		return NewClickHouseFeed(ctx)
	case "alpaca":
		return NewAlpacaFeed(), nil
	case "redis":
		return NewRedisFeed(ctx)
	default:
		return nil, fmt.Errorf("unknown FEED %q (want csv|clickhouse|alpaca|redis)", cfg.Feed)
	}
}

// timeframeDuration converts a bar-size label ("5m", "1h", "1d") into a
// duration. Used to decide when a live bar is complete.
func timeframeDuration(tf string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(tf))
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("bad timeframe %q", tf)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("bad timeframe %q", tf)
	}
	return d, nil
}

// cleanBars drops malformed rows, sorts ascending and de-duplicates by open
// time (first occurrence wins). Rejects are logged and counted per source.
func cleanBars(source string, bars []Bar) []Bar {
	out := bars[:0]
	for _, b := range bars {
		if err := validateBar(b); err != nil {
			IncFeedError(source)
			log.Printf("[FEED] %s: rejecting bar %s: %v", source, b.Time.Format(time.RFC3339), err)
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	dedup := out[:0]
	for i, b := range out {
		if i > 0 && b.Time.Equal(out[i-1].Time) {
			IncFeedError(source)
			log.Printf("[FEED] %s: dropping duplicate bar %s", source, b.Time.Format(time.RFC3339))
			continue
		}
		dedup = append(dedup, b)
	}
	return dedup
}

// clipWindow keeps bars with open time in [from, to). Zero bounds are open.
func clipWindow(bars []Bar, from, to time.Time) []Bar {
	out := bars[:0]
	for _, b := range bars {
		if !from.IsZero() && b.Time.Before(from) {
			continue
		}
		if !to.IsZero() && !b.Time.Before(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}
