// FILE: live.go
// Package main – Live polling loop.
//
// runLive drives the strategy in real time:
//   • Warm up by replaying today's completed bars through the trader, so a
//     mid-day restart rebuilds the exact session state a continuous run
//     would have (the step path is the same one backtests use).
//   • Every poll, fetch bars since the last seen open time, keep only the
//     completed ones (open time + timeframe <= now), and step each exactly
//     once.
//   • On feed errors, stretch the poll interval to 2x until a fetch
//     succeeds again.
//
// A failed close is not survivable: leg accounting can no longer be trusted,
// so the process exits and an operator reconciles the account.

package main

import (
	"context"
	"log"
	"time"
)

// runLive executes the real-time loop with cadence intervalSec (seconds).
func runLive(ctx context.Context, feed BarFeed, trader *Trader, intervalSec int) {
	cfg := trader.cfg
	if intervalSec <= 0 {
		intervalSec = cfg.PollIntervalSec
	}
	if intervalSec <= 0 {
		intervalSec = 10
	}
	tfDur, err := timeframeDuration(cfg.Timeframe)
	if err != nil {
		log.Fatalf("live: %v", err)
	}
	base := time.Duration(intervalSec) * time.Second

	log.Printf("[BOOT] live: feed=%s broker=%s symbol=%s tf=%s poll=%ds",
		feed.Name(), trader.broker.Name(), cfg.Symbol, cfg.Timeframe, intervalSec)

	var lastOpen time.Time

	// Warmup: replay today's completed bars so session state is rebuilt.
	// REPLAY_WARMUP=false starts cold instead (fresh accounts, debugging).
	nowLoc := time.Now().In(cfg.Loc)
	dayStart := time.Date(nowLoc.Year(), nowLoc.Month(), nowLoc.Day(), 0, 0, 0, 0, cfg.Loc)
	if !getEnvBool("REPLAY_WARMUP", true) {
		log.Printf("[BOOT] warmup disabled, starting cold")
	} else if bars, err := feed.Fetch(ctx, cfg.Symbol, cfg.Timeframe, dayStart, time.Time{}); err != nil {
		log.Printf("[BOOT] warmup fetch: %v (starting cold)", err)
	} else {
		n := 0
		for _, b := range bars {
			if !completedBar(b, tfDur, time.Now()) {
				continue
			}
			IncBar(feed.Name())
			if err := trader.step(ctx, b); err != nil {
				log.Fatalf("[SAFETY] warmup step at %s: %v", b.Time.Format(time.RFC3339), err)
			}
			lastOpen = b.Time
			n++
		}
		log.Printf("[BOOT] warmup replayed %d bars (last open %s)", n, lastOpen.Format(time.RFC3339))
	}

	wait := base
	for {
		select {
		case <-ctx.Done():
			log.Println("shutdown")
			return
		case <-time.After(wait):
		}

		from := lastOpen
		if from.IsZero() {
			from = dayStart
		}
		bars, err := feed.Fetch(ctx, cfg.Symbol, cfg.Timeframe, from, time.Time{})
		if err != nil {
			IncFeedError(feed.Name())
			wait = 2 * base
			log.Printf("[FEED] %s fetch failed, backing off to %s: %v", feed.Name(), wait, err)
			continue
		}
		wait = base

		now := time.Now()
		for _, b := range bars {
			if !lastOpen.IsZero() && !b.Time.After(lastOpen) {
				continue
			}
			if !completedBar(b, tfDur, now) {
				continue
			}
			IncBar(feed.Name())
			if err := trader.step(ctx, b); err != nil {
				log.Fatalf("[SAFETY] live step at %s: %v", b.Time.Format(time.RFC3339), err)
			}
			lastOpen = b.Time
		}
	}
}

// completedBar reports whether the bar's window has fully elapsed.
func completedBar(b Bar, tf time.Duration, now time.Time) bool {
	return !b.Time.Add(tf).After(now)
}
