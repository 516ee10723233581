// FILE: backtest.go
// Package main – Historical replay runner.
//
// runBacktest pulls every completed bar in the requested window from the
// configured feed and pushes them through the exact step path live mode
// uses. Same bars in, same trades out: replaying a live day reproduces the
// live decisions bar for bar.
//
// After the last bar the in-flight day is finalized and three artifacts are
// written next to the process:
//   <prefix>_trades.csv, <prefix>_summary.json, <prefix>_equity.csv

package main

import (
	"context"
	"log"
	"time"
)

// runBacktest replays stored bars through the trader and writes artifacts.
func runBacktest(ctx context.Context, feed BarFeed, trader *Trader, from, to time.Time) {
	cfg := trader.cfg
	bars, err := feed.Fetch(ctx, cfg.Symbol, cfg.Timeframe, from, to)
	if err != nil {
		log.Fatalf("backtest load (%s): %v", feed.Name(), err)
	}
	if len(bars) == 0 {
		log.Fatalf("backtest: feed %s returned no bars for %s %s", feed.Name(), cfg.Symbol, cfg.Timeframe)
	}
	log.Printf("[BT] %d bars, %s .. %s", len(bars),
		bars[0].Time.Format(time.RFC3339), bars[len(bars)-1].Time.Format(time.RFC3339))

	progressEvery := len(bars) / 10
	if progressEvery < 1 {
		progressEvery = 1
	}

	for i, b := range bars {
		select {
		case <-ctx.Done():
			log.Printf("[BT] interrupted at bar %d/%d", i, len(bars))
			return
		default:
		}
		IncBar(feed.Name())
		if err := trader.step(ctx, b); err != nil {
			log.Fatalf("[SAFETY] backtest step at %s: %v", b.Time.Format(time.RFC3339), err)
		}
		if (i+1)%progressEvery == 0 {
			log.Printf("[BT] %d/%d bars, balance=%.2f", i+1, len(bars), trader.Journal().Balance())
		}
	}
	if err := trader.Finish(ctx); err != nil {
		log.Fatalf("[SAFETY] backtest finish: %v", err)
	}

	j := trader.Journal()
	prefix := cfg.OutputPrefix
	if err := j.WriteTradesCSV(prefix + "_trades.csv"); err != nil {
		log.Fatalf("backtest artifacts: %v", err)
	}
	if err := j.WriteSummaryJSON(prefix + "_summary.json"); err != nil {
		log.Fatalf("backtest artifacts: %v", err)
	}
	if err := j.WriteEquityCSV(prefix + "_equity.csv"); err != nil {
		log.Fatalf("backtest artifacts: %v", err)
	}

	s := j.Summarize()
	log.Printf("[BT] done: balance %.2f -> %.2f (%+.2f%%), trades=%d win_rate=%.1f%% pf=%.2f max_dd=%.2f",
		s.InitialBalance, s.FinalBalance, s.ReturnPct, s.TotalTrades, s.WinRate, s.ProfitFactor, s.MaxDrawdown)
	log.Printf("[BT] wrote %s_trades.csv, %s_summary.json, %s_equity.csv", prefix, prefix, prefix)
}
