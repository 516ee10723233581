// FILE: main.go
// Package main – Program entrypoint and HTTP/metrics server.
//
// Boot sequence:
//   1) loadBotEnv()                – read .env (no shell exports required)
//   2) cfg := loadConfigFromEnv()  – build runtime Config
//   3) wire feed/broker/journal/trader
//   4) start Prometheus /healthz server on cfg.Port
//   5) runBacktest or runLive based on flags
//
// Flags:
//   -backtest <csv>   Replay a CSV file (shorthand for FEED=csv CSV_PATH=..)
//   -live             Run the real-time polling loop
//   -interval <sec>   Live poll interval in seconds (default POLL_INTERVAL_SEC)
//   -from <date>      Backtest window start, YYYY-MM-DD in SESSION_TZ
//   -to <date>        Backtest window end (exclusive), YYYY-MM-DD
//
// Example:
//   go run . -backtest data/xauusd_5m.csv -from 2024-01-01 -to 2025-01-01
//
// Notes:
//   - Without -live the process backtests against the configured FEED.
//   - No environment exports are needed; keep editing .env and restart.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// ---- Flags ----
	var csvBacktest string
	var live bool
	var intervalSec int
	var fromStr, toStr string
	flag.StringVar(&csvBacktest, "backtest", "", "Path to CSV (time,open,high,low,close,volume)")
	flag.BoolVar(&live, "live", false, "Run live loop (ignores -backtest)")
	flag.IntVar(&intervalSec, "interval", 0, "Live loop interval in seconds")
	flag.StringVar(&fromStr, "from", "", "Backtest start date (YYYY-MM-DD)")
	flag.StringVar(&toStr, "to", "", "Backtest end date, exclusive (YYYY-MM-DD)")
	flag.Parse()

	// ---- Environment & Config ----
	loadBotEnv()
	cfg := loadConfigFromEnv()
	if csvBacktest != "" {
		cfg.Feed = "csv"
		cfg.CSVPath = csvBacktest
	}

	log.Printf("[BOOT] %s %s | range %s-%s / %s-%s | tp=%.0f points, scales=%v, max_reversals=%d",
		cfg.Symbol, cfg.Timeframe,
		cfg.Morning.RangeStart, cfg.Morning.RangeEnd,
		cfg.Afternoon.RangeStart, cfg.Afternoon.RangeEnd,
		cfg.TPUnits, cfg.ScaleLevels, cfg.MaxReversals)

	// ---- Broker wiring ----
	var broker Broker
	switch strings.ToLower(cfg.Broker) {
	case "", "paper":
		broker = NewPaperBroker()
	case "alpaca":
		broker = NewAlpacaBroker()
	case "bridge":
		broker = NewBridgeBroker(getEnv("BRIDGE_URL", "http://127.0.0.1:8787"))
	default:
		log.Fatalf("unknown BROKER %q (want paper|alpaca|bridge)", cfg.Broker)
	}

	journal := NewJournal(cfg.InitialBalance, cfg.Loc)
	trader := NewTrader(&cfg, broker, journal)

	// ---- HTTP metrics/health ----
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		log.Printf("serving metrics on :%d/metrics", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	// ---- Run selected mode ----
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	feed, err := newFeed(ctx, &cfg)
	if err != nil {
		log.Fatalf("feed init: %v", err)
	}

	if live {
		runLive(ctx, feed, trader, intervalSec)
	} else {
		from, to := parseWindow(fromStr, toStr, cfg.Loc)
		runBacktest(ctx, feed, trader, from, to)
	}

	// ---- Graceful shutdown for HTTP server ----
	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
}

// parseWindow converts -from/-to dates into instants at local midnight.
func parseWindow(fromStr, toStr string, loc *time.Location) (time.Time, time.Time) {
	var from, to time.Time
	if fromStr != "" {
		t, err := time.ParseInLocation("2006-01-02", fromStr, loc)
		if err != nil {
			log.Fatalf("-from %q: %v", fromStr, err)
		}
		from = t
	}
	if toStr != "" {
		t, err := time.ParseInLocation("2006-01-02", toStr, loc)
		if err != nil {
			log.Fatalf("-to %q: %v", toStr, err)
		}
		to = t
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		log.Fatalf("-to %s must be after -from %s", toStr, fromStr)
	}
	return from, to
}
