// FILE: metrics.go
// Package main – Prometheus metrics for observability.
//
// Exposes the metrics the bot updates during operation:
//   • bot_orders_total{mode,side}          – legs opened (mode: paper|alpaca|bridge)
//   • bot_order_rejects_total{side}        – opens the broker declined
//   • bot_equity_usd                       – current balance snapshot (gauge)
//   • bot_trades_total{result}             – closed trades by result (win|loss|breakeven)
//   • bot_exit_reasons_total{reason,side}  – exits split by reason and side
//   • bot_sessions_total{session,outcome}  – session-days by how they ended
//   • bot_reversals_total{session}         – direction flips
//   • bot_bars_total{source}               – bars accepted from each feed
//   • bot_feed_errors_total{source}        – feed fetch failures
//
// These are registered in init() and served by the HTTP handler started in
// main.go at /metrics (Prometheus text exposition format).

package main

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Legs opened",
		},
		[]string{"mode", "side"},
	)

	mtxOrderRejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_order_rejects_total",
			Help: "Opens declined by the execution backend",
		},
		[]string{"side"},
	)

	mtxPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_equity_usd",
			Help: "Account balance in USD",
		},
	)

	// Counts closed trades by outcome sign.
	mtxTrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_trades_total",
			Help: "Closed trades counted by result (win|loss|breakeven).",
		},
		[]string{"result"},
	)

	// Counts exits split by reason; reasons are take_profit, reversal, time_exit.
	mtxExitReasons = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_exit_reasons_total",
			Help: "Total exits split by reason and side",
		},
		[]string{"reason", "side"}, // side: buy|sell (the side of the CLOSED leg)
	)

	// Session-days by terminal outcome: skipped, cutoff, take_profit,
	// reversal_limit, time_exit.
	mtxSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_sessions_total",
			Help: "Session-days by how they ended",
		},
		[]string{"session", "outcome"},
	)

	mtxReversals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_reversals_total",
			Help: "Direction flips per session window",
		},
		[]string{"session"},
	)

	mtxBars = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_bars_total",
			Help: "Bars accepted into the strategy",
		},
		[]string{"source"},
	)

	mtxFeedErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_feed_errors_total",
			Help: "Bar feed fetch failures",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(mtxOrders, mtxOrderRejects, mtxPnL)
	prometheus.MustRegister(mtxTrades, mtxExitReasons)
	prometheus.MustRegister(mtxSessions, mtxReversals)
	prometheus.MustRegister(mtxBars, mtxFeedErrors)
}

// Helper setters (optional use by other files)
func IncBar(source string)       { mtxBars.WithLabelValues(source).Inc() }
func IncFeedError(source string) { mtxFeedErrors.WithLabelValues(source).Inc() }

// CountTradeResult buckets a closed trade's profit into the result metric.
func CountTradeResult(profit float64) {
	switch {
	case profit > 0:
		mtxTrades.WithLabelValues("win").Inc()
	case profit < 0:
		mtxTrades.WithLabelValues("loss").Inc()
	default:
		mtxTrades.WithLabelValues("breakeven").Inc()
	}
}
