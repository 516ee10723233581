// FILE: report.go
// Package main – Trade journal, statistics and backtest artifacts.
//
// The Journal is the append-only consumer of closed trades. It tracks the
// running balance, rolls a daily equity row when the scheduler finishes a
// trading day, and aggregates everything a run report needs:
//   • summary (balances, win rate, profit factor, drawdown, pips/trade)
//   • per-weekday, per-month, per-session, per-role, per-exit-reason buckets
//   • equity curve with running peak and drawdown
//
// Artifacts written after a backtest:
//   <prefix>_trades.csv    one row per closed leg
//   <prefix>_summary.json  the aggregate blocks above
//   <prefix>_equity.csv    one row per trading day
//
// Profit model: pips = (exit - entry) / point / 10 signed by side, and one
// pip is worth lot*100 dollars ($1 per 0.01 lot per pip).

package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// pipsFor converts an entry/exit pair into signed pips (ten points per pip).
func pipsFor(side OrderSide, entry, exit, point float64) float64 {
	if side == SideBuy {
		return (exit - entry) / point / 10
	}
	return (entry - exit) / point / 10
}

// pipValue prices one pip for the lot.
func pipValue(lot float64) float64 { return lot * 100 }

// TradeRecord is one closed leg, the journal's immutable unit.
type TradeRecord struct {
	Session    string
	Role       LegRole
	Side       OrderSide
	Lot        float64
	EntryTime  time.Time
	EntryPrice float64
	ExitTime   time.Time
	ExitPrice  float64
	TPPrice    float64
	Pips       float64
	Profit     float64
	ExitReason ExitReason
}

// newTradeRecord settles a fill into a journal row.
func newTradeRecord(f Fill, reason ExitReason, point float64) TradeRecord {
	pips := pipsFor(f.Leg.Side, f.Leg.EntryPrice, f.Price, point)
	return TradeRecord{
		Session:    f.Leg.Session,
		Role:       f.Leg.Role,
		Side:       f.Leg.Side,
		Lot:        f.Leg.Lot,
		EntryTime:  f.Leg.EntryTime,
		EntryPrice: f.Leg.EntryPrice,
		ExitTime:   f.Time,
		ExitPrice:  f.Price,
		TPPrice:    f.Leg.TakeProfit,
		Pips:       pips,
		Profit:     pips * pipValue(f.Leg.Lot),
		ExitReason: reason,
	}
}

// DayEquity is one trading day's balance snapshot.
type DayEquity struct {
	Date         string
	Weekday      string
	Balance      float64
	DailyProfit  float64
	TradesClosed int
}

// EquityPoint is a DayEquity annotated with the running peak and drawdown.
type EquityPoint struct {
	DayEquity
	Peak        float64
	Drawdown    float64
	DrawdownPct float64
}

// Journal owns the realized-trade ledger for one run. It is only touched
// from the scheduler goroutine, so it carries no lock.
type Journal struct {
	initial float64
	balance float64
	loc     *time.Location

	trades    []TradeRecord
	days      []DayEquity
	dayProfit float64
	dayTrades int
}

func NewJournal(initial float64, loc *time.Location) *Journal {
	if loc == nil {
		loc = time.UTC
	}
	return &Journal{initial: initial, balance: initial, loc: loc}
}

// Record appends one closed trade and moves the balance.
func (j *Journal) Record(tr TradeRecord) {
	j.trades = append(j.trades, tr)
	j.balance += tr.Profit
	j.dayProfit += tr.Profit
	j.dayTrades++
	CountTradeResult(tr.Profit)
}

// RollDay closes the current trading day with an equity row.
func (j *Journal) RollDay(date string, weekday time.Weekday) {
	j.days = append(j.days, DayEquity{
		Date:         date,
		Weekday:      weekday.String(),
		Balance:      j.balance,
		DailyProfit:  j.dayProfit,
		TradesClosed: j.dayTrades,
	})
	j.dayProfit = 0
	j.dayTrades = 0
}

func (j *Journal) Balance() float64      { return j.balance }
func (j *Journal) Trades() []TradeRecord { return j.trades }
func (j *Journal) Days() []DayEquity     { return j.days }

// ---- Aggregation ----

// GroupStat is one aggregation bucket.
type GroupStat struct {
	TotalProfit float64 `json:"total_profit"`
	AvgProfit   float64 `json:"avg_profit"`
	TradeCount  int     `json:"trade_count"`
	WinRate     float64 `json:"win_rate"`
}

// Summary is the headline block of a run report.
type Summary struct {
	InitialBalance  float64 `json:"initial_balance"`
	FinalBalance    float64 `json:"final_balance"`
	TotalProfit     float64 `json:"total_profit"`
	ReturnPct       float64 `json:"return_pct"`
	TotalTrades     int     `json:"total_trades"`
	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
	BreakevenTrades int     `json:"breakeven_trades"`
	WinRate         float64 `json:"win_rate"`
	AvgWin          float64 `json:"avg_win"`
	AvgLoss         float64 `json:"avg_loss"`
	ProfitFactor    float64 `json:"profit_factor"`
	GrossProfit     float64 `json:"gross_profit"`
	GrossLoss       float64 `json:"gross_loss"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	MaxDrawdownPct  float64 `json:"max_drawdown_pct"`
	AvgPipsPerTrade float64 `json:"avg_pips_per_trade"`
}

// Summarize folds the ledger into the headline block.
func (j *Journal) Summarize() Summary {
	s := Summary{
		InitialBalance: j.initial,
		FinalBalance:   j.balance,
		TotalTrades:    len(j.trades),
	}
	var grossProfit, grossLoss, pips float64
	for _, tr := range j.trades {
		s.TotalProfit += tr.Profit
		pips += tr.Pips
		switch {
		case tr.Profit > 0:
			s.WinningTrades++
			grossProfit += tr.Profit
		case tr.Profit < 0:
			s.LosingTrades++
			grossLoss += -tr.Profit
		default:
			s.BreakevenTrades++
		}
	}
	s.GrossProfit = grossProfit
	s.GrossLoss = grossLoss
	if j.initial != 0 {
		s.ReturnPct = s.TotalProfit / j.initial * 100
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
		s.AvgPipsPerTrade = pips / float64(s.TotalTrades)
	}
	if s.WinningTrades > 0 {
		s.AvgWin = grossProfit / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AvgLoss = -grossLoss / float64(s.LosingTrades)
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossProfit / grossLoss
	}
	// JSON cannot carry Inf: with zero losing trades the factor stays zero.

	for _, p := range j.EquityCurve() {
		if p.Drawdown < s.MaxDrawdown {
			s.MaxDrawdown = p.Drawdown
			s.MaxDrawdownPct = p.DrawdownPct
		}
	}
	return s
}

// EquityCurve annotates the daily rows with running peak and drawdown.
func (j *Journal) EquityCurve() []EquityPoint {
	out := make([]EquityPoint, 0, len(j.days))
	peak := j.initial
	for _, d := range j.days {
		if d.Balance > peak {
			peak = d.Balance
		}
		dd := d.Balance - peak
		pct := 0.0
		if peak != 0 {
			pct = dd / peak * 100
		}
		out = append(out, EquityPoint{DayEquity: d, Peak: peak, Drawdown: dd, DrawdownPct: pct})
	}
	return out
}

func (j *Journal) groupStats(key func(TradeRecord) string) map[string]GroupStat {
	buckets := map[string]GroupStat{}
	wins := map[string]int{}
	for _, tr := range j.trades {
		k := key(tr)
		g := buckets[k]
		g.TotalProfit += tr.Profit
		g.TradeCount++
		if tr.Profit > 0 {
			wins[k]++
		}
		buckets[k] = g
	}
	for k, g := range buckets {
		g.AvgProfit = g.TotalProfit / float64(g.TradeCount)
		g.WinRate = float64(wins[k]) / float64(g.TradeCount) * 100
		buckets[k] = g
	}
	return buckets
}

func (j *Journal) WeekdayStats() map[string]GroupStat {
	return j.groupStats(func(tr TradeRecord) string { return tr.EntryTime.In(j.loc).Weekday().String() })
}

func (j *Journal) MonthlyStats() map[string]GroupStat {
	return j.groupStats(func(tr TradeRecord) string { return tr.EntryTime.In(j.loc).Format("2006-01") })
}

func (j *Journal) SessionStats() map[string]GroupStat {
	return j.groupStats(func(tr TradeRecord) string { return strings.ToUpper(tr.Session) })
}

func (j *Journal) RoleStats() map[string]GroupStat {
	return j.groupStats(func(tr TradeRecord) string { return string(tr.Role) })
}

func (j *Journal) ExitReasonStats() map[string]GroupStat {
	return j.groupStats(func(tr TradeRecord) string { return string(tr.ExitReason) })
}

// ---- Artifacts ----

// WriteTradesCSV writes one row per closed leg.
func (j *Journal) WriteTradesCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("trades csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"direction", "entry_price", "entry_time", "exit_price", "exit_time",
		"lot_size", "tp_price", "trade_type", "session", "exit_reason",
		"profit", "pips", "duration",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("trades csv: %w", err)
	}
	for _, tr := range j.trades {
		row := []string{
			string(tr.Side),
			fcsv(tr.EntryPrice),
			tr.EntryTime.In(j.loc).Format(time.RFC3339),
			fcsv(tr.ExitPrice),
			tr.ExitTime.In(j.loc).Format(time.RFC3339),
			fcsv(tr.Lot),
			fcsv(tr.TPPrice),
			string(tr.Role),
			strings.ToUpper(tr.Session),
			string(tr.ExitReason),
			fcsv(tr.Profit),
			fcsv(tr.Pips),
			tr.ExitTime.Sub(tr.EntryTime).String(),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("trades csv: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteSummaryJSON writes the aggregate blocks as one document.
func (j *Journal) WriteSummaryJSON(path string) error {
	doc := map[string]any{
		"summary":           j.Summarize(),
		"weekday_stats":     j.WeekdayStats(),
		"monthly_stats":     j.MonthlyStats(),
		"session_stats":     j.SessionStats(),
		"trade_type_stats":  j.RoleStats(),
		"exit_reason_stats": j.ExitReasonStats(),
	}
	buf, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("summary json: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("summary json: %w", err)
	}
	return nil
}

// WriteEquityCSV writes one row per trading day with drawdown columns.
func (j *Journal) WriteEquityCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("equity csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"date", "weekday", "balance", "daily_profit", "trades_closed", "peak", "drawdown", "drawdown_pct"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("equity csv: %w", err)
	}
	for _, p := range j.EquityCurve() {
		row := []string{
			p.Date,
			p.Weekday,
			fcsv(p.Balance),
			fcsv(p.DailyProfit),
			strconv.Itoa(p.TradesClosed),
			fcsv(p.Peak),
			fcsv(p.Drawdown),
			fcsv(p.DrawdownPct),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("equity csv: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// fcsv formats a float for CSV without exponent noise.
func fcsv(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
