// Build a backtest CSV by pulling historical bars from the Alpaca data API.
//
// Usage examples:
//   APCA_API_KEY_ID=... APCA_API_SECRET_KEY=... \
//     go run ./tools/backfill_alpaca -symbol XAUUSD -timeframe 5m -days 365 -out data/xauusd_5m.csv
//
// Notes:
// - The SDK pages the request internally; -days just sets the window start.
// - Rows are de-duplicated by open time and written ascending with RFC3339
//   timestamps, matching what the backtest loader wants.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

func main() {
	var (
		symbol    = flag.String("symbol", "XAUUSD", "Symbol to pull")
		timeframe = flag.String("timeframe", "5m", "Bar size (e.g., 5m, 1h, 1d)")
		days      = flag.Int("days", 365, "How many days back to start")
		outPath   = flag.String("out", "data/bars.csv", "Output CSV path")
	)
	flag.Parse()

	tf, err := parseTimeFrame(*timeframe)
	if err != nil {
		panic(err)
	}

	client := marketdata.NewClient(marketdata.ClientOpts{})
	start := time.Now().UTC().AddDate(0, 0, -*days)
	bars, err := client.GetBars(*symbol, marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     start,
	})
	if err != nil {
		panic(fmt.Errorf("GetBars %s: %w", *symbol, err))
	}
	if len(bars) == 0 {
		panic("no bars returned")
	}

	// Sort ascending and drop duplicate open times.
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	uniq := bars[:0]
	for i, b := range bars {
		if i > 0 && b.Timestamp.Equal(bars[i-1].Timestamp) {
			continue
		}
		uniq = append(uniq, b)
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		panic(err)
	}
	f, err := os.Create(*outPath)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
		panic(err)
	}
	for _, b := range uniq {
		rec := []string{
			b.Timestamp.UTC().Format(time.RFC3339),
			fmtF(b.Open), fmtF(b.High), fmtF(b.Low), fmtF(b.Close),
			strconv.FormatUint(b.Volume, 10),
		}
		if err := w.Write(rec); err != nil {
			panic(err)
		}
	}

	fmt.Printf("Wrote %s (%d rows)\n", *outPath, len(uniq))
}

func parseTimeFrame(tf string) (marketdata.TimeFrame, error) {
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

func fmtF(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
