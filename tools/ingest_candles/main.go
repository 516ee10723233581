// Load a candle CSV into the ClickHouse candles table used by FEED=clickhouse.
//
// Usage examples:
//   go run ./tools/ingest_candles -csv data/xauusd_5m.csv -symbol XAUUSD -timeframe 5m
//
//   CLICKHOUSE_ADDR=ch.internal:9000 CLICKHOUSE_DB=trading \
//     go run ./tools/ingest_candles -csv data/xauusd_5m.csv -symbol XAUUSD -timeframe 5m
//
// Notes:
// - The CSV header is: time,open,high,low,close,volume (time is RFC3339 or
//   UNIX seconds), the same shape the backtest loader reads.
// - The table uses ReplacingMergeTree keyed by (symbol, timeframe,
//   open_time_ms), so re-running the ingest is idempotent.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

type row struct {
	timeMs int64
	open   float64
	high   float64
	low    float64
	close  float64
	volume float64
}

func main() {
	var (
		csvPath   = flag.String("csv", "", "Input CSV path (time,open,high,low,close,volume)")
		symbol    = flag.String("symbol", "XAUUSD", "Symbol the rows belong to")
		timeframe = flag.String("timeframe", "5m", "Bar size label the rows belong to")
	)
	flag.Parse()
	if *csvPath == "" {
		panic("missing -csv")
	}

	db := getenv("CLICKHOUSE_DB", "trading")
	table := getenv("CLICKHOUSE_TABLE", "candles")

	ctx := context.Background()
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{getenv("CLICKHOUSE_ADDR", "localhost:9000")},
		Auth: clickhouse.Auth{
			Database: db,
			Username: getenv("CLICKHOUSE_USER", "default"),
			Password: getenv("CLICKHOUSE_PASSWORD", ""),
		},
	})
	if err != nil {
		panic(fmt.Errorf("clickhouse open: %w", err))
	}
	if err := conn.Ping(ctx); err != nil {
		panic(fmt.Errorf("clickhouse ping: %w", err))
	}
	if err := ensureSchema(ctx, conn, db, table); err != nil {
		panic(err)
	}

	rows, err := readCSV(*csvPath)
	if err != nil {
		panic(err)
	}
	if len(rows) == 0 {
		panic("no usable rows in " + *csvPath)
	}

	batch, err := conn.PrepareBatch(ctx, fmt.Sprintf(
		"INSERT INTO %s.%s (symbol, timeframe, open_time_ms, open, high, low, close, volume, ingested_at)", db, table))
	if err != nil {
		panic(fmt.Errorf("prepare batch: %w", err))
	}
	now := time.Now().UTC()
	for _, r := range rows {
		if err := batch.Append(*symbol, *timeframe, r.timeMs, r.open, r.high, r.low, r.close, r.volume, now); err != nil {
			panic(fmt.Errorf("append: %w", err))
		}
	}
	if err := batch.Send(); err != nil {
		panic(fmt.Errorf("send: %w", err))
	}

	var count uint64
	q := fmt.Sprintf("SELECT count() FROM %s.%s WHERE symbol = ? AND timeframe = ?", db, table)
	if err := conn.QueryRow(ctx, q, *symbol, *timeframe).Scan(&count); err != nil {
		panic(fmt.Errorf("count: %w", err))
	}
	fmt.Printf("Ingested %d rows; %s.%s now holds %d %s %s candles\n",
		len(rows), db, table, count, *symbol, *timeframe)
}

func ensureSchema(ctx context.Context, conn driver.Conn, db, table string) error {
	if err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db)); err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			symbol LowCardinality(String),
			timeframe LowCardinality(String),
			open_time_ms Int64,
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64,
			ingested_at DateTime64(3)
		)
		ENGINE = ReplacingMergeTree(ingested_at)
		ORDER BY (symbol, timeframe, open_time_ms)
		SETTINGS index_granularity = 8192
	`, db, table)
	if err := conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// readCSV parses time,open,high,low,close,volume rows (case-insensitive
// headers; time is RFC3339 or UNIX seconds). Bad rows are skipped.
func readCSV(path string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []row
	var headers []string
	for i := 0; ; i++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if i == 0 {
			headers = rec
			continue
		}
		m := map[string]string{}
		for j, h := range headers {
			if j < len(rec) {
				m[strings.ToLower(strings.TrimSpace(h))] = strings.TrimSpace(rec[j])
			}
		}
		ts := m["time"]
		if ts == "" {
			ts = m["timestamp"]
		}
		t, err := parseTime(ts)
		if err != nil {
			continue
		}
		o, _ := strconv.ParseFloat(m["open"], 64)
		h, _ := strconv.ParseFloat(m["high"], 64)
		l, _ := strconv.ParseFloat(m["low"], 64)
		c, _ := strconv.ParseFloat(m["close"], 64)
		v, _ := strconv.ParseFloat(m["volume"], 64)
		if o == 0 && c == 0 {
			continue
		}
		out = append(out, row{timeMs: t.UnixMilli(), open: o, high: h, low: l, close: c, volume: v})
	}
	return out, nil
}

func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time: %q", s)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
