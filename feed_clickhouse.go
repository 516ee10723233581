// FILE: feed_clickhouse.go
// Package main – ClickHouse bar feed.
//
// Reads completed candles from a ClickHouse table (see tools/ingest_candles
// for the loader that fills it). Connection knobs come from the env:
//   CLICKHOUSE_ADDR      host:port            (default "localhost:9000")
//   CLICKHOUSE_DB        database             (default "trading")
//   CLICKHOUSE_USER      username             (default "default")
//   CLICKHOUSE_PASSWORD  password             (default "")
//   CLICKHOUSE_TABLE     candles table        (default "candles")

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseFeed serves bars out of a candles table.
type ClickHouseFeed struct {
	conn  driver.Conn
	table string
}

func NewClickHouseFeed(ctx context.Context) (*ClickHouseFeed, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{getEnv("CLICKHOUSE_ADDR", "localhost:9000")},
		Auth: clickhouse.Auth{
			Database: getEnv("CLICKHOUSE_DB", "trading"),
			Username: getEnv("CLICKHOUSE_USER", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &ClickHouseFeed{conn: conn, table: getEnv("CLICKHOUSE_TABLE", "candles")}, nil
}

func (f *ClickHouseFeed) Name() string { return "clickhouse" }

func (f *ClickHouseFeed) Fetch(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]Bar, error) {
	q := fmt.Sprintf(`
SELECT open_time_ms, open, high, low, close, volume
FROM %s
WHERE symbol = ? AND timeframe = ? AND open_time_ms >= ? AND open_time_ms < ?
ORDER BY open_time_ms`, f.table)

	fromMs := int64(0)
	if !from.IsZero() {
		fromMs = from.UnixMilli()
	}
	toMs := int64(1<<62 - 1)
	if !to.IsZero() {
		toMs = to.UnixMilli()
	}

	rows, err := f.conn.Query(ctx, q, symbol, timeframe, fromMs, toMs)
	if err != nil {
		return nil, fmt.Errorf("clickhouse query: %w", err)
	}
	defer rows.Close()

	var out []Bar
	for rows.Next() {
		var (
			ms         int64
			o, h, l, c float64
			v          float64
		)
		if err := rows.Scan(&ms, &o, &h, &l, &c, &v); err != nil {
			return nil, fmt.Errorf("clickhouse scan: %w", err)
		}
		out = append(out, Bar{Time: time.UnixMilli(ms).UTC(), Open: o, High: h, Low: l, Close: c, Volume: v})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clickhouse rows: %w", err)
	}

	return cleanBars(f.Name(), out), nil
}
