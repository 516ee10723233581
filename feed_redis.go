// FILE: feed_redis.go
// Package main – Redis bar feed.
//
// Reads the candle history list a market-data publisher maintains at
//   candle.history.{timeframe}.{symbol}
// where each element is a JSON candle with string-typed fields and a
// millisecond timestamp. Unconfirmed (still-forming) candles are skipped so
// the strategy only ever sees completed bars.
//
// Connection knobs:
//   REDIS_ADDR      host:port   (default "localhost:6379")
//   REDIS_PASSWORD  password    (default "")
//   REDIS_DB        database    (default 0)

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCandle is the published JSON shape. Everything arrives as strings.
type redisCandle struct {
	InstID  string `json:"instId"`
	Bar     string `json:"bar"`
	Open    string `json:"open"`
	High    string `json:"high"`
	Low     string `json:"low"`
	Close   string `json:"close"`
	Confirm string `json:"confirm"`
	Ts      string `json:"ts"` // milliseconds
}

// RedisFeed serves bars out of a published candle history list.
type RedisFeed struct {
	rdb *redis.Client
}

func NewRedisFeed(ctx context.Context) (*RedisFeed, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisFeed{rdb: rdb}, nil
}

func (f *RedisFeed) Name() string { return "redis" }

func (f *RedisFeed) Fetch(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]Bar, error) {
	key := fmt.Sprintf("candle.history.%s.%s", timeframe, symbol)
	vals, err := f.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", key, err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("redis %s empty: %w", key, ErrDataUnavailable)
	}

	out := make([]Bar, 0, len(vals))
	for i, raw := range vals {
		var cd redisCandle
		if err := json.Unmarshal([]byte(raw), &cd); err != nil {
			IncFeedError(f.Name())
			return nil, fmt.Errorf("redis %s: bad candle at index %d: %w", key, i, err)
		}
		if cd.Confirm == "0" {
			continue
		}
		b, err := cd.toBar()
		if err != nil {
			IncFeedError(f.Name())
			return nil, fmt.Errorf("redis %s: candle at index %d: %w", key, i, err)
		}
		out = append(out, b)
	}
	return clipWindow(cleanBars(f.Name(), out), from, to), nil
}

func (cd redisCandle) toBar() (Bar, error) {
	ms, err := strconv.ParseInt(cd.Ts, 10, 64)
	if err != nil {
		return Bar{}, fmt.Errorf("bad ts %q", cd.Ts)
	}
	o, err1 := strconv.ParseFloat(cd.Open, 64)
	h, err2 := strconv.ParseFloat(cd.High, 64)
	l, err3 := strconv.ParseFloat(cd.Low, 64)
	c, err4 := strconv.ParseFloat(cd.Close, 64)
	for _, e := range []error{err1, err2, err3, err4} {
		if e != nil {
			return Bar{}, fmt.Errorf("bad ohlc in %s candle: %v", cd.InstID, e)
		}
	}
	return Bar{Time: time.UnixMilli(ms).UTC(), Open: o, High: h, Low: l, Close: c}, nil
}
