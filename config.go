// FILE: config.go
// Package main – Runtime configuration model and loader.
//
// This file defines the Config struct (all the knobs the bot uses) and a
// helper to populate it from environment variables. The .env file is read
// by loadBotEnv() (see env.go), so you can tune behavior without exports.
//
// Typical flow (see main.go):
//   loadBotEnv()
//   cfg := loadConfigFromEnv()
//
// Config is immutable after load: the session machines and the scheduler
// receive it at construction and never write to it during a run.

package main

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

// DayClock is a wall-clock minute of day (0..1439) in the session timezone.
// Session windows compare bar open times on this scale, so window checks do
// not depend on the date.
type DayClock int

// ClockUnset marks optional session knobs that are not configured.
const ClockUnset DayClock = -1

// parseDayClock parses "HH:MM" (24h).
func parseDayClock(s string) (DayClock, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return ClockUnset, fmt.Errorf("want HH:MM: %w", err)
	}
	return DayClock(t.Hour()*60 + t.Minute()), nil
}

// dayClockOf projects an instant onto the minute-of-day scale in loc.
func dayClockOf(t time.Time, loc *time.Location) DayClock {
	lt := t.In(loc)
	return DayClock(lt.Hour()*60 + lt.Minute())
}

func (d DayClock) Set() bool { return d >= 0 }

func (d DayClock) String() string {
	if d < 0 {
		return "unset"
	}
	return fmt.Sprintf("%02d:%02d", int(d)/60, int(d)%60)
}

// Config holds all runtime knobs for trading and operations.
type Config struct {
	// Instrument
	Symbol     string  // e.g., "XAUUSD"
	Timeframe  string  // bar size, e.g., "5m"
	PricePoint float64 // smallest quoted price increment
	LotSize    float64 // base lot per leg

	// Strategy
	TPUnits             float64   // take-profit distance in points
	ScaleLevels         []float64 // retracement fractions, list order = fire order
	ReversalScaleLevels []float64 // pending set after a direction flip
	ReversalSizeMult    float64   // lot multiplier once a session has flipped
	MaxReversals        int       // terminal after this many flips
	RangeMinBars        int       // minimum bars needed to form a range

	// Sessions
	Morning   SessionSpec
	Afternoon SessionSpec
	Timezone  string
	Loc       *time.Location

	// Accounting
	InitialBalance float64

	// Ops
	Feed            string // csv | clickhouse | alpaca | redis
	Broker          string // paper | alpaca | bridge
	CSVPath         string // bar source for FEED=csv
	OutputPrefix    string // artifact file prefix for backtests
	PollIntervalSec int    // live poll cadence
	Port            int    // /healthz and /metrics
}

// TPDistance converts the point-denominated knob into a price distance.
func (c *Config) TPDistance() float64 { return c.TPUnits * c.PricePoint }

// loadConfigFromEnv reads the process env (already hydrated by loadBotEnv())
// and returns a Config with sane defaults if keys are missing. Structural
// mistakes (unparseable clocks, nonsense windows) abort the boot.
func loadConfigFromEnv() Config {
	tz := getEnv("SESSION_TZ", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Fatalf("config: SESSION_TZ=%q: %v", tz, err)
	}

	cfg := Config{
		Symbol:     getEnv("SYMBOL", "XAUUSD"),
		Timeframe:  getEnv("TIMEFRAME", "5m"),
		PricePoint: getEnvFloat("PRICE_POINT", 0.00001),
		LotSize:    getEnvFloat("LOT_SIZE", 0.01),

		TPUnits:             getEnvFloat("TP_UNITS", 580.0),
		ScaleLevels:         levelsEnv("SCALE_LEVELS", "0.75,0.50,0.25"),
		ReversalScaleLevels: levelsEnv("REVERSAL_SCALE_LEVELS", "0.50"),
		ReversalSizeMult:    getEnvFloat("REVERSAL_SIZE_MULT", 2.0),
		MaxReversals:        getEnvInt("MAX_REVERSALS", 2),
		RangeMinBars:        getEnvInt("RANGE_MIN_BARS", 1),

		Morning: SessionSpec{
			Name:        "morning",
			RangeStart:  clockEnv("MORNING_RANGE_START", "10:00"),
			RangeEnd:    clockEnv("MORNING_RANGE_END", "10:15"),
			EntryStart:  clockEnv("MORNING_ENTRY_START", "10:15"),
			EntryCutoff: optClockEnv("MORNING_ENTRY_CUTOFF", "16:29"),
			ExitTime:    optClockEnv("MORNING_EXIT_TIME", ""),
		},
		Afternoon: SessionSpec{
			Name:        "afternoon",
			RangeStart:  clockEnv("AFTERNOON_RANGE_START", "16:30"),
			RangeEnd:    clockEnv("AFTERNOON_RANGE_END", "16:45"),
			EntryStart:  clockEnv("AFTERNOON_ENTRY_START", "16:45"),
			EntryCutoff: optClockEnv("AFTERNOON_ENTRY_CUTOFF", ""),
			ExitTime:    optClockEnv("AFTERNOON_EXIT_TIME", "23:55"),
		},
		Timezone: tz,
		Loc:      loc,

		InitialBalance: getEnvFloat("INITIAL_BALANCE", 10000.0),

		Feed:            strings.ToLower(getEnv("FEED", "csv")),
		Broker:          strings.ToLower(getEnv("BROKER", "paper")),
		CSVPath:         getEnv("CSV_PATH", ""),
		OutputPrefix:    getEnv("OUTPUT_PREFIX", "rangebot"),
		PollIntervalSec: getEnvInt("POLL_INTERVAL_SEC", 10),
		Port:            getEnvInt("PORT", 8087),
	}

	if cfg.PricePoint <= 0 {
		log.Fatalf("config: PRICE_POINT must be > 0, got %v", cfg.PricePoint)
	}
	if cfg.LotSize <= 0 {
		log.Fatalf("config: LOT_SIZE must be > 0, got %v", cfg.LotSize)
	}
	if cfg.MaxReversals < 0 {
		log.Fatalf("config: MAX_REVERSALS must be >= 0, got %d", cfg.MaxReversals)
	}
	if cfg.RangeMinBars < 1 {
		cfg.RangeMinBars = 1
	}
	for _, spec := range []SessionSpec{cfg.Morning, cfg.Afternoon} {
		if spec.RangeEnd <= spec.RangeStart {
			log.Fatalf("config: %s range window %s..%s is empty", spec.Name, spec.RangeStart, spec.RangeEnd)
		}
		if spec.EntryStart < spec.RangeEnd {
			log.Fatalf("config: %s entry start %s precedes range end %s", spec.Name, spec.EntryStart, spec.RangeEnd)
		}
	}

	return cfg
}

// ---- env parsing helpers for structured knobs ----

// clockEnv reads a mandatory HH:MM knob.
func clockEnv(key, def string) DayClock {
	raw := getEnv(key, def)
	c, err := parseDayClock(raw)
	if err != nil {
		log.Fatalf("config: %s=%q: %v", key, raw, err)
	}
	return c
}

// optClockEnv reads an optional HH:MM knob; empty (or "none") leaves it unset.
func optClockEnv(key, def string) DayClock {
	raw := getEnv(key, def)
	if raw == "" || strings.EqualFold(raw, "none") {
		return ClockUnset
	}
	c, err := parseDayClock(raw)
	if err != nil {
		log.Fatalf("config: %s=%q: %v", key, raw, err)
	}
	return c
}

// levelsEnv reads a comma-separated list of retracement fractions in (0,1].
func levelsEnv(key, def string) []float64 {
	raw := getEnv(key, def)
	var out []float64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil || f <= 0 || f > 1 {
			log.Fatalf("config: %s=%q: %q is not a fraction in (0,1]", key, raw, part)
		}
		out = append(out, f)
	}
	return out
}
