// FILE: env.go
// Package main – Environment helpers for the trading bot.
//
// This file provides:
//   1) Small helpers to read environment variables with sane defaults
//      (strings, ints, floats, bools).
//   2) A loader (loadBotEnv) that hydrates the process env from a local
//      .env file via godotenv. Variables already exported win; the file
//      only fills in what is missing.
//
// Notes:
//   • The bot never requires `export $(cat .env ...)`.
//   • Point ENV_FILE somewhere else to keep several bot configs side by side.

package main

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// --------- Env helpers (used across files) ---------

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "y", "yes":
		return true
	case "0", "false", "n", "no":
		return false
	case "":
		return def
	default:
		return def
	}
}
func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// --------- .env loader ---------

// loadBotEnv reads the .env file (ENV_FILE overrides the path) into the
// process env. godotenv.Load never overrides variables that are already set,
// so exported values keep priority over the file.
func loadBotEnv() {
	path := getEnv("ENV_FILE", ".env")
	if _, err := os.Stat(path); err != nil {
		log.Printf("env: %s not found, relying on process env", path)
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Printf("env: load %s failed: %v", path, err)
		return
	}
	log.Printf("env: loaded %s", path)
}
