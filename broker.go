// FILE: broker.go
// Package main – Execution abstractions shared by all order backends.
//
// This file defines the minimal interface the session machines need to talk
// to an execution backend (paper or real):
//   • Broker interface: open one leg, close a session's legs together
//   • Common types: OrderSide, LegRole, OrderRequest, Leg, Fill
//   • Sentinel errors for the two failure classes the strategy cares about
//
// Concrete implementations live in separate files:
//   • broker_paper.go   – in-memory paper broker (no external calls)
//   • broker_alpaca.go  – Alpaca trading API adapter
//   • broker_bridge.go  – REST sidecar bridging a terminal account
package main

import (
	"context"
	"errors"
	"time"
)

// OrderSide is the side of a trade. Breakout directions map onto sides:
// UP ⇒ BUY, DOWN ⇒ SELL.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Opposite returns the flip side, used by the reversal path.
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// LegRole tags why a leg exists within its session. Reversal re-entries are
// INITIAL legs in the new direction.
type LegRole string

const (
	RoleInitial LegRole = "INITIAL"
	RoleScale75 LegRole = "SCALE_75"
	RoleScale50 LegRole = "SCALE_50"
	RoleScale25 LegRole = "SCALE_25"
)

// OrderRequest asks a backend for one market fill.
type OrderRequest struct {
	Symbol     string
	Side       OrderSide
	Lot        float64
	PriceHint  float64 // decision price; fills are idealized at this price
	TakeProfit float64 // session TP the leg is opened under (for the journal)
	Role       LegRole
	Session    string // "morning" | "afternoon"
	Time       time.Time
}

// Leg is one filled entry belonging to a session position. Legs are created
// by the broker and never mutated; closing produces Fills.
type Leg struct {
	ID         string
	Symbol     string
	Session    string
	Role       LegRole
	Side       OrderSide
	Lot        float64
	EntryPrice float64
	EntryTime  time.Time
	TakeProfit float64
}

// Fill reports one closed leg with its realized exit.
type Fill struct {
	Leg   *Leg
	Price float64
	Time  time.Time
}

var (
	// ErrOrderRejected marks a declined open. Non-fatal: the session keeps
	// the state it already reached and simply has one fewer leg.
	ErrOrderRejected = errors.New("order rejected")

	// ErrCloseFailed marks a close-all that could not be confirmed. Fatal to
	// the session-day: leg accounting can no longer be guaranteed.
	ErrCloseFailed = errors.New("close failed")
)

// Broker is the minimal execution surface the session machine needs.
type Broker interface {
	Name() string
	Open(ctx context.Context, req OrderRequest) (*Leg, error)
	CloseAll(ctx context.Context, legs []*Leg, price float64, at time.Time) ([]Fill, error)
}
