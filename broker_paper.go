// FILE: broker_paper.go
// Package main – In-memory paper broker (no external dependencies).
//
// This broker simulates execution at the caller's decision price. It's used
// for backtests and dry runs: the strategy assumes idealized fills at bar
// close (or level/TP) prices, and the paper broker delivers exactly that.
//
// Methods:
//   • Name() string
//   • Open(ctx, req) (*Leg, error)
//   • CloseAll(ctx, legs, price, at) ([]Fill, error)
package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaperBroker fills every order instantly at the hinted price.
type PaperBroker struct {
	mu       sync.Mutex
	openLegs int
}

func NewPaperBroker() *PaperBroker { return &PaperBroker{} }

func (p *PaperBroker) Name() string { return "paper" }

// Open creates a leg at the hint price with a fresh uuid.
func (p *PaperBroker) Open(ctx context.Context, req OrderRequest) (*Leg, error) {
	if req.Lot <= 0 {
		return nil, fmt.Errorf("paper open %s %s lot=%v: %w", req.Symbol, req.Side, req.Lot, ErrOrderRejected)
	}
	if req.PriceHint <= 0 {
		return nil, fmt.Errorf("paper open %s %s price=%v: %w", req.Symbol, req.Side, req.PriceHint, ErrOrderRejected)
	}
	p.mu.Lock()
	p.openLegs++
	p.mu.Unlock()
	return &Leg{
		ID:         uuid.New().String(),
		Symbol:     req.Symbol,
		Session:    req.Session,
		Role:       req.Role,
		Side:       req.Side,
		Lot:        req.Lot,
		EntryPrice: req.PriceHint,
		EntryTime:  req.Time,
		TakeProfit: req.TakeProfit,
	}, nil
}

// CloseAll fills every leg at the shared exit price.
func (p *PaperBroker) CloseAll(ctx context.Context, legs []*Leg, price float64, at time.Time) ([]Fill, error) {
	if price <= 0 {
		return nil, fmt.Errorf("paper close at %v: %w", price, ErrCloseFailed)
	}
	fills := make([]Fill, 0, len(legs))
	for _, leg := range legs {
		fills = append(fills, Fill{Leg: leg, Price: price, Time: at})
	}
	p.mu.Lock()
	p.openLegs -= len(legs)
	p.mu.Unlock()
	return fills, nil
}

// OpenLegs reports how many legs the broker believes are still open. The
// session machines own the authoritative list; this is a cross-check for
// tests and the /healthz handler.
func (p *PaperBroker) OpenLegs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.openLegs
}
