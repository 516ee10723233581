// FILE: broker_bridge.go
// Package main – HTTP broker that talks to a local trading-terminal sidecar.
//
// Desks that keep the account on a desktop terminal expose it to services
// through a small REST sidecar. This broker fronts that sidecar:
//   • Open:     POST /order  {symbol, side, lot, price, take_profit, ...}
//   • CloseAll: POST /close  {symbol, tickets, price}
//
// The sidecar answers with the terminal's ticket numbers, which become leg
// IDs. Bookkeeping prices stay the strategy's decision prices (see the note
// in broker_alpaca.go); the take_profit field is passed through so the
// terminal shows the same target the strategy manages.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BridgeBroker talks to the local terminal sidecar.
type BridgeBroker struct {
	base string
	hc   *http.Client
}

func NewBridgeBroker(base string) *BridgeBroker {
	base = strings.TrimSpace(base)
	if i := strings.IndexAny(base, " \t#"); i >= 0 { // cut trailing comment/space
		base = strings.TrimSpace(base[:i])
	}
	if base == "" {
		base = "http://127.0.0.1:8787"
	}
	base = strings.TrimRight(base, "/")
	return &BridgeBroker{
		base: base,
		hc:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (bb *BridgeBroker) Name() string { return "bridge" }

// post sends one JSON document and decodes the JSON reply into out.
func (bb *BridgeBroker) post(ctx context.Context, path string, body map[string]any, out any) error {
	bs, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, bb.base+path, bytes.NewReader(bs))
	if err != nil {
		return fmt.Errorf("newrequest %s: %w", path, err)
	}
	req.Header.Set("User-Agent", "rangebot/bridge")
	req.Header.Set("Content-Type", "application/json")

	res, err := bb.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%s %d: %s", path, res.StatusCode, string(b))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// Open asks the terminal for one market fill.
func (bb *BridgeBroker) Open(ctx context.Context, req OrderRequest) (*Leg, error) {
	if req.Lot <= 0 {
		return nil, fmt.Errorf("bridge open %s %s lot=%v: %w", req.Symbol, req.Side, req.Lot, ErrOrderRejected)
	}
	body := map[string]any{
		"symbol":          req.Symbol,
		"side":            string(req.Side),
		"lot":             fmt.Sprintf("%.2f", req.Lot),
		"price":           req.PriceHint,
		"take_profit":     req.TakeProfit,
		"comment":         fmt.Sprintf("%s/%s", req.Session, req.Role),
		"client_order_id": uuid.New().String(), // dedupe-safe ID for sidecar retries
	}
	var out struct {
		Ticket string `json:"ticket"`
	}
	if err := bb.post(ctx, "/order", body, &out); err != nil {
		return nil, fmt.Errorf("bridge open %s %s: %v: %w", req.Symbol, req.Side, err, ErrOrderRejected)
	}
	if out.Ticket == "" {
		return nil, fmt.Errorf("bridge open %s %s: sidecar returned no ticket: %w", req.Symbol, req.Side, ErrOrderRejected)
	}
	return &Leg{
		ID:         out.Ticket,
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

// CloseAll flattens every ticket in one sidecar call. A partial close means
// leg accounting can no longer be trusted, so it fails the whole batch.
func (bb *BridgeBroker) CloseAll(ctx context.Context, legs []*Leg, price float64, at time.Time) ([]Fill, error) {
	if len(legs) == 0 {
		return nil, nil
	}
	tickets := make([]string, 0, len(legs))
	for _, leg := range legs {
		tickets = append(tickets, leg.ID)
	}
	body := map[string]any{
		"symbol":  legs[0].Symbol,
		"tickets": tickets,
		"price":   price,
	}
	var out struct {
		Closed int `json:"closed"`
	}
	if err := bb.post(ctx, "/close", body, &out); err != nil {
		return nil, fmt.Errorf("bridge close %d tickets: %v: %w", len(tickets), err, ErrCloseFailed)
	}
	if out.Closed != len(legs) {
		return nil, fmt.Errorf("bridge close: sidecar confirmed %d of %d tickets: %w", out.Closed, len(legs), ErrCloseFailed)
	}
	fills := make([]Fill, 0, len(legs))
	for _, leg := range legs {
		fills = append(fills, Fill{Leg: leg, Price: price, Time: at})
	}
	return fills, nil
}
