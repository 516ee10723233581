// FILE: broker_alpaca.go
// Package main – Alpaca trading API execution backend.
//
// Routes every leg as a plain market order (Day TIF). Credentials come from
// the standard Alpaca env (APCA_API_KEY_ID, APCA_API_SECRET_KEY,
// APCA_API_BASE_URL for paper endpoints); the SDK client reads them itself.
//
// Bookkeeping note: the strategy accounts at its decision prices (bar close,
// level, TP). The broker records those on the Leg/Fill; venue slippage is
// out of scope for the model and shows up only in the real account.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
)

// AlpacaBroker places market orders through the Alpaca trading API.
type AlpacaBroker struct {
	trade *alpaca.Client
}

func NewAlpacaBroker() *AlpacaBroker {
	return &AlpacaBroker{trade: alpaca.NewClient(alpaca.ClientOpts{})}
}

func (b *AlpacaBroker) Name() string { return "alpaca" }

func alpacaSide(s OrderSide) alpaca.Side {
	if s == SideBuy {
		return alpaca.Buy
	}
	return alpaca.Sell
}

// Open submits one market order and returns the leg on acceptance.
func (b *AlpacaBroker) Open(ctx context.Context, req OrderRequest) (*Leg, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("alpaca open %s %s: %w: %w", req.Symbol, req.Side, err, ErrOrderRejected)
	}
	if req.Lot <= 0 {
		return nil, fmt.Errorf("alpaca open %s %s lot=%v: %w", req.Symbol, req.Side, req.Lot, ErrOrderRejected)
	}
	qty := decimal.NewFromFloat(req.Lot)
	order, err := b.trade.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      req.Symbol,
		Qty:         &qty,
		Side:        alpacaSide(req.Side),
		Type:        alpaca.Market,
		TimeInForce: alpaca.Day,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca open %s %s: %v: %w", req.Symbol, req.Side, err, ErrOrderRejected)
	}
	return &Leg{
		ID:         order.ID,
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

// CloseAll flattens every leg with opposite market orders. Any order the
// venue declines makes the whole close a failure: the caller cannot know
// which legs remain, so it must treat the session as unrecoverable.
func (b *AlpacaBroker) CloseAll(ctx context.Context, legs []*Leg, price float64, at time.Time) ([]Fill, error) {
	fills := make([]Fill, 0, len(legs))
	for _, leg := range legs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("alpaca close leg %s: %v: %w", leg.ID, err, ErrCloseFailed)
		}
		qty := decimal.NewFromFloat(leg.Lot)
		_, err := b.trade.PlaceOrder(alpaca.PlaceOrderRequest{
			Symbol:      leg.Symbol,
			Qty:         &qty,
			Side:        alpacaSide(leg.Side.Opposite()),
			Type:        alpaca.Market,
			TimeInForce: alpaca.Day,
		})
		if err != nil {
			return nil, fmt.Errorf("alpaca close leg %s (%s %s lot=%v): %v: %w",
				leg.ID, leg.Side, leg.Role, leg.Lot, err, ErrCloseFailed)
		}
		fills = append(fills, Fill{Leg: leg, Price: price, Time: at})
	}
	return fills, nil
}
