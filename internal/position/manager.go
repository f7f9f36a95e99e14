// Package position manages entered trades rung by rung: placing the
// take-profit ladder once the entry fills, consuming rungs as they fill,
// and liquidating the remainder when the active stop is breached.
package position

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/ladder/internal/metrics"
	"github.com/navid-fn/ladder/internal/model"
	"github.com/navid-fn/ladder/internal/repository"
	"github.com/navid-fn/ladder/internal/venue"
)

// salesRatios are the quantity shares of the first two take-profit legs;
// the third leg takes whatever remains after rounding.
var salesRatios = []float64{0.50, 0.25}

// Manager advances every active trade once per evaluation cycle.
type Manager struct {
	venue  venue.Venue
	store  repository.Store
	logger *logrus.Logger
}

func NewManager(v venue.Venue, store repository.Store, logger *logrus.Logger) *Manager {
	return &Manager{venue: v, store: store, logger: logger}
}

// Process loads the active trades, steps each through its ladder using the
// latest closed bar at or before now, and persists every trade regardless
// of which branch it took. A failure on one trade is logged and does not
// stop the others.
func (m *Manager) Process(ctx context.Context, now int64, pairs map[string]venue.PairInfo) error {
	trades, err := m.store.FetchActiveTrades(ctx)
	if err != nil {
		return fmt.Errorf("position manager: loading trades: %w", err)
	}
	for i := range trades {
		t := &trades[i]
		if err := m.step(ctx, t, now, pairs[t.Asset]); err != nil {
			m.logger.Errorf("[Position] %s order %s: %v", t.Asset, t.OrderID, err)
		}
	}
	if err := m.store.UpsertTrades(ctx, trades); err != nil {
		return fmt.Errorf("position manager: persisting trades: %w", err)
	}
	return nil
}

// step advances one trade. Broker call failures never corrupt the ladder:
// a leg that could not be confirmed placed is recorded as an empty id, a
// fill that could not be confirmed stays unconsumed, and rungs are only
// zeroed after the liquidation order is accepted.
func (m *Manager) step(ctx context.Context, t *model.Trade, now int64, pair venue.PairInfo) error {
	if t.Closed() {
		return nil
	}

	if t.Entry == 0 {
		status, err := m.venue.QueryOrder(ctx, t.OrderID)
		if err != nil {
			return fmt.Errorf("querying entry order: %w", err)
		}
		if status != venue.StatusFilled {
			// Entry not filled yet; nothing to manage this cycle.
			return nil
		}
		m.placeLadder(ctx, t, pair)
		t.Entry = 1
	}

	bar, ok, err := m.store.LatestBar(ctx, t.Asset, now)
	if err != nil {
		return fmt.Errorf("loading latest bar: %w", err)
	}
	if !ok {
		return nil
	}

	m.consumeFilledRungs(ctx, t)
	if t.Closed() {
		metrics.IncTradeClosed("take_profit")
		m.logger.Infof("[Position] %s order %s: ladder fully consumed, trade closed", t.Asset, t.OrderID)
		return nil
	}

	remaining := t.Remaining()
	stop, hasStop := t.ActiveStop()
	if !hasStop || bar.Low > stop {
		return nil
	}
	return m.liquidate(ctx, t, remaining, pair)
}

// placeLadder submits the three take-profit legs for quantity shares
// 50%/25%/remainder. A failed leg is recorded as an empty id and tolerated;
// the trade leaves PENDING_TP_PLACEMENT even with a partial ladder.
func (m *Manager) placeLadder(ctx context.Context, t *model.Trade, pair venue.PairInfo) {
	allocated := 0.0
	for i := 0; i < model.LadderSize; i++ {
		var qty float64
		if i < len(salesRatios) {
			qty = round(t.Quantity*salesRatios[i], pair.AmountPrecision)
		} else {
			qty = round(t.Quantity-allocated, pair.AmountPrecision)
		}
		allocated += qty

		placed, err := m.venue.PlaceOrder(ctx, venue.OrderRequest{
			Asset:    t.Asset,
			Side:     venue.SideSell,
			Type:     venue.TypeLimit,
			Quantity: qty,
			Price:    round(t.ProfitLevel[i], pair.PricePrecision),
		})
		if err != nil {
			m.logger.Warnf("[Position] %s: TP leg %d failed: %v", t.Asset, i, err)
			t.TPOrderIDs = append(t.TPOrderIDs, "")
			continue
		}
		t.TPOrderIDs = append(t.TPOrderIDs, placed.OrderID)
	}
}

// consumeFilledRungs zeroes the profit and stop entries of every rung whose
// take-profit order has filled, preserving ladder indices.
func (m *Manager) consumeFilledRungs(ctx context.Context, t *model.Trade) {
	for i, oid := range t.TPOrderIDs {
		if oid == "" || i >= len(t.ProfitLevel) || t.ProfitLevel[i] == 0 {
			continue
		}
		status, err := m.venue.QueryOrder(ctx, oid)
		if err != nil {
			// Unconfirmed: treat as no state change and check again next
			// cycle.
			m.logger.Warnf("[Position] %s: query TP %s: %v", t.Asset, oid, err)
			continue
		}
		if status == venue.StatusFilled {
			t.ProfitLevel[i] = 0
			t.StopLoss[i] = 0
		}
	}
}

// liquidate cancels every still-open take-profit order and market-sells the
// remaining share of the position. Rungs are zeroed only once the sell is
// accepted (or nothing is left to sell), closing the trade.
func (m *Manager) liquidate(ctx context.Context, t *model.Trade, remaining int, pair venue.PairInfo) error {
	for i, oid := range t.TPOrderIDs {
		if oid == "" || i >= len(t.ProfitLevel) || t.ProfitLevel[i] == 0 {
			continue
		}
		if err := m.venue.CancelOrder(ctx, oid); err != nil {
			m.logger.Warnf("[Position] %s: cancel TP %s: %v", t.Asset, oid, err)
		}
	}

	qty := round(t.Quantity*model.RemainFraction(remaining), pair.AmountPrecision)
	if qty > 0 {
		_, err := m.venue.PlaceOrder(ctx, venue.OrderRequest{
			Asset:    t.Asset,
			Side:     venue.SideSell,
			Type:     venue.TypeMarket,
			Quantity: qty,
		})
		if err != nil {
			return fmt.Errorf("liquidation sell: %w", err)
		}
	}

	for i := range t.ProfitLevel {
		t.ProfitLevel[i] = 0
		t.StopLoss[i] = 0
	}
	metrics.IncTradeClosed("stop_loss")
	m.logger.Infof("[Position] %s order %s: stop hit, liquidated %v, trade closed", t.Asset, t.OrderID, qty)
	return nil
}

func round(v float64, precision int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(precision).Float64()
	return f
}
