// Package repository persists bars, pivots, opportunities and trades. All
// writes are upserts keyed by each type's uniqueness key, so re-running a
// cycle over overlapping data never duplicates rows.
package repository

import (
	"context"

	"github.com/navid-fn/ladder/internal/model"
)

// Window bounds a fetch by inclusive unix-millisecond timestamps. A zero
// field leaves that side unbounded.
type Window struct {
	Since int64
	Until int64
}

func (w Window) contains(ts int64) bool {
	if w.Since != 0 && ts < w.Since {
		return false
	}
	if w.Until != 0 && ts > w.Until {
		return false
	}
	return true
}

// BarRepository stores OHLCV bars keyed by (asset, timestamp).
type BarRepository interface {
	UpsertBars(ctx context.Context, bars []model.Bar) error
	// FetchBars returns bars ascending by timestamp; limit <= 0 means all.
	// When limit trims the result it keeps the newest bars.
	FetchBars(ctx context.Context, asset string, w Window, limit int) ([]model.Bar, error)
	// LatestBar returns the most recent bar at or before the until
	// timestamp; ok is false when the asset has no data yet.
	LatestBar(ctx context.Context, asset string, until int64) (model.Bar, bool, error)
}

// PivotRepository stores pivots keyed by (asset, timestamp, type).
type PivotRepository interface {
	UpsertPivots(ctx context.Context, pivots []model.PivotPoint) error
	FetchPivots(ctx context.Context, asset string, w Window) ([]model.PivotPoint, error)
}

// OpportunityRepository stores opportunities keyed by
// (asset, start, support_line).
type OpportunityRepository interface {
	UpsertOpportunities(ctx context.Context, opps []model.Opportunity) error
	FetchOpportunities(ctx context.Context, asset string, w Window) ([]model.Opportunity, error)
}

// TradeRepository stores trades keyed by order id.
type TradeRepository interface {
	UpsertTrades(ctx context.Context, trades []model.Trade) error
	// FetchActiveTrades returns trades that still need position management:
	// positive quantity and not yet fully closed.
	FetchActiveTrades(ctx context.Context) ([]model.Trade, error)
	FetchTrades(ctx context.Context, asset string) ([]model.Trade, error)
}

// Store bundles the four repositories behind one dependency.
type Store interface {
	BarRepository
	PivotRepository
	OpportunityRepository
	TradeRepository
}
