// Package marketdata provides closed-candle bars to the signal pipeline.
package marketdata

import (
	"context"

	"github.com/navid-fn/ladder/internal/model"
	"github.com/navid-fn/ladder/internal/repository"
)

// Source yields closed bars for one asset, ascending by timestamp. An
// empty slice means no data for the window; that is not an error.
type Source interface {
	GetBars(ctx context.Context, asset string, interval int64, start, end int64) ([]model.Bar, error)
}

// StoreSource reads bars the ingester has already landed in the repository.
// It is the engine's production source.
type StoreSource struct {
	bars repository.BarRepository
}

func NewStoreSource(bars repository.BarRepository) *StoreSource {
	return &StoreSource{bars: bars}
}

func (s *StoreSource) GetBars(ctx context.Context, asset string, interval int64, start, end int64) ([]model.Bar, error) {
	return s.bars.FetchBars(ctx, asset, repository.Window{Since: start, Until: end}, 0)
}
