// Package api serves a read-only view of the engine's state: recent pivots,
// tracked opportunities, trades, and the Prometheus metrics endpoint.
package api

import (
	"context"

	"github.com/navid-fn/ladder/internal/model"
	"github.com/navid-fn/ladder/internal/repository"
)

type StatusService struct {
	store repository.Store
}

func NewStatusService(store repository.Store) *StatusService {
	return &StatusService{store: store}
}

func (s *StatusService) GetPivots(ctx context.Context, asset string, w repository.Window) ([]model.PivotPoint, error) {
	return s.store.FetchPivots(ctx, asset, w)
}

func (s *StatusService) GetOpportunities(ctx context.Context, asset string, openOnly bool) ([]model.Opportunity, error) {
	opps, err := s.store.FetchOpportunities(ctx, asset, repository.Window{})
	if err != nil {
		return nil, err
	}
	if !openOnly {
		return opps, nil
	}
	open := make([]model.Opportunity, 0, len(opps))
	for _, o := range opps {
		if o.Open() {
			open = append(open, o)
		}
	}
	return open, nil
}

func (s *StatusService) GetActiveTrades(ctx context.Context) ([]model.Trade, error) {
	return s.store.FetchActiveTrades(ctx)
}

func (s *StatusService) GetTrades(ctx context.Context, asset string) ([]model.Trade, error) {
	return s.store.FetchTrades(ctx, asset)
}
