package repository

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/navid-fn/ladder/internal/model"
)

// gormStore implements Store on ClickHouse through gorm. The tables are
// ReplacingMergeTree keyed by each type's uniqueness key with updated_at as
// version column, so an upsert is a plain insert and reads use FINAL to see
// the latest row per key.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func nowMilli() int64 {
	return time.Now().UnixMilli()
}

func (s *gormStore) UpsertBars(ctx context.Context, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(bars).Error
}

func (s *gormStore) FetchBars(ctx context.Context, asset string, w Window, limit int) ([]model.Bar, error) {
	q := s.db.WithContext(ctx).Table("bars FINAL").Where("asset = ?", asset)
	if w.Since != 0 {
		q = q.Where("timestamp >= ?", w.Since)
	}
	if w.Until != 0 {
		q = q.Where("timestamp <= ?", w.Until)
	}
	// Newest-first with the limit applied, then flipped back to ascending.
	q = q.Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var bars []model.Bar
	if err := q.Find(&bars).Error; err != nil {
		return nil, err
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp })
	return bars, nil
}

func (s *gormStore) LatestBar(ctx context.Context, asset string, until int64) (model.Bar, bool, error) {
	q := s.db.WithContext(ctx).Table("bars FINAL").Where("asset = ?", asset)
	if until != 0 {
		q = q.Where("timestamp <= ?", until)
	}
	var bars []model.Bar
	if err := q.Order("timestamp DESC").Limit(1).Find(&bars).Error; err != nil {
		return model.Bar{}, false, err
	}
	if len(bars) == 0 {
		return model.Bar{}, false, nil
	}
	return bars[0], true, nil
}

func (s *gormStore) UpsertPivots(ctx context.Context, pivots []model.PivotPoint) error {
	if len(pivots) == 0 {
		return nil
	}
	now := nowMilli()
	for i := range pivots {
		pivots[i].UpdatedAt = now
	}
	return s.db.WithContext(ctx).Create(pivots).Error
}

func (s *gormStore) FetchPivots(ctx context.Context, asset string, w Window) ([]model.PivotPoint, error) {
	q := s.db.WithContext(ctx).Table("pivots FINAL").Where("asset = ?", asset)
	if w.Since != 0 {
		q = q.Where("timestamp >= ?", w.Since)
	}
	if w.Until != 0 {
		q = q.Where("timestamp <= ?", w.Until)
	}
	var pivots []model.PivotPoint
	if err := q.Order("timestamp ASC").Find(&pivots).Error; err != nil {
		return nil, err
	}
	return pivots, nil
}

func (s *gormStore) UpsertOpportunities(ctx context.Context, opps []model.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}
	now := nowMilli()
	for i := range opps {
		opps[i].UpdatedAt = now
	}
	return s.db.WithContext(ctx).Create(opps).Error
}

func (s *gormStore) FetchOpportunities(ctx context.Context, asset string, w Window) ([]model.Opportunity, error) {
	q := s.db.WithContext(ctx).Table("opportunities FINAL").Where("asset = ?", asset)
	if w.Since != 0 {
		q = q.Where("start_time >= ?", w.Since)
	}
	if w.Until != 0 {
		q = q.Where("start_time <= ?", w.Until)
	}
	var opps []model.Opportunity
	if err := q.Order("start_time ASC").Find(&opps).Error; err != nil {
		return nil, err
	}
	return opps, nil
}

func (s *gormStore) UpsertTrades(ctx context.Context, trades []model.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	now := nowMilli()
	for i := range trades {
		trades[i].UpdatedAt = now
	}
	return s.db.WithContext(ctx).Create(trades).Error
}

func (s *gormStore) FetchActiveTrades(ctx context.Context) ([]model.Trade, error) {
	var trades []model.Trade
	err := s.db.WithContext(ctx).Table("trades FINAL").
		Where("quantity > 0").
		Order("order_id ASC").
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	active := trades[:0]
	for _, t := range trades {
		if !t.Closed() {
			active = append(active, t)
		}
	}
	return active, nil
}

func (s *gormStore) FetchTrades(ctx context.Context, asset string) ([]model.Trade, error) {
	q := s.db.WithContext(ctx).Table("trades FINAL")
	if asset != "" {
		q = q.Where("asset = ?", asset)
	}
	var trades []model.Trade
	if err := q.Order("timestamp DESC").Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}
