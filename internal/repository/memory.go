package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/navid-fn/ladder/internal/model"
)

// MemoryStore is an in-memory Store used by tests and dry runs. Upserts are
// keyed map writes, which makes the idempotency contract trivially
// observable.
type MemoryStore struct {
	mu     sync.RWMutex
	bars   map[string]map[int64]model.Bar
	pivots map[string]map[pivotID]model.PivotPoint
	opps   map[string]map[oppID]model.Opportunity
	trades map[string]model.Trade
}

type pivotID struct {
	ts  int64
	typ model.PivotType
}

type oppID struct {
	start       int64
	supportLine float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bars:   map[string]map[int64]model.Bar{},
		pivots: map[string]map[pivotID]model.PivotPoint{},
		opps:   map[string]map[oppID]model.Opportunity{},
		trades: map[string]model.Trade{},
	}
}

func (m *MemoryStore) UpsertBars(ctx context.Context, bars []model.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range bars {
		byTS, ok := m.bars[b.Asset]
		if !ok {
			byTS = map[int64]model.Bar{}
			m.bars[b.Asset] = byTS
		}
		byTS[b.Timestamp] = b
	}
	return nil
}

func (m *MemoryStore) FetchBars(ctx context.Context, asset string, w Window, limit int) ([]model.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Bar
	for _, b := range m.bars[asset] {
		if w.contains(b.Timestamp) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *MemoryStore) LatestBar(ctx context.Context, asset string, until int64) (model.Bar, bool, error) {
	bars, err := m.FetchBars(ctx, asset, Window{Until: until}, 1)
	if err != nil || len(bars) == 0 {
		return model.Bar{}, false, err
	}
	return bars[0], true, nil
}

func (m *MemoryStore) UpsertPivots(ctx context.Context, pivots []model.PivotPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pivots {
		byID, ok := m.pivots[p.Asset]
		if !ok {
			byID = map[pivotID]model.PivotPoint{}
			m.pivots[p.Asset] = byID
		}
		byID[pivotID{p.Timestamp, p.Type}] = p
	}
	return nil
}

func (m *MemoryStore) FetchPivots(ctx context.Context, asset string, w Window) ([]model.PivotPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.PivotPoint
	for _, p := range m.pivots[asset] {
		if w.contains(p.Timestamp) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

func (m *MemoryStore) UpsertOpportunities(ctx context.Context, opps []model.Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range opps {
		byID, ok := m.opps[o.Asset]
		if !ok {
			byID = map[oppID]model.Opportunity{}
			m.opps[o.Asset] = byID
		}
		byID[oppID{o.Start, o.SupportLine}] = o
	}
	return nil
}

func (m *MemoryStore) FetchOpportunities(ctx context.Context, asset string, w Window) ([]model.Opportunity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Opportunity
	for _, o := range m.opps[asset] {
		if w.contains(o.Start) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func (m *MemoryStore) UpsertTrades(ctx context.Context, trades []model.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range trades {
		m.trades[t.OrderID] = cloneTrade(t)
	}
	return nil
}

func (m *MemoryStore) FetchActiveTrades(ctx context.Context) ([]model.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Trade
	for _, t := range m.trades {
		if t.Quantity > 0 && !t.Closed() {
			out = append(out, cloneTrade(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

func (m *MemoryStore) FetchTrades(ctx context.Context, asset string) ([]model.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Trade
	for _, t := range m.trades {
		if asset == "" || t.Asset == asset {
			out = append(out, cloneTrade(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

// cloneTrade copies the ladder slices so callers cannot mutate stored state
// behind the repository's back.
func cloneTrade(t model.Trade) model.Trade {
	t.StopLoss = append([]float64(nil), t.StopLoss...)
	t.ProfitLevel = append([]float64(nil), t.ProfitLevel...)
	t.TPOrderIDs = append([]string(nil), t.TPOrderIDs...)
	return t
}
