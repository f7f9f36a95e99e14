package engine

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/ladder/internal/marketdata"
	"github.com/navid-fn/ladder/internal/model"
	"github.com/navid-fn/ladder/internal/position"
	"github.com/navid-fn/ladder/internal/repository"
	"github.com/navid-fn/ladder/internal/sizing"
	"github.com/navid-fn/ladder/internal/venue"
)

const barInterval = int64(60_000)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig(historyBars int) Config {
	return Config{
		Assets:               []string{"BTC"},
		ReferenceAsset:       "BTC",
		CycleInterval:        time.Minute,
		BarInterval:          barInterval,
		HistoryBars:          historyBars,
		PivotWindow:          2,
		MaxPriceDiffPct:      0.005,
		BreakthroughPct:      0.002,
		SupportLineTimeframe: 20 * barInterval,
		TimeExtension:        5 * barInterval,
		MaxWorkers:           2,
		VolatileWindow:       20,
	}
}

// risingBars produces n monotonically rising candles. They classify as a
// bullish trend and contain no pivots, so the signal phase only acts on
// whatever opportunities are already stored.
func risingBars(n int) []model.Bar {
	bars := make([]model.Bar, n)
	for i := range bars {
		close := 100.0 + float64(i)
		bars[i] = model.Bar{
			Asset:     "BTC",
			Timestamp: int64(i+1) * barInterval,
			Open:      close,
			High:      close + 0.5,
			Low:       close - 0.5,
			Close:     close,
			Volume:    1,
		}
	}
	return bars
}

// failingSource simulates a dead market-data feed.
type failingSource struct{}

func (failingSource) GetBars(ctx context.Context, asset string, interval int64, start, end int64) ([]model.Bar, error) {
	return nil, errors.New("feed unavailable")
}

func maturedOpportunity() model.Opportunity {
	return model.Opportunity{
		Asset:         "BTC",
		Start:         1_000,
		SupportLine:   100,
		Minimum:       99,
		Maximum:       109,
		RelativePivot: 105,
		Action:        model.ActionNone,
		End:           1_000_000_000,
	}
}

func newTestEngine(t *testing.T, cfg Config, bars []model.Bar) (*Engine, *repository.MemoryStore, *venue.PaperVenue) {
	t.Helper()
	ctx := context.Background()

	store := repository.NewMemoryStore()
	if err := store.UpsertBars(ctx, bars); err != nil {
		t.Fatalf("Seeding bars failed: %v", err)
	}

	paper := venue.NewPaperVenue(map[string]float64{"USD": 10_000})
	paper.SetPair("BTC", venue.PairInfo{PricePrecision: 2, AmountPrecision: 3})

	logger := testLogger()
	sizer := sizing.NewSizer(paper, 0.1, logger)
	positions := position.NewManager(paper, store, logger)
	eng := New(cfg, marketdata.NewStoreSource(store), store, paper, sizer, positions, logger)
	return eng, store, paper
}

func TestCyclePlacesEntryForMaturedOpportunity(t *testing.T) {
	ctx := context.Background()
	eng, store, paper := newTestEngine(t, testConfig(61), risingBars(60))

	opp := maturedOpportunity()
	if err := store.UpsertOpportunities(ctx, []model.Opportunity{opp}); err != nil {
		t.Fatalf("Seeding opportunity failed: %v", err)
	}

	eng.Cycle(ctx, 61*barInterval)

	placed := paper.Placed()
	if len(placed) != 1 {
		t.Fatalf("Expected 1 order, got %d", len(placed))
	}
	order := placed[0]
	if order.Side != venue.SideBuy || order.Type != venue.TypeLimit {
		t.Errorf("Expected a LIMIT BUY, got %s %s", order.Type, order.Side)
	}
	// entry = 99 + 0.618 * (109 - 99)
	if math.Abs(order.Price-105.18) > 1e-9 {
		t.Errorf("Expected entry at 105.18, got %v", order.Price)
	}

	opps, err := store.FetchOpportunities(ctx, "BTC", repository.Window{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(opps) != 1 || opps[0].Action != model.ActionBuy {
		t.Errorf("Expected the opportunity marked BUY, got %+v", opps)
	}

	trades, err := store.FetchActiveTrades(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("Expected 1 active trade, got %d", len(trades))
	}
	if trades[0].OrderID != order.OrderID || trades[0].Entry != 0 {
		t.Errorf("Unexpected trade: %+v", trades[0])
	}
}

func TestCyclePersistsConsumedPivotFlags(t *testing.T) {
	ctx := context.Background()

	// Two dips 0.3% apart in otherwise rising candles: exactly two low
	// pivots close enough to pair into one support line.
	bars := risingBars(60)
	bars[10].Low = 99.0
	bars[14].Low = 99.3
	eng, store, _ := newTestEngine(t, testConfig(61), bars)

	eng.Cycle(ctx, 61*barInterval)

	pivots, err := store.FetchPivots(ctx, "BTC", repository.Window{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(pivots) != 2 {
		t.Fatalf("Expected 2 pivots, got %d: %+v", len(pivots), pivots)
	}
	for _, p := range pivots {
		if !p.IsSupported {
			t.Errorf("Expected pivot at %d stored as supported, got %+v", p.Timestamp, p)
		}
	}
	opps, err := store.FetchOpportunities(ctx, "BTC", repository.Window{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("Expected 1 opportunity, got %d", len(opps))
	}

	// A rerun sees the stored flags and must not pair the pivots again.
	eng.Cycle(ctx, 61*barInterval)

	opps, err = store.FetchOpportunities(ctx, "BTC", repository.Window{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(opps) != 1 {
		t.Errorf("Expected the consumed pivots left alone, got %d opportunities", len(opps))
	}
}

func TestCycleSkipsSignalPhaseWhenVolatile(t *testing.T) {
	ctx := context.Background()
	// Too little history to classify a trend: the market counts as volatile.
	eng, store, paper := newTestEngine(t, testConfig(41), risingBars(40))

	if err := store.UpsertOpportunities(ctx, []model.Opportunity{maturedOpportunity()}); err != nil {
		t.Fatalf("Seeding opportunity failed: %v", err)
	}

	eng.Cycle(ctx, 41*barInterval)

	if placed := paper.Placed(); len(placed) != 0 {
		t.Errorf("Expected no orders in a volatile market, got %d", len(placed))
	}
	opps, err := store.FetchOpportunities(ctx, "BTC", repository.Window{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(opps) != 1 || !opps[0].Open() {
		t.Errorf("Expected the opportunity left open, got %+v", opps)
	}
}

func TestCycleAdvancesPositionsEvenWhenVolatile(t *testing.T) {
	ctx := context.Background()
	eng, store, paper := newTestEngine(t, testConfig(41), risingBars(40))

	// A filled entry with no take-profit ladder yet.
	entry, err := paper.PlaceOrder(ctx, venue.OrderRequest{
		Asset: "BTC", Side: venue.SideBuy, Type: venue.TypeLimit, Quantity: 1, Price: 100,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	paper.MarkFilled(entry.OrderID)
	trade := model.Trade{
		Asset:       "BTC",
		OrderID:     entry.OrderID,
		Quantity:    1,
		ProfitLevel: []float64{110, 120, 130},
		StopLoss:    []float64{95, 100, 105},
		TPOrderIDs:  []string{},
		Timestamp:   1_000,
	}
	if err := store.UpsertTrades(ctx, []model.Trade{trade}); err != nil {
		t.Fatalf("Seeding trade failed: %v", err)
	}

	eng.Cycle(ctx, 41*barInterval)

	trades, err := store.FetchActiveTrades(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("Expected 1 active trade, got %d", len(trades))
	}
	if trades[0].Entry != 1 || len(trades[0].TPOrderIDs) != 3 {
		t.Errorf("Expected the take-profit ladder placed, got %+v", trades[0])
	}
}

func TestCycleAdvancesPositionsWhenTrendDataFails(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	paper := venue.NewPaperVenue(map[string]float64{"USD": 10_000})
	paper.SetPair("BTC", venue.PairInfo{PricePrecision: 2, AmountPrecision: 3})
	logger := testLogger()
	eng := New(testConfig(61), failingSource{}, store, paper,
		sizing.NewSizer(paper, 0.1, logger), position.NewManager(paper, store, logger), logger)

	entry, err := paper.PlaceOrder(ctx, venue.OrderRequest{
		Asset: "BTC", Side: venue.SideBuy, Type: venue.TypeLimit, Quantity: 1, Price: 100,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	paper.MarkFilled(entry.OrderID)
	trade := model.Trade{
		Asset:       "BTC",
		OrderID:     entry.OrderID,
		Quantity:    1,
		ProfitLevel: []float64{110, 120, 130},
		StopLoss:    []float64{95, 100, 105},
		TPOrderIDs:  []string{},
		Timestamp:   1_000,
	}
	if err := store.UpsertTrades(ctx, []model.Trade{trade}); err != nil {
		t.Fatalf("Seeding trade failed: %v", err)
	}

	eng.Cycle(ctx, 61*barInterval)

	trades, err := store.FetchActiveTrades(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("Expected 1 active trade, got %d", len(trades))
	}
	if trades[0].Entry != 1 || len(trades[0].TPOrderIDs) != 3 {
		t.Errorf("Expected the take-profit ladder placed despite the dead feed, got %+v", trades[0])
	}
	// The entry plus its three legs; the dead feed placed nothing new.
	if placed := paper.Placed(); len(placed) != 4 {
		t.Errorf("Expected 4 orders, got %d", len(placed))
	}
}
