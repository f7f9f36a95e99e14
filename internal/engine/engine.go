// Package engine drives the evaluation loop: every cycle it classifies the
// market trend, fans the signal pipeline out over the configured assets on a
// bounded worker pool, and then lets the position manager advance the open
// trades.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/ladder/internal/marketdata"
	"github.com/navid-fn/ladder/internal/metrics"
	"github.com/navid-fn/ladder/internal/model"
	"github.com/navid-fn/ladder/internal/position"
	"github.com/navid-fn/ladder/internal/repository"
	"github.com/navid-fn/ladder/internal/signal"
	"github.com/navid-fn/ladder/internal/sizing"
	"github.com/navid-fn/ladder/internal/trend"
	"github.com/navid-fn/ladder/internal/venue"
)

type Config struct {
	Assets         []string
	ReferenceAsset string
	CycleInterval  time.Duration
	// BarInterval is the candle width in unix milliseconds.
	BarInterval int64
	// HistoryBars bounds how many bars each asset analysis loads.
	HistoryBars          int
	PivotWindow          int
	MaxPriceDiffPct      float64
	BreakthroughPct      float64
	SupportLineTimeframe int64
	TimeExtension        int64
	MaxWorkers           int
	VolatileWindow       int
}

type Engine struct {
	cfg       Config
	source    marketdata.Source
	store     repository.Store
	venue     venue.Venue
	sizer     *sizing.Sizer
	positions *position.Manager
	logger    *logrus.Logger

	mu    sync.Mutex
	pairs map[string]venue.PairInfo
}

func New(cfg Config, source marketdata.Source, store repository.Store, v venue.Venue, sizer *sizing.Sizer, positions *position.Manager, logger *logrus.Logger) *Engine {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	return &Engine{
		cfg:       cfg,
		source:    source,
		store:     store,
		venue:     v,
		sizer:     sizer,
		positions: positions,
		logger:    logger,
		pairs:     make(map[string]venue.PairInfo),
	}
}

// Run executes one cycle immediately and then on every tick until the
// context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Infof("[Engine] starting: %d assets, cycle %s", len(e.cfg.Assets), e.cfg.CycleInterval)

	ticker := time.NewTicker(e.cfg.CycleInterval)
	defer ticker.Stop()

	e.Cycle(ctx, time.Now().UnixMilli())
	for {
		select {
		case <-ctx.Done():
			e.logger.Infof("[Engine] shutting down")
			return ctx.Err()
		case t := <-ticker.C:
			e.Cycle(ctx, t.UnixMilli())
		}
	}
}

// Cycle runs one full evaluation pass anchored at now. Phases run in strict
// order per asset; a failure in one asset is logged and skipped without
// touching the others, and the position phase always runs after the signal
// phase has fully joined.
func (e *Engine) Cycle(ctx context.Context, now int64) {
	started := time.Now()
	metrics.IncCycles()

	pairs, ok := e.refreshExchangeInfo(ctx)
	if !ok {
		return
	}

	// A reference-asset failure only silences the signal phase; the open
	// trades below still get managed.
	tr, err := e.classifyTrend(ctx, now)
	switch {
	case err != nil:
		e.logger.Errorf("[Engine] trend classification: %v", err)
		metrics.IncCycleSkipped("no_data")
	case tr == trend.Volatile:
		e.logger.Warnf("[Engine] market volatile, sitting out the signal phase")
		metrics.IncCycleSkipped("volatile")
	default:
		e.fanOut(ctx, now, tr, pairs)
	}

	if err := e.positions.Process(ctx, now, pairs); err != nil {
		e.logger.Errorf("[Engine] position phase: %v", err)
	}

	metrics.ObserveCycleSeconds(time.Since(started).Seconds())
	e.logger.Infof("[Engine] cycle done in %s (trend=%s)", time.Since(started).Round(time.Millisecond), tr)
}

// refreshExchangeInfo pulls current pair precisions, falling back to the
// last good snapshot when the venue call fails. A venue that reports itself
// not running halts the cycle.
func (e *Engine) refreshExchangeInfo(ctx context.Context) (map[string]venue.PairInfo, bool) {
	info, err := e.venue.GetExchangeInfo(ctx)
	if err != nil {
		e.logger.Warnf("[Engine] exchange info unavailable, using last snapshot: %v", err)
		e.mu.Lock()
		defer e.mu.Unlock()
		if len(e.pairs) == 0 {
			metrics.IncCycleSkipped("no_data")
			return nil, false
		}
		return e.pairs, true
	}
	if !info.Running {
		e.logger.Warnf("[Engine] venue reports not running, skipping cycle")
		metrics.IncCycleSkipped("no_data")
		return nil, false
	}
	e.mu.Lock()
	e.pairs = info.Pairs
	e.mu.Unlock()
	return info.Pairs, true
}

func (e *Engine) classifyTrend(ctx context.Context, now int64) (trend.Trend, error) {
	since := now - int64(e.cfg.HistoryBars)*e.cfg.BarInterval
	bars, err := e.source.GetBars(ctx, e.cfg.ReferenceAsset, e.cfg.BarInterval, since, now)
	if err != nil {
		return trend.Volatile, fmt.Errorf("loading %s bars: %w", e.cfg.ReferenceAsset, err)
	}
	return trend.Classify(bars, e.cfg.VolatileWindow), nil
}

// fanOut runs the per-asset signal pipeline on at most MaxWorkers
// goroutines and blocks until every asset has finished.
func (e *Engine) fanOut(ctx context.Context, now int64, tr trend.Trend, pairs map[string]venue.PairInfo) {
	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, e.cfg.MaxWorkers)
		openOpps atomic.Int64
	)
	for _, asset := range e.cfg.Assets {
		wg.Add(1)
		sem <- struct{}{}
		go func(asset string) {
			defer wg.Done()
			defer func() { <-sem }()
			n, err := e.processAsset(ctx, asset, now, tr, pairs[asset])
			if err != nil {
				e.logger.Errorf("[Engine] %s: %v", asset, err)
				metrics.IncAssetFailure(asset)
				return
			}
			openOpps.Add(int64(n))
		}(asset)
	}
	wg.Wait()
	metrics.SetOpenOpportunities(int(openOpps.Load()))
}

// processAsset runs detect → match → extrema → size for one asset and
// returns how many opportunities remain open afterwards.
func (e *Engine) processAsset(ctx context.Context, asset string, now int64, tr trend.Trend, pair venue.PairInfo) (int, error) {
	since := now - int64(e.cfg.HistoryBars)*e.cfg.BarInterval
	bars, err := e.source.GetBars(ctx, asset, e.cfg.BarInterval, since, now)
	if err != nil {
		return 0, fmt.Errorf("loading bars: %w", err)
	}
	if len(bars) == 0 {
		return 0, nil
	}

	pivots, err := e.store.FetchPivots(ctx, asset, repository.Window{Since: since})
	if err != nil {
		return 0, fmt.Errorf("loading pivots: %w", err)
	}
	res, err := signal.UpdatePivots(bars, &pivots, e.cfg.PivotWindow, e.cfg.BarInterval)
	if err != nil {
		return 0, fmt.Errorf("pivot detection: %w", err)
	}
	switch res {
	case signal.FoundHigh:
		metrics.IncPivots("high", 1)
	case signal.FoundLow:
		metrics.IncPivots("low", 1)
	case signal.FoundBoth:
		metrics.IncPivots("high", 1)
		metrics.IncPivots("low", 1)
	}

	opps, err := e.store.FetchOpportunities(ctx, asset, repository.Window{Since: since})
	if err != nil {
		return 0, fmt.Errorf("loading opportunities: %w", err)
	}
	matched := signal.MatchSupportLines(pivots, opps, e.cfg.MaxPriceDiffPct, e.cfg.SupportLineTimeframe)
	opps = append(opps, matched...)

	// Matching flips the support flags on consumed pivots, so the pivot
	// slice is persisted only after it has run.
	if res != signal.FoundNone || len(matched) > 0 {
		if err := e.store.UpsertPivots(ctx, pivots); err != nil {
			return 0, fmt.Errorf("persisting pivots: %w", err)
		}
	}

	signal.TrackExtrema(pivots, opps, tr, e.cfg.BreakthroughPct, e.cfg.TimeExtension)

	open := 0
	for i := range opps {
		o := &opps[i]
		if !o.Open() {
			continue
		}
		// Entries are long only; bearish ranges are tracked but not sized.
		if tr == trend.Bullish && o.Matured() {
			t, err := e.sizer.Enter(ctx, o, pair)
			if err != nil {
				e.logger.Warnf("[Engine] %s: entry failed: %v", asset, err)
			}
			if t != nil {
				if err := e.store.UpsertTrades(ctx, []model.Trade{*t}); err != nil {
					return 0, fmt.Errorf("persisting trade: %w", err)
				}
				metrics.IncOrder(string(venue.SideBuy), string(venue.TypeLimit))
			}
		}
		if o.Open() {
			open++
		}
	}

	if err := e.store.UpsertOpportunities(ctx, opps); err != nil {
		return 0, fmt.Errorf("persisting opportunities: %w", err)
	}
	return open, nil
}
