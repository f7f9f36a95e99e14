package collector

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/ladder/internal/marketdata"
)

type Config struct {
	Assets []string
	// Interval is the candle width in unix milliseconds.
	Interval int64
	// BackfillBars is how many historical bars to fetch per asset before
	// switching to the live stream.
	BackfillBars int
	// ChunkSize caps how many assets share one websocket connection.
	ChunkSize int
}

// Collector backfills history over REST, then holds live kline streams open
// and publishes every closed bar to Kafka.
type Collector struct {
	producer      *Producer
	rest          marketdata.Source
	assets        []string
	interval      int64
	intervalLabel string
	backfillBars  int
	chunkSize     int
	logger        *logrus.Logger
}

func New(cfg Config, producer *Producer, rest marketdata.Source, logger *logrus.Logger) *Collector {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 10
	}
	return &Collector{
		producer:      producer,
		rest:          rest,
		assets:        cfg.Assets,
		interval:      cfg.Interval,
		intervalLabel: intervalLabel(cfg.Interval),
		backfillBars:  cfg.BackfillBars,
		chunkSize:     cfg.ChunkSize,
		logger:        logger,
	}
}

// Run backfills every asset, then blocks streaming live bars until the
// context is cancelled.
func (c *Collector) Run(ctx context.Context) error {
	c.backfill(ctx)

	var wg sync.WaitGroup
	for _, chunk := range c.chunkAssets() {
		wg.Add(1)
		go func(chunk []string) {
			defer wg.Done()
			c.websocketWorker(ctx, chunk)
		}(chunk)
	}
	wg.Wait()
	return ctx.Err()
}

// backfill fetches recent history per asset over REST and publishes it as
// one batch. A failed asset is logged and left to the live stream; the
// repository's keyed upserts make replayed bars harmless.
func (c *Collector) backfill(ctx context.Context) {
	if c.backfillBars <= 0 {
		return
	}
	now := time.Now().UnixMilli()
	since := now - int64(c.backfillBars)*c.interval

	for _, asset := range c.assets {
		bars, err := c.rest.GetBars(ctx, asset, c.interval, since, now)
		if err != nil {
			c.logger.Errorf("[Collector] backfill %s: %v", asset, err)
			continue
		}
		if len(bars) == 0 {
			continue
		}
		if err := c.producer.Publish(BarBatch{
			Source:   "binance-rest",
			Asset:    asset,
			Interval: c.interval,
			Bars:     bars,
		}); err != nil {
			c.logger.Errorf("[Collector] publishing backfill for %s: %v", asset, err)
			continue
		}
		c.logger.Infof("[Collector] backfilled %d bars for %s", len(bars), asset)
	}
}

func (c *Collector) chunkAssets() [][]string {
	var chunks [][]string
	for i := 0; i < len(c.assets); i += c.chunkSize {
		end := i + c.chunkSize
		if end > len(c.assets) {
			end = len(c.assets)
		}
		chunks = append(chunks, c.assets[i:end])
	}
	return chunks
}

func intervalLabel(interval int64) string {
	switch interval {
	case 300_000:
		return "5m"
	case 900_000:
		return "15m"
	case 3_600_000:
		return "1h"
	case 14_400_000:
		return "4h"
	case 86_400_000:
		return "1d"
	default:
		return "1m"
	}
}
