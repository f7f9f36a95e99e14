// Package ingester consumes bar batches from Kafka and persists them to
// ClickHouse. It handles batching, retry logic, and graceful shutdown.
package ingester

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/ladder/internal/collector"
	"github.com/navid-fn/ladder/internal/model"
	"github.com/navid-fn/ladder/internal/repository"
)

// Config holds ingester configuration parameters.
type Config struct {
	// BatchSize is the maximum number of bars to accumulate before flushing.
	BatchSize int

	// BatchTimeout is the maximum time to wait before flushing, even if the
	// batch isn't full.
	BatchTimeout time.Duration
}

// Ingester consumes bar batches from Kafka and writes them to the bar
// repository in batches. It implements at-least-once delivery: offsets are
// only committed after a successful upsert, and the keyed upsert makes the
// inevitable replays harmless.
type Ingester struct {
	reader *kafka.Reader
	bars   repository.BarRepository
	logger *logrus.Logger
	cfg    Config
}

// NewIngester creates a new Ingester with the provided dependencies.
func NewIngester(reader *kafka.Reader, bars repository.BarRepository, logger *logrus.Logger, cfg Config) *Ingester {
	return &Ingester{
		reader: reader,
		bars:   bars,
		logger: logger,
		cfg:    cfg,
	}
}

// Start runs the main ingestion loop. It blocks until the context is
// cancelled; on shutdown it flushes any remaining buffered bars.
func (ig *Ingester) Start(ctx context.Context) error {
	ig.logger.Infof("[Ingester] starting: batch size %d, timeout %s", ig.cfg.BatchSize, ig.cfg.BatchTimeout)

	batchBars := make([]model.Bar, 0, ig.cfg.BatchSize)
	batchMsgs := make([]kafka.Message, 0, ig.cfg.BatchSize)

	ticker := time.NewTicker(ig.cfg.BatchTimeout)
	defer ticker.Stop()

	// flush writes accumulated bars and commits offsets afterwards.
	flush := func() error {
		if len(batchBars) == 0 {
			return nil
		}

		// Never drop data: keep retrying until the store accepts it.
		for {
			if err := ig.bars.UpsertBars(ctx, batchBars); err != nil {
				ig.logger.Errorf("[Ingester] upsert failed (retrying in 2s): %v", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(2 * time.Second):
					continue
				}
			}
			break
		}

		if err := ig.reader.CommitMessages(ctx, batchMsgs...); err != nil {
			ig.logger.Warnf("[Ingester] failed to commit offsets: %v", err)
		}

		batchBars = batchBars[:0]
		batchMsgs = batchMsgs[:0]
		ticker.Reset(ig.cfg.BatchTimeout)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return flush()

		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}

		default:
			// Fetch with a short timeout to stay responsive to the ticker
			// and shutdown.
			fetchCtx, cancel := context.WithTimeout(ctx, ig.cfg.BatchTimeout)
			m, err := ig.reader.FetchMessage(fetchCtx)
			cancel()

			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				if errors.Is(err, context.Canceled) {
					return nil
				}
				ig.logger.Errorf("[Ingester] fetch error: %v", err)
				time.Sleep(time.Second)
				continue
			}

			bars, err := ig.parseMessage(m)
			if err != nil {
				ig.logger.Errorf("[Ingester] dropping message at offset %d: %v", m.Offset, err)
				continue
			}

			batchBars = append(batchBars, bars...)
			batchMsgs = append(batchMsgs, m)

			if len(batchBars) >= ig.cfg.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
}

// parseMessage deserializes one BarBatch message. Malformed bars inside a
// valid envelope are skipped; an envelope with nothing usable is an error.
func (ig *Ingester) parseMessage(msg kafka.Message) ([]model.Bar, error) {
	var batch collector.BarBatch
	if err := json.Unmarshal(msg.Value, &batch); err != nil {
		return nil, fmt.Errorf("failed to parse bar batch: %w", err)
	}

	bars := make([]model.Bar, 0, len(batch.Bars))
	for _, bar := range batch.Bars {
		if bar.Asset == "" {
			bar.Asset = batch.Asset
		}
		if err := bar.Validate(); err != nil {
			ig.logger.Warnf("[Ingester] bar validation failed: %v", err)
			continue
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no valid bars in batch %s", batch.BatchID)
	}
	return bars, nil
}
