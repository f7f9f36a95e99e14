// Package collector streams closed klines from the market-data venue into
// Kafka, where the ingester lands them in storage. Live data comes over
// websocket; REST backfill covers startup and reconnect gaps.
package collector

import (
	"github.com/navid-fn/ladder/internal/model"
)

// BarBatch is the wire format the collector produces and the ingester
// consumes: one JSON message per flush, carrying closed bars for one asset.
type BarBatch struct {
	BatchID  string      `json:"batch_id"`
	Source   string      `json:"source"`
	Asset    string      `json:"asset"`
	Interval int64       `json:"interval"`
	Bars     []model.Bar `json:"bars"`
}
