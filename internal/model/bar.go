// Package model defines the persistent data types shared by the signal
// engine, the collector pipeline, and the status API.
package model

import (
	"fmt"
	"math"
)

// Bar is a single OHLCV candle. Timestamps are unix milliseconds and
// monotonically increasing per asset.
type Bar struct {
	Asset     string  `gorm:"column:asset;primaryKey" json:"asset"`
	Timestamp int64   `gorm:"column:timestamp;primaryKey" json:"timestamp"`
	Open      float64 `gorm:"column:open;type:Float64" json:"open"`
	High      float64 `gorm:"column:high;type:Float64" json:"high"`
	Low       float64 `gorm:"column:low;type:Float64" json:"low"`
	Close     float64 `gorm:"column:close;type:Float64" json:"close"`
	Volume    float64 `gorm:"column:volume;type:Float64" json:"volume"`
}

func (Bar) TableName() string {
	return "bars"
}

func (Bar) TableOptions() string {
	return "ENGINE = ReplacingMergeTree() ORDER BY (asset, timestamp)"
}

// Validate reports a data-shape error for bars that cannot be analysed.
func (b Bar) Validate() error {
	if b.Timestamp <= 0 {
		return fmt.Errorf("bar for %s: missing timestamp", b.Asset)
	}
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bar for %s at %d: corrupted numeric data", b.Asset, b.Timestamp)
		}
	}
	if b.High <= 0 || b.Low <= 0 {
		return fmt.Errorf("bar for %s at %d: missing high/low", b.Asset, b.Timestamp)
	}
	if b.High < b.Low {
		return fmt.Errorf("bar for %s at %d: high %v below low %v", b.Asset, b.Timestamp, b.High, b.Low)
	}
	return nil
}
