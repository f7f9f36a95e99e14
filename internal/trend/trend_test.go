package trend

import (
	"testing"

	"github.com/navid-fn/ladder/internal/model"
)

func barsFromCloses(closes []float64) []model.Bar {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{
			Asset:     "BTC",
			Timestamp: int64(i+1) * 60_000,
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1,
		}
	}
	return bars
}

func TestClassify(t *testing.T) {
	rising := make([]float64, 60)
	falling := make([]float64, 60)
	flat := make([]float64, 60)
	for i := range rising {
		rising[i] = 100 + float64(i)
		falling[i] = 200 - float64(i)
		flat[i] = 100
	}

	tests := []struct {
		name     string
		closes   []float64
		expected Trend
	}{
		{"Rising market", rising, Bullish},
		{"Falling market", falling, Bearish},
		{"Flat market", flat, Volatile},
		{"Too little history", rising[:40], Volatile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(barsFromCloses(tt.closes), 20)
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestClassifyCrossingIsVolatile(t *testing.T) {
	// A long decline followed by a sharp recovery flips the SMA spread
	// inside the inspection window.
	closes := make([]float64, 0, 70)
	for i := 0; i < 55; i++ {
		closes = append(closes, 200-float64(i))
	}
	for i := 0; i < 15; i++ {
		closes = append(closes, 146+20*float64(i))
	}

	got := Classify(barsFromCloses(closes), 20)
	if got != Volatile {
		t.Errorf("Expected %q around an SMA cross, got %q", Volatile, got)
	}
}
