// Package trend classifies the prevailing market regime from the reference
// asset's recent bars. The signal pipeline only runs its bullish/bearish
// branches when the market is not volatile.
package trend

import "github.com/navid-fn/ladder/internal/model"

type Trend string

const (
	Bullish  Trend = "bullish"
	Bearish  Trend = "bearish"
	Volatile Trend = "volatile"
)

const (
	shortPeriod = 20
	longPeriod  = 50
)

// Classify compares SMA20 against SMA50 over the closes of the reference
// asset. The sign of the spread on the latest bar gives the direction; a
// crossing anywhere within the last volatileWindow bars means the regime is
// not settled and the market is treated as volatile. Too little history is
// also volatile, so the engine sits out rather than guessing.
func Classify(bars []model.Bar, volatileWindow int) Trend {
	if len(bars) < longPeriod+1 {
		return Volatile
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	short := sma(closes, shortPeriod)
	long := sma(closes, longPeriod)

	last := len(closes) - 1
	spread := short[last] - long[last]
	if spread == 0 {
		return Volatile
	}

	from := last - volatileWindow
	if from < longPeriod-1 {
		from = longPeriod - 1
	}
	for i := from; i < last; i++ {
		if (short[i]-long[i])*spread < 0 {
			return Volatile
		}
	}

	if spread > 0 {
		return Bullish
	}
	return Bearish
}

// sma returns the simple moving average series; entries before the first
// full period are zero.
func sma(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}
