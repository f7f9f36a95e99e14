package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/navid-fn/ladder/internal/model"
	"github.com/navid-fn/ladder/pkg/faulttolerance"
)

const (
	binanceBaseURL  = "https://api.binance.com"
	binanceMaxLimit = 1000
)

// BinanceClient fetches historical klines over REST. Used by the collector
// for backfill and catch-up after reconnects.
type BinanceClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryer    *faulttolerance.Retryer
	logger     *logrus.Logger
}

func NewBinanceClient(logger *logrus.Logger) *BinanceClient {
	return &BinanceClient{
		baseURL:    binanceBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(10), 10),
		retryer: faulttolerance.NewRetryer(faulttolerance.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    5 * time.Second,
			Multiplier:  2,
			Name:        "binance",
		}, logger),
		logger: logger,
	}
}

// GetBars fetches klines for asset (quoted in USDT) with the given interval
// in milliseconds, ascending, capped at the venue page size.
func (c *BinanceClient) GetBars(ctx context.Context, asset string, interval int64, start, end int64) ([]model.Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("symbol", asset+"USDT")
	q.Set("interval", intervalName(interval))
	q.Set("startTime", strconv.FormatInt(start, 10))
	q.Set("endTime", strconv.FormatInt(end, 10))
	q.Set("limit", strconv.Itoa(binanceMaxLimit))

	var raw [][]json.RawMessage
	err := c.retryer.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/klines?"+q.Encode(), nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("klines %s: status %d: %s", asset, resp.StatusCode, string(body))
		}
		raw = raw[:0]
		return json.Unmarshal(body, &raw)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching klines for %s: %w", asset, err)
	}

	bars := make([]model.Bar, 0, len(raw))
	for _, k := range raw {
		bar, err := parseKline(asset, k)
		if err != nil {
			c.logger.Warnf("[Binance] skipping malformed kline for %s: %v", asset, err)
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseKline converts one kline row: [openTime, open, high, low, close,
// volume, closeTime, ...]. Prices arrive as strings.
func parseKline(asset string, k []json.RawMessage) (model.Bar, error) {
	if len(k) < 6 {
		return model.Bar{}, fmt.Errorf("kline has %d fields", len(k))
	}
	var ts int64
	if err := json.Unmarshal(k[0], &ts); err != nil {
		return model.Bar{}, fmt.Errorf("open time: %w", err)
	}
	prices := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		var s string
		if err := json.Unmarshal(k[i], &s); err != nil {
			return model.Bar{}, fmt.Errorf("field %d: %w", i, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Bar{}, fmt.Errorf("field %d: %w", i, err)
		}
		prices[i-1] = v
	}
	bar := model.Bar{
		Asset:     asset,
		Timestamp: ts,
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    prices[4],
	}
	if err := bar.Validate(); err != nil {
		return model.Bar{}, err
	}
	return bar, nil
}

// intervalName maps a bar interval in milliseconds to the venue's interval
// label, falling back to minutes for non-standard values.
func intervalName(interval int64) string {
	switch interval {
	case 60_000:
		return "1m"
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
		return strconv.FormatInt(interval/60_000, 10) + "m"
	}
}
