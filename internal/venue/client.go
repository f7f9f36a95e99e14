package venue

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/navid-fn/ladder/pkg/faulttolerance"
)

// ClientConfig holds connection settings for the exchange REST API.
type ClientConfig struct {
	BaseURL           string
	APIKey            string
	SecretKey         string
	RequestsPerSecond float64
	RequestTimeout    time.Duration
}

// Client talks to the exchange REST API. Authenticated endpoints are signed
// with HMAC-SHA256 over the sorted query string. Transient failures are
// absorbed here with retry and a circuit breaker; callers only see the final
// outcome.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	retryer *faulttolerance.Retryer
	breaker *faulttolerance.CircuitBreaker
	logger  *logrus.Logger
}

func NewClient(cfg ClientConfig, logger *logrus.Logger) (*Client, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("venue client: base url, api key and secret are required")
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 10),
		retryer: faulttolerance.NewRetryer(faulttolerance.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			Name:        "VenueAPI",
		}, logger),
		breaker: faulttolerance.NewCircuitBreaker(faulttolerance.BreakerConfig{
			MaxFailures: 5,
			Cooldown:    time.Minute,
			Name:        "VenueAPI",
		}, logger),
		logger: logger,
	}, nil
}

func (c *Client) Name() string { return "exchange" }

// GetBalance returns free amounts per asset code.
func (c *Client) GetBalance(ctx context.Context) (Balance, error) {
	var resp struct {
		Success bool   `json:"Success"`
		ErrMsg  string `json:"ErrMsg"`
		Wallet  map[string]struct {
			Free   float64 `json:"Free"`
			Locked float64 `json:"Lock"`
		} `json:"Wallet"`
	}
	if err := c.call(ctx, http.MethodGet, "/v3/balance", c.basePayload(), true, &resp); err != nil {
		return Balance{}, err
	}
	if !resp.Success {
		return Balance{}, fmt.Errorf("balance query rejected: %s", resp.ErrMsg)
	}
	free := make(map[string]float64, len(resp.Wallet))
	for code, w := range resp.Wallet {
		free[code] = w.Free
	}
	return Balance{Free: free}, nil
}

// PlaceOrder submits one order and returns the typed acknowledgement. A
// rejected order comes back as an error with the venue's reason; the caller
// must assume no position change.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (PlacedOrder, error) {
	payload := c.basePayload()
	payload["pair"] = pairOf(req.Asset)
	payload["side"] = string(req.Side)
	payload["type"] = string(req.Type)
	payload["quantity"] = strconv.FormatFloat(req.Quantity, 'f', -1, 64)
	if req.Type == TypeLimit {
		payload["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
	}

	var resp struct {
		Success     bool   `json:"Success"`
		ErrMsg      string `json:"ErrMsg"`
		OrderDetail struct {
			OrderID int64 `json:"OrderID"`
		} `json:"OrderDetail"`
	}
	if err := c.call(ctx, http.MethodPost, "/v3/place_order", payload, true, &resp); err != nil {
		return PlacedOrder{}, err
	}
	if !resp.Success {
		return PlacedOrder{}, fmt.Errorf("order rejected: %s", resp.ErrMsg)
	}
	return PlacedOrder{
		OrderID:    strconv.FormatInt(resp.OrderDetail.OrderID, 10),
		Asset:      req.Asset,
		Side:       req.Side,
		Type:       req.Type,
		Quantity:   req.Quantity,
		Price:      req.Price,
		CreateTime: time.Now().UnixMilli(),
	}, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	payload := c.basePayload()
	payload["order_id"] = orderID
	var resp struct {
		Success bool   `json:"Success"`
		ErrMsg  string `json:"ErrMsg"`
	}
	if err := c.call(ctx, http.MethodPost, "/v3/cancel_order", payload, true, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("cancel rejected: %s", resp.ErrMsg)
	}
	return nil
}

func (c *Client) QueryOrder(ctx context.Context, orderID string) (OrderStatus, error) {
	payload := c.basePayload()
	payload["order_id"] = orderID
	var resp struct {
		Success      bool   `json:"Success"`
		ErrMsg       string `json:"ErrMsg"`
		OrderMatched []struct {
			Status string `json:"Status"`
		} `json:"OrderMatched"`
	}
	if err := c.call(ctx, http.MethodPost, "/v3/query_order", payload, true, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("order query rejected: %s", resp.ErrMsg)
	}
	if len(resp.OrderMatched) == 0 {
		return "", fmt.Errorf("order %s not found", orderID)
	}
	switch strings.ToUpper(resp.OrderMatched[0].Status) {
	case "FILLED":
		return StatusFilled, nil
	case "CANCELED", "CANCELLED":
		return StatusCancelled, nil
	default:
		return StatusPending, nil
	}
}

func (c *Client) GetExchangeInfo(ctx context.Context) (ExchangeInfo, error) {
	var resp struct {
		IsRunning  bool `json:"IsRunning"`
		TradePairs map[string]struct {
			PricePrecision  int32 `json:"PricePrecision"`
			AmountPrecision int32 `json:"AmountPrecision"`
		} `json:"TradePairs"`
	}
	if err := c.call(ctx, http.MethodGet, "/v3/exchangeInfo", nil, false, &resp); err != nil {
		return ExchangeInfo{}, err
	}
	info := ExchangeInfo{Running: resp.IsRunning, Pairs: make(map[string]PairInfo)}
	for pair, p := range resp.TradePairs {
		asset, ok := strings.CutSuffix(pair, "/USD")
		if !ok {
			continue
		}
		info.Pairs[asset] = PairInfo{
			PricePrecision:  p.PricePrecision,
			AmountPrecision: p.AmountPrecision,
		}
	}
	return info, nil
}

func (c *Client) basePayload() map[string]string {
	return map[string]string{
		"timestamp": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
}

// call performs one HTTP round trip under the rate limiter, retryer and
// circuit breaker, decoding the JSON body into out.
func (c *Client) call(ctx context.Context, method, path string, payload map[string]string, auth bool, out any) error {
	return c.retryer.Do(ctx, func() error {
		return c.breaker.Do(ctx, func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			return c.doRequest(ctx, method, path, payload, auth, out)
		})
	})
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload map[string]string, auth bool, out any) error {
	values := url.Values{}
	for k, v := range payload {
		values.Set(k, v)
	}
	encoded := canonicalQuery(payload)

	var req *http.Request
	var err error
	if method == http.MethodGet {
		target := c.cfg.BaseURL + path
		if encoded != "" {
			target += "?" + encoded
		}
		req, err = http.NewRequestWithContext(ctx, method, target, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, strings.NewReader(values.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return err
	}

	if auth {
		req.Header.Set("RST-API-KEY", c.cfg.APIKey)
		req.Header.Set("MSG-SIGNATURE", c.sign(encoded))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: reading body: %w", method, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}
	return nil
}

// sign computes HMAC-SHA256 over the canonical query string.
func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalQuery joins payload entries as k=v pairs in sorted key order,
// matching what the venue verifies the signature against.
func canonicalQuery(payload map[string]string) string {
	if len(payload) == 0 {
		return ""
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+payload[k])
	}
	return strings.Join(parts, "&")
}

func pairOf(asset string) string {
	return asset + "/USD"
}
