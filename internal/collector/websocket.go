package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/navid-fn/ladder/internal/model"
)

const (
	streamBaseURL = "wss://stream.binance.com:9443/stream"

	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 60 * time.Second
	maxConsecutiveErrors  = 5

	handshakeTimeout = 10 * time.Second
	readTimeout      = 90 * time.Second
	writeTimeout     = 10 * time.Second
	pingInterval     = 30 * time.Second
)

// klineEvent is one combined-stream frame. Prices arrive as strings; X
// reports whether the candle has closed.
type klineEvent struct {
	Data struct {
		Symbol string `json:"s"`
		Kline  struct {
			OpenTime int64  `json:"t"`
			Open     string `json:"o"`
			High     string `json:"h"`
			Low      string `json:"l"`
			Close    string `json:"c"`
			Volume   string `json:"v"`
			Closed   bool   `json:"x"`
		} `json:"k"`
	} `json:"data"`
}

// websocketWorker keeps one combined-stream connection alive for a chunk of
// assets, reconnecting with exponential backoff on failure.
func (c *Collector) websocketWorker(ctx context.Context, assets []string) {
	workerID := fmt.Sprintf("Worker-%s", assets[0])
	c.logger.Infof("[%s] starting for %d assets", workerID, len(assets))

	reconnectDelay := initialReconnectDelay
	consecutiveErrors := 0

	for {
		select {
		case <-ctx.Done():
			c.logger.Infof("[%s] shutting down", workerID)
			return
		default:
			if err := c.handleConnection(ctx, workerID, assets); err != nil {
				consecutiveErrors++
				c.logger.Errorf("[%s] websocket error (%d/%d): %v. Reconnecting in %v...",
					workerID, consecutiveErrors, maxConsecutiveErrors, err, reconnectDelay)

				if reconnectDelay < maxReconnectDelay {
					reconnectDelay *= 2
					if reconnectDelay > maxReconnectDelay {
						reconnectDelay = maxReconnectDelay
					}
				}
				if consecutiveErrors >= maxConsecutiveErrors {
					c.logger.Warnf("[%s] too many consecutive errors, extending delay", workerID)
					reconnectDelay = maxReconnectDelay
				}

				select {
				case <-ctx.Done():
					return
				case <-time.After(reconnectDelay):
					continue
				}
			}
			consecutiveErrors = 0
			reconnectDelay = initialReconnectDelay
		}
	}
}

func (c *Collector) handleConnection(ctx context.Context, workerID string, assets []string) error {
	streams := make([]string, len(assets))
	for i, asset := range assets {
		streams[i] = strings.ToLower(asset) + "usdt@kline_" + c.intervalLabel
	}
	u := streamBaseURL + "?streams=" + strings.Join(streams, "/")

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}
	defer conn.Close()

	c.logger.Infof("[%s] connected", workerID)

	conn.SetPingHandler(func(message string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(message), time.Now().Add(writeTimeout))
	})

	connCtx, connCancel := context.WithCancel(ctx)
	defer connCancel()

	readErrors := make(chan error, 1)
	messages := make(chan []byte, 100)

	go func() {
		defer close(messages)
		for {
			conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, message, err := conn.ReadMessage()
			if err != nil {
				select {
				case readErrors <- err:
				case <-connCtx.Done():
				}
				return
			}
			select {
			case messages <- message:
			case <-connCtx.Done():
				return
			}
		}
	}()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Infof("[%s] context cancelled, closing connection", workerID)
			return nil

		case err := <-readErrors:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				return fmt.Errorf("websocket read error: %w", err)
			}
			return fmt.Errorf("connection error: %w", err)

		case message := <-messages:
			if err := c.handleKlineMessage(message); err != nil {
				c.logger.Warnf("[%s] %v", workerID, err)
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return fmt.Errorf("failed to send ping: %w", err)
			}
		}
	}
}

// handleKlineMessage publishes the bar of a closed candle; frames for
// still-forming candles are dropped.
func (c *Collector) handleKlineMessage(message []byte) error {
	var ev klineEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		return fmt.Errorf("malformed stream frame: %w", err)
	}
	if !ev.Data.Kline.Closed {
		return nil
	}

	asset := strings.TrimSuffix(ev.Data.Symbol, "USDT")
	bar, err := barFromKline(asset, ev)
	if err != nil {
		return fmt.Errorf("dropping kline for %s: %w", asset, err)
	}
	return c.producer.Publish(BarBatch{
		Source:   "binance-ws",
		Asset:    asset,
		Interval: c.interval,
		Bars:     []model.Bar{bar},
	})
}

func barFromKline(asset string, ev klineEvent) (model.Bar, error) {
	k := ev.Data.Kline
	fields := []string{k.Open, k.High, k.Low, k.Close, k.Volume}
	prices := make([]float64, len(fields))
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Bar{}, fmt.Errorf("field %d: %w", i, err)
		}
		prices[i] = v
	}
	bar := model.Bar{
		Asset:     asset,
		Timestamp: k.OpenTime,
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    prices[4],
	}
	return bar, bar.Validate()
}
