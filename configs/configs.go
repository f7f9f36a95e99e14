// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// DBDSN is the ClickHouse connection string.
	DBDSN string

	// Engine contains the signal-engine knobs.
	Engine EngineConfig

	// Venue contains order-execution venue credentials and limits.
	Venue VenueConfig

	// Kafka contains broker settings for the bar pipeline.
	Kafka KafkaConfig

	// Ingester contains settings for the Kafka-to-ClickHouse ingester.
	Ingester IngesterConfig

	// Collector contains settings for the kline collector.
	Collector CollectorConfig

	// APIAddr is the listen address of the status API.
	APIAddr string
}

// EngineConfig holds the evaluation-cycle parameters. Timeframe knobs are
// expressed in cycles and converted to milliseconds against BarInterval.
type EngineConfig struct {
	// Assets are the tradable assets, comma-separated in env.
	Assets []string

	// ReferenceAsset anchors the market-trend classification.
	ReferenceAsset string

	// CycleInterval is how often the engine evaluates. Matches the bar
	// interval so every cycle sees exactly one new closed bar.
	CycleInterval time.Duration

	// BarInterval is the candle width in unix milliseconds.
	BarInterval int64

	// HistoryBars bounds how many bars each analysis loads.
	HistoryBars int

	// PivotWindow is the number of bars on each side a pivot must dominate.
	PivotWindow int

	// MaxPriceDiffPct is the relative tolerance for two pivots to form a
	// support/resistance line.
	MaxPriceDiffPct float64

	// BreakthroughPct is the relative margin a pivot must clear beyond the
	// support line to count as a breakout.
	BreakthroughPct float64

	// SupportLineTimeframe is the opportunity lifetime in milliseconds.
	SupportLineTimeframe int64

	// TimeExtension is how much a new extremum extends the opportunity
	// window, in milliseconds.
	TimeExtension int64

	// TradeFraction is the share of the free quote balance committed per
	// entry.
	TradeFraction float64

	// MaxWorkers bounds the per-asset analysis fan-out.
	MaxWorkers int

	// VolatileWindow is how many recent bars an SMA cross marks as
	// volatile.
	VolatileWindow int
}

// VenueConfig holds the trading-venue client settings.
type VenueConfig struct {
	BaseURL   string
	APIKey    string
	SecretKey string

	// RequestsPerSecond caps the signed-request rate.
	RequestsPerSecond float64
}

// KafkaConfig holds Kafka connection settings for the bar pipeline.
type KafkaConfig struct {
	// Broker is the Kafka broker address (e.g., "localhost:9092").
	Broker string

	// Topic is the Kafka topic for bar batches.
	Topic string

	// GroupID is the consumer group ID for the ingester.
	GroupID string
}

// IngesterConfig holds settings for batch processing.
type IngesterConfig struct {
	// BatchSize is the maximum number of bars to accumulate before flushing.
	BatchSize int

	// BatchTimeoutSeconds is the maximum seconds to wait before flushing.
	BatchTimeoutSeconds int
}

// CollectorConfig holds settings for the kline collector.
type CollectorConfig struct {
	// BackfillBars is how many historical bars to fetch per asset at
	// startup.
	BackfillBars int

	// ChunkSize caps how many assets share one websocket connection.
	ChunkSize int
}

// getDatabaseDSN constructs the ClickHouse DSN from environment variables.
func getDatabaseDSN() string {
	dbUser := getEnv("CLICKHOUSE_USER", "user")
	dbPassword := getEnv("CLICKHOUSE_PASSWORD", "password")
	dbHost := getEnv("CLICKHOUSE_HOST", "localhost")
	dbPort := getEnv("CLICKHOUSE_TCP_PORT", "9000")
	dbName := getEnv("CLICKHOUSE_DB", "ladder")

	return fmt.Sprintf(
		"clickhouse://%s:%s@%s:%s/%s?dial_timeout=10s&read_timeout=20s",
		dbUser, dbPassword, dbHost, dbPort, dbName,
	)
}

// getEngineConfig loads the engine knobs. SUPPORT_LINE_TIMEFRAME and
// TIME_EXTEND are given in cycles and converted against the bar interval.
func getEngineConfig() EngineConfig {
	barInterval := int64(getEnvInt("BAR_INTERVAL_MS", 60_000))

	assets := strings.Split(getEnv("ASSETS", "BTC,ETH,SOL"), ",")
	for i := range assets {
		assets[i] = strings.TrimSpace(assets[i])
	}

	return EngineConfig{
		Assets:               assets,
		ReferenceAsset:       getEnv("REFERENCE_ASSET", "BTC"),
		CycleInterval:        time.Duration(barInterval) * time.Millisecond,
		BarInterval:          barInterval,
		HistoryBars:          getEnvInt("HISTORY_BARS", 500),
		PivotWindow:          getEnvInt("PIVOT_WINDOW", 2),
		MaxPriceDiffPct:      getEnvFloat("MAX_PRICE_DIFF_PCT", 0.005),
		BreakthroughPct:      getEnvFloat("BREAKTHROUGH_PCT", 0.002),
		SupportLineTimeframe: int64(getEnvInt("SUPPORT_LINE_TIMEFRAME", 20)) * barInterval,
		TimeExtension:        int64(getEnvInt("TIME_EXTEND", 5)) * barInterval,
		TradeFraction:        getEnvFloat("TRADE_FRACTION", 0.1),
		MaxWorkers:           getEnvInt("MAX_WORKERS", 10),
		VolatileWindow:       getEnvInt("VOLATILE_WINDOW", 20),
	}
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	return &AppConfig{
		DBDSN:  getDatabaseDSN(),
		Engine: getEngineConfig(),
		Venue: VenueConfig{
			BaseURL:           getEnv("VENUE_BASE_URL", "https://mock-api.roostoo.com"),
			APIKey:            getEnv("VENUE_API_KEY", ""),
			SecretKey:         getEnv("VENUE_SECRET_KEY", ""),
			RequestsPerSecond: getEnvFloat("VENUE_RPS", 5),
		},
		Kafka: KafkaConfig{
			Broker:  getEnv("KAFKA_BROKER", "localhost:9092"),
			Topic:   getEnv("KAFKA_BAR_TOPIC", "ladder_bars"),
			GroupID: getEnv("KAFKA_BAR_GROUP_ID", "ladder-bar-ingester"),
		},
		Ingester: IngesterConfig{
			BatchSize:           getEnvInt("BATCH_SIZE", 200),
			BatchTimeoutSeconds: getEnvInt("BATCH_TIMEOUT_SECONDS", 5),
		},
		Collector: CollectorConfig{
			BackfillBars: getEnvInt("BACKFILL_BARS", 500),
			ChunkSize:    getEnvInt("COLLECTOR_CHUNK_SIZE", 10),
		},
		APIAddr: getEnv("API_ADDR", ":8080"),
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
