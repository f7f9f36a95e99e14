// Package metrics registers the Prometheus series updated during engine
// cycles. They are served at /metrics by the status API in Prometheus text
// exposition format.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	cyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ladder_cycles_total",
			Help: "Evaluation cycles completed",
		},
	)

	cyclesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_cycles_skipped_total",
			Help: "Cycles skipped, split by reason (volatile|no_data)",
		},
		[]string{"reason"},
	)

	assetFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_asset_failures_total",
			Help: "Per-asset pipeline failures that were isolated and skipped",
		},
		[]string{"asset"},
	)

	pivotsFound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_pivots_found_total",
			Help: "Pivot points detected, split by type (high|low)",
		},
		[]string{"type"},
	)

	opportunitiesOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ladder_opportunities_open",
			Help: "Opportunities currently awaiting entry",
		},
	)

	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_orders_total",
			Help: "Orders placed, split by side and type",
		},
		[]string{"side", "type"},
	)

	tradesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_trades_closed_total",
			Help: "Trades fully closed, split by how (take_profit|stop_loss)",
		},
		[]string{"reason"},
	)

	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ladder_cycle_duration_seconds",
			Help:    "Wall time of one full evaluation cycle",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal, cyclesSkipped, assetFailures)
	prometheus.MustRegister(pivotsFound, opportunitiesOpen)
	prometheus.MustRegister(ordersPlaced, tradesClosed, cycleDuration)
}

func IncCycles()                      { cyclesTotal.Inc() }
func IncCycleSkipped(reason string)   { cyclesSkipped.WithLabelValues(reason).Inc() }
func IncAssetFailure(asset string)    { assetFailures.WithLabelValues(asset).Inc() }
func IncPivots(typ string, n int)     { pivotsFound.WithLabelValues(typ).Add(float64(n)) }
func SetOpenOpportunities(n int)      { opportunitiesOpen.Set(float64(n)) }
func IncOrder(side, typ string)       { ordersPlaced.WithLabelValues(side, typ).Inc() }
func IncTradeClosed(reason string)    { tradesClosed.WithLabelValues(reason).Inc() }
func ObserveCycleSeconds(sec float64) { cycleDuration.Observe(sec) }
