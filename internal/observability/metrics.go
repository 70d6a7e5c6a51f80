// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reward outcome label values.
const (
	OutcomeNoRewardDue  = "no_reward_due"
	OutcomeRewardPaid   = "reward_paid"
	OutcomeRewardFailed = "reward_failed"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger metrics
	TipsRecorded    prometheus.Counter
	TipVolumeSOL    prometheus.Counter
	RewardOutcomes  *prometheus.CounterVec
	CashbackPaidSOL prometheus.Counter
	SinkErrors      *prometheus.CounterVec

	// Payout metrics
	PayoutDuration *prometheus.HistogramVec
	PayoutFailures *prometheus.CounterVec
	RPCCallLatency *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRateLimited     prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulPayout prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tip_ledger"
	}

	return &Metrics{
		TipsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "tips_recorded_total",
			Help:      "Total number of tips recorded",
		}),
		TipVolumeSOL: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "tip_volume_sol_total",
			Help:      "Total SOL claimed by recorded tips",
		}),
		RewardOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reward",
			Name:      "evaluations_total",
			Help:      "Reward evaluations by outcome",
		}, []string{"outcome"}),
		CashbackPaidSOL: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reward",
			Name:      "cashback_paid_sol_total",
			Help:      "Total SOL paid out as cashback, both sides combined",
		}),
		SinkErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "sink_errors_total",
			Help:      "Analytics mirror write failures by event type",
		}, []string{"event"}),

		PayoutDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "payout",
			Name:      "duration_seconds",
			Help:      "Payout submission and confirmation duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		}, []string{"result"}),
		PayoutFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payout",
			Name:      "failures_total",
			Help:      "Payout failures by stage",
		}, []string{"stage"}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		HTTPRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the tip rate limiter",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulPayout: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_payout_timestamp",
			Help:      "Unix timestamp of last confirmed payout",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTip counts a recorded tip and its amount.
func RecordTip(amountSOL float64) {
	DefaultMetrics.TipsRecorded.Inc()
	DefaultMetrics.TipVolumeSOL.Add(amountSOL)
}

// RecordRewardOutcome counts one reward evaluation.
func RecordRewardOutcome(outcome string) {
	DefaultMetrics.RewardOutcomes.WithLabelValues(outcome).Inc()
}

// RecordPayout records a payout attempt. stage is empty on success.
func RecordPayout(stage string, seconds, paidSOL float64, unixNow int64) {
	if stage == "" {
		DefaultMetrics.PayoutDuration.WithLabelValues("ok").Observe(seconds)
		DefaultMetrics.CashbackPaidSOL.Add(paidSOL)
		DefaultMetrics.LastSuccessfulPayout.Set(float64(unixNow))
		return
	}
	DefaultMetrics.PayoutDuration.WithLabelValues("failed").Observe(seconds)
	DefaultMetrics.PayoutFailures.WithLabelValues(stage).Inc()
}

// RecordSinkError counts a failed analytics mirror write.
func RecordSinkError(event string) {
	DefaultMetrics.SinkErrors.WithLabelValues(event).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(route, method string, status int, seconds float64) {
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(seconds)
}

// RecordRateLimited counts a request rejected by the rate limiter.
func RecordRateLimited() {
	DefaultMetrics.HTTPRateLimited.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
