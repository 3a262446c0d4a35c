// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the guard.
type Metrics struct {
	// Poll metrics
	PollsTotal        *prometheus.CounterVec
	PolicyUpdates     *prometheus.CounterVec
	GuardActionsTotal *prometheus.CounterVec

	// Channel metrics
	LiquidityRatio prometheus.Gauge
	HTLCCapSats    prometheus.Gauge
	FeeRatePPM     prometheus.Gauge
	BlockerActive  prometheus.Gauge

	// Health metrics
	ConsecutiveFailures *prometheus.GaugeVec
	LastSuccessfulPoll  prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "channel_guard"
	}

	return &Metrics{
		// Poll metrics
		PollsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "polls_total",
			Help:      "Total number of poll cycles by result",
		}, []string{"result"}),
		PolicyUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "policy_updates_total",
			Help:      "Total number of policy updates pushed by status",
		}, []string{"status"}),
		GuardActionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "actions_total",
			Help:      "Total number of guard actions by type",
		}, []string{"action"}),

		// Channel metrics
		LiquidityRatio: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "liquidity_ratio",
			Help:      "Local balance over capacity for the guarded channel",
		}),
		HTLCCapSats: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "htlc_cap_sats",
			Help:      "Current computed HTLC cap in satoshis",
		}),
		FeeRatePPM: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "fee_rate_ppm",
			Help:      "Fee rate in effect after the last poll",
		}),
		BlockerActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "blocker_active",
			Help:      "Whether the fee blocker is currently armed (0 or 1)",
		}),

		// Health metrics
		ConsecutiveFailures: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "consecutive_failures",
			Help:      "Current consecutive failure count by kind",
		}, []string{"kind"}),
		LastSuccessfulPoll: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of last successful poll",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPoll records one poll cycle outcome ("success", "not_found", "error").
func RecordPoll(result string) {
	DefaultMetrics.PollsTotal.WithLabelValues(result).Inc()
	if result == "success" {
		DefaultMetrics.LastSuccessfulPoll.Set(float64(time.Now().Unix()))
	}
}

// RecordAction records a guard action taken on the channel.
func RecordAction(action string) {
	DefaultMetrics.GuardActionsTotal.WithLabelValues(action).Inc()
}

// RecordPolicyUpdate records one policy update attempt.
func RecordPolicyUpdate(err error) {
	if err != nil {
		DefaultMetrics.PolicyUpdates.WithLabelValues("error").Inc()
		return
	}
	DefaultMetrics.PolicyUpdates.WithLabelValues("ok").Inc()
}

// UpdateChannelState updates the per-channel gauges after a successful poll.
func UpdateChannelState(ratio float64, capSats, feePPM int64, blockerActive bool) {
	DefaultMetrics.LiquidityRatio.Set(ratio)
	DefaultMetrics.HTLCCapSats.Set(float64(capSats))
	DefaultMetrics.FeeRatePPM.Set(float64(feePPM))
	if blockerActive {
		DefaultMetrics.BlockerActive.Set(1)
	} else {
		DefaultMetrics.BlockerActive.Set(0)
	}
}

// UpdateFailureCounts updates the consecutive failure gauges.
func UpdateFailureCounts(notFound, transient int) {
	DefaultMetrics.ConsecutiveFailures.WithLabelValues("not_found").Set(float64(notFound))
	DefaultMetrics.ConsecutiveFailures.WithLabelValues("transient").Set(float64(transient))
}
