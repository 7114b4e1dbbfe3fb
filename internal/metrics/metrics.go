package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pumpwatch",
		Name:      "cycles_total",
		Help:      "Completed scan cycles.",
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pumpwatch",
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of a full scan cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	FetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pumpwatch",
		Name:      "fetch_errors_total",
		Help:      "Webhook fetch failures.",
	})

	ItemsDedupedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pumpwatch",
		Name:      "items_deduped_total",
		Help:      "Webhook items dropped as already seen.",
	})

	TransactionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pumpwatch",
		Name:      "transactions_total",
		Help:      "Transactions accepted into the engine.",
	})

	SpamDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pumpwatch",
		Name:      "spam_dropped_total",
		Help:      "Transactions dropped for spamming originators.",
	})

	PeaksWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pumpwatch",
		Name:      "peaks_written_total",
		Help:      "Peak snapshots appended to sinks.",
	})

	AlertsFiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pumpwatch",
		Name:      "alerts_fired_total",
		Help:      "Momentum alerts fired.",
	})

	EpochResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pumpwatch",
		Name:      "epoch_resets_total",
		Help:      "Full state resets, scheduled or manual.",
	})

	TrackedTokens = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pumpwatch",
		Name:      "tracked_tokens",
		Help:      "Tokens currently held in the sliding-window engine.",
	})
)

func Handler() http.Handler {
	h := promhttp.Handler()
	return h
}
