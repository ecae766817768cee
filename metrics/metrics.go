// Package metrics 点歌引擎的 prometheus 指标
package metrics

import (
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JukeboxMetrics 点歌引擎指标
type JukeboxMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	skipVotes  *prometheus.CounterVec
	payouts    *prometheus.CounterVec
	payments   prometheus.Counter
}

var (
	jukeboxOnce     sync.Once
	jukeboxRegistry *JukeboxMetrics
)

// Jukebox 懒加载并注册到默认 registry
func Jukebox() *JukeboxMetrics {
	jukeboxOnce.Do(func() {
		jukeboxRegistry = &JukeboxMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "metajuke",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Engine operations segmented by operation and outcome kind.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "metajuke",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Latency of engine operations including the store transaction.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			skipVotes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "metajuke",
				Subsystem: "session",
				Name:      "skip_votes_total",
				Help:      "Skip votes cast, labelled by whether the vote advanced the queue.",
			}, []string{"advanced"}),
			payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "metajuke",
				Subsystem: "payment",
				Name:      "payout_units_total",
				Help:      "Value routed out of custody, by destination kind (fee, royalty, withdrawal).",
			}, []string{"kind"}),
			payments: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "metajuke",
				Subsystem: "payment",
				Name:      "collected_units_total",
				Help:      "Value collected from requesters into custody.",
			}),
		}
		prometheus.MustRegister(
			jukeboxRegistry.operations,
			jukeboxRegistry.latency,
			jukeboxRegistry.skipVotes,
			jukeboxRegistry.payouts,
			jukeboxRegistry.payments,
		)
	})
	return jukeboxRegistry
}

// ObserveOperation 记录一次操作的结果与耗时
func (m *JukeboxMetrics) ObserveOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSkipVote 记录跳过投票
func (m *JukeboxMetrics) RecordSkipVote(advanced bool) {
	if m == nil {
		return
	}
	label := "false"
	if advanced {
		label = "true"
	}
	m.skipVotes.WithLabelValues(label).Inc()
}

// RecordPayment 记录收款金额
func (m *JukeboxMetrics) RecordPayment(amount *big.Int) {
	if m == nil || amount == nil {
		return
	}
	m.payments.Add(toFloat(amount))
}

// RecordPayout 记录出账金额
func (m *JukeboxMetrics) RecordPayout(kind string, amount *big.Int) {
	if m == nil || amount == nil {
		return
	}
	m.payouts.WithLabelValues(kind).Add(toFloat(amount))
}

func toFloat(amount *big.Int) float64 {
	if amount.Sign() <= 0 {
		return 0
	}
	f, _ := new(big.Float).SetInt(amount).Float64()
	return f
}
