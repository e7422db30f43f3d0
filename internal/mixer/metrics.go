package mixer

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the Mixer Orchestrator's Prometheus instruments: route
// outcome counts and per-hop latency (§2 "Mixer Orchestrator").
type Metrics struct {
	routesTotal   *prometheus.CounterVec
	hopDuration   prometheus.Histogram
	poolAvailable prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		routesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mixer_routes_total",
			Help: "Routes executed, labeled by outcome.",
		}, []string{"outcome"}),
		hopDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mixer_hop_duration_seconds",
			Help:    "Wall-clock time spent fetching a blockhash for and submitting a single hop, excluding confirmation.",
			Buckets: prometheus.DefBuckets,
		}),
		poolAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mixer_wallet_pool_available",
			Help: "Wallets currently in status=available.",
		}),
	}
}

// Collectors returns every metric for registration against a
// prometheus.Registerer at process startup.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.routesTotal, m.hopDuration, m.poolAvailable}
}

func (m *Metrics) observeRoute(success bool) {
	if success {
		m.routesTotal.WithLabelValues("success").Inc()
	} else {
		m.routesTotal.WithLabelValues("failure").Inc()
	}
}

func (m *Metrics) observeHop(seconds float64) {
	m.hopDuration.Observe(seconds)
}

func (m *Metrics) setPoolAvailable(n int) {
	m.poolAvailable.Set(float64(n))
}
