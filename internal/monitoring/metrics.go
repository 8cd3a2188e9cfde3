package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "aedat"

// ImportMetrics counts what the importer decoded. A nil *ImportMetrics
// is valid and records nothing.
type ImportMetrics struct {
	imports        *prometheus.CounterVec
	importDuration prometheus.Histogram
	events         *prometheus.CounterVec
	packets        prometheus.Counter
	warnings       prometheus.Counter
	indexCache     *prometheus.CounterVec
}

// NewImportMetrics registers the import metrics on reg.
func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	auto := promauto.With(reg)
	return &ImportMetrics{
		imports: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "imports_total",
			Help:      "Recordings imported, by format version and result.",
		}, []string{"version", "result"}),
		importDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "import_duration_seconds",
			Help:      "Wall time of successful imports.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		events: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_decoded_total",
			Help:      "Events kept in the returned store, by kind.",
		}, []string{"kind"}),
		packets: auto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "packets_indexed_total",
			Help:      "v3 packet headers passed.",
		}),
		warnings: auto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "decode_warnings_total",
			Help:      "Recoverable decode problems.",
		}),
		indexCache: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "index_cache_total",
			Help:      "Packet index cache lookups and writes, by outcome.",
		}, []string{"outcome"}),
	}
}

// ObserveImport records one finished import. version is the file's
// format version as text, or "unknown" when the header never parsed.
func (m *ImportMetrics) ObserveImport(version string, err error, took time.Duration) {
	if m == nil {
		return
	}
	if err != nil {
		m.imports.WithLabelValues(version, "error").Inc()
		return
	}
	m.imports.WithLabelValues(version, "ok").Inc()
	m.importDuration.Observe(took.Seconds())
}

// AddEvents adds decoded event counts keyed by kind name.
func (m *ImportMetrics) AddEvents(counts map[string]int) {
	if m == nil {
		return
	}
	for kind, n := range counts {
		m.events.WithLabelValues(kind).Add(float64(n))
	}
}

// AddPackets adds to the count of indexed v3 packets.
func (m *ImportMetrics) AddPackets(n int) {
	if m != nil {
		m.packets.Add(float64(n))
	}
}

// AddWarnings adds to the count of recoverable decode problems.
func (m *ImportMetrics) AddWarnings(n int) {
	if m != nil {
		m.warnings.Add(float64(n))
	}
}

// IndexCache records a cache outcome: "hit", "miss", "save" or "error".
func (m *ImportMetrics) IndexCache(outcome string) {
	if m != nil {
		m.indexCache.WithLabelValues(outcome).Inc()
	}
}
