package ivy

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated during resolution. A nil
// *Metrics records nothing.
type Metrics struct {
	Resolutions     *prometheus.CounterVec
	ResolveDuration prometheus.Histogram
	NodesLoaded     prometheus.Counter
	LoadFailures    prometheus.Counter
	Conflicts       *prometheus.CounterVec
	Evictions       *prometheus.CounterVec
	Downloads       *prometheus.CounterVec
	DownloadedBytes prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ivy_resolutions_total",
				Help: "Number of resolutions by outcome.",
			},
			[]string{"outcome"},
		),
		ResolveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ivy_resolve_duration_seconds",
				Help:    "Time taken to resolve a module, downloads excluded.",
				Buckets: prometheus.DefBuckets,
			},
		),
		NodesLoaded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ivy_nodes_loaded_total",
				Help: "Number of module descriptors loaded.",
			},
		),
		LoadFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ivy_load_failures_total",
				Help: "Number of module descriptors that could not be loaded.",
			},
		),
		Conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ivy_conflicts_total",
				Help: "Number of conflicts resolved that evicted at least one candidate, by manager.",
			},
			[]string{"manager"},
		),
		Evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ivy_evictions_total",
				Help: "Number of node evictions by cause.",
			},
			[]string{"cause"},
		),
		Downloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ivy_artifact_downloads_total",
				Help: "Number of artifacts handled by download status.",
			},
			[]string{"status"},
		),
		DownloadedBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ivy_downloaded_bytes_total",
				Help: "Bytes written to the artifact cache.",
			},
		),
	}
	for _, c := range []prometheus.Collector{
		m.Resolutions,
		m.ResolveDuration,
		m.NodesLoaded,
		m.LoadFailures,
		m.Conflicts,
		m.Evictions,
		m.Downloads,
		m.DownloadedBytes,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) resolved(err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
	m.ResolveDuration.Observe(d.Seconds())
}

func (m *Metrics) nodeLoaded() {
	if m != nil {
		m.NodesLoaded.Inc()
	}
}

func (m *Metrics) loadFailed() {
	if m != nil {
		m.LoadFailures.Inc()
	}
}

func (m *Metrics) conflictResolved(manager string, evicted int) {
	if m != nil && evicted > 0 {
		m.Conflicts.WithLabelValues(manager).Inc()
	}
}

func (m *Metrics) evicted(transitive bool) {
	if m == nil {
		return
	}
	cause := "conflict"
	if transitive {
		cause = "transitive"
	}
	m.Evictions.WithLabelValues(cause).Inc()
}

func (m *Metrics) downloaded(status DownloadStatus, size int64) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues(string(status)).Inc()
	if status == DownloadStatusDownloaded {
		m.DownloadedBytes.Add(float64(size))
	}
}
