package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics mirrors friggdb's promauto-registered gauge/counter vars in
// friggdb.go: one struct of pre-built collectors, built once at Open and
// set/incremented on the write and stats paths.
type metrics struct {
	quadCount   prometheus.Gauge
	atomCount   prometheus.Gauge
	totalBytes  prometheus.Gauge
	namedGraphs prometheus.Gauge
	commits     prometheus.Counter
	rollbacks   prometheus.Counter
	scans       prometheus.Counter
}

// newMetrics registers collectors into reg (pass a fresh
// prometheus.NewRegistry() in tests to avoid collisions across repeated
// Opens; pass prometheus.DefaultRegisterer in production, matching
// friggdb's component-local promauto.With(reg) usage).
func newMetrics(reg prometheus.Registerer, namespace string) *metrics {
	f := promauto.With(reg)
	return &metrics{
		quadCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "quad_count",
			Help: "Number of live quads across all graphs.",
		}),
		atomCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "atom_count",
			Help: "Number of interned atoms.",
		}),
		totalBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "atom_bytes_total",
			Help: "Total bytes of interned atom data.",
		}),
		namedGraphs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "named_graph_count",
			Help: "Number of distinct non-default graphs observed.",
		}),
		commits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "batch_commits_total",
			Help: "Number of committed write batches.",
		}),
		rollbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "batch_rollbacks_total",
			Help: "Number of rolled-back write batches.",
		}),
		scans: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "scans_total",
			Help: "Number of pattern scans opened.",
		}),
	}
}
