package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pymeta_parsing_seconds",
		Help:    "Time spent parsing and walking one source text.",
		Buckets: prometheus.DefBuckets,
	})

	RecordsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pymeta_records_total",
		Help: "Total number of extracted records by kind.",
	}, []string{"kind"})

	SyntaxErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pymeta_syntax_errors_total",
		Help: "Total number of inputs rejected by the grammar.",
	})

	ParsersInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pymeta_parsers_in_use",
		Help: "Current number of leased tree-sitter parsers.",
	})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pymeta_cache_hits_total",
		Help: "Total number of extractions served from the content cache.",
	})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pymeta_scan_seconds",
		Help:    "Time spent scanning a directory tree.",
		Buckets: prometheus.DefBuckets,
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pymeta_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	IndexWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pymeta_index_writes_total",
		Help: "Total number of index writes by operation.",
	}, []string{"op"})
)
