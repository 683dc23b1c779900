package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the shingling pipeline.
type Metrics struct {
	ShingleJobs        prometheus.Counter
	ShingleJobsSkipped prometheus.Counter
	SetsWritten        *prometheus.CounterVec
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	FetchRequests      prometheus.Counter
	FetchErrors        prometheus.Counter
	SamplesComputed    prometheus.Counter
	JobDuration        prometheus.Histogram
}

// New creates and registers all metrics.
func New() *Metrics {
	return &Metrics{
		ShingleJobs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "revdrift_shingle_jobs_total",
			Help: "Number of (document, version, window) fingerprinting jobs completed",
		}),
		ShingleJobsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "revdrift_shingle_jobs_skipped_total",
			Help: "Number of jobs skipped because all artifacts already exist",
		}),
		SetsWritten: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revdrift_shingle_sets_written_total",
				Help: "Number of shingle set artifacts persisted, per budget label",
			},
			[]string{"lambda"},
		),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "revdrift_set_cache_hits_total",
			Help: "Number of shingle set loads served from the in-memory cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "revdrift_set_cache_misses_total",
			Help: "Number of shingle set loads that went to the backing store",
		}),
		FetchRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "revdrift_fetch_requests_total",
			Help: "Number of revision API requests issued",
		}),
		FetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "revdrift_fetch_errors_total",
			Help: "Number of failed revision API requests",
		}),
		SamplesComputed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "revdrift_similarity_samples_total",
			Help: "Number of Jaccard similarity samples computed",
		}),
		JobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "revdrift_shingle_job_seconds",
			Help:    "Wall-clock duration of one fingerprinting job",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}
}

// Serve exposes /metrics on addr in a background goroutine. Long grid runs
// can be watched without blocking the pipeline.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("[WARN] metrics listener on %s stopped: %v", addr, err)
		}
	}()
}
