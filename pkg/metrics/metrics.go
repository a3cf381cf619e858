package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walkers_cache_hits_total",
		Help: "Total number of exact tile cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walkers_cache_misses_total",
		Help: "Total number of exact tile cache misses",
	})

	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walkers_cache_evictions_total",
		Help: "Total number of tiles evicted from the in-memory cache",
	})

	PlaceholdersServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walkers_placeholders_served_total",
		Help: "Total number of tiles substituted by a lower-zoom ancestor",
	})

	DownloadsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "walkers_downloads_in_flight",
		Help: "Number of tile fetches currently running",
	})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "walkers_fetch_duration_seconds",
		Help:    "Duration of tile fetches in seconds",
		Buckets: prometheus.DefBuckets,
	})

	FetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walkers_fetch_errors_total",
		Help: "Total number of failed tile fetches",
	})

	DecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walkers_decode_errors_total",
		Help: "Total number of tile payloads that could not be decoded",
	})

	StoreHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walkers_store_hits_total",
		Help: "Total number of tile fetches answered by the secondary store",
	})
)
