// Package metrics exposes the Prometheus counters for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LinksCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "links_created_total",
		Help: "Total links created.",
	})
	Resolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "resolutions_total",
		Help: "Resolution requests by outcome.",
	}, []string{"outcome"})
	VisitsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "visits_recorded_total",
		Help: "Visit events durably recorded.",
	})
	VisitsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "visits_dropped_total",
		Help: "Visit events dropped due to a full queue.",
	})
	CacheHit = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "link_cache_hit_total",
		Help: "Link cache hits.",
	})
	CacheMiss = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "link_cache_miss_total",
		Help: "Link cache misses.",
	})
)

func init() {
	prometheus.MustRegister(LinksCreated, Resolutions, VisitsRecorded, VisitsDropped, CacheHit, CacheMiss)
}

// Handler serves the Prometheus exposition endpoint.
var Handler = promhttp.Handler()
