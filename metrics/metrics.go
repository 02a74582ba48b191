// Package metrics exposes Prometheus instrumentation for the seeding
// lifecycle manager.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ptseed",
		Name:      "ticks_total",
		Help:      "Total number of completed lifecycle ticks.",
	})

	TickFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ptseed",
		Name:      "tick_failures_total",
		Help:      "Total number of ticks aborted by adapter or registry errors.",
	})

	EvictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ptseed",
		Name:      "evictions_total",
		Help:      "Total number of torrents evicted, by mode (removed or marked).",
	}, []string{"mode"})

	AdmissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ptseed",
		Name:      "admissions_total",
		Help:      "Total number of torrents admitted to the pool.",
	})

	FailedTorrentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ptseed",
		Name:      "failed_torrents_total",
		Help:      "Total number of torrents transitioned to the failed state.",
	})

	ActiveTorrents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ptseed",
		Name:      "active_torrents",
		Help:      "Number of torrents currently counted in the managed pool.",
	})

	PoolDiskBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ptseed",
		Name:      "pool_disk_bytes",
		Help:      "Total disk consumed by seeding and removal-eligible torrents.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		TicksTotal,
		TickFailuresTotal,
		EvictionsTotal,
		AdmissionsTotal,
		FailedTorrentsTotal,
		ActiveTorrents,
		PoolDiskBytes,
	)
}

// Serve registers the collectors on a fresh registry and starts the
// metrics endpoint. The returned server is already listening; callers own
// shutdown.
func Serve(addr string) *http.Server {
	reg := prometheus.NewRegistry()
	Register(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv
}
