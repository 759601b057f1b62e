// Package metrics exposes the simulator's Prometheus metrics, in the
// global-vars-plus-init-registration shape warren's pkg/metrics uses.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrench_jobs_submitted_total",
			Help: "Total number of compound jobs submitted to a compute service",
		},
		[]string{"service_id"},
	)

	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrench_jobs_completed_total",
			Help: "Total number of compound jobs reaching a terminal state",
		},
		[]string{"service_id", "status"},
	)

	ActionsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrench_actions_dispatched_total",
			Help: "Total number of actions dispatched to a host by kind",
		},
		[]string{"service_id", "kind"},
	)

	HostCoresInUse = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wrench_host_cores_in_use",
			Help: "Cores currently occupied by a running action, per host",
		},
		[]string{"host_id"},
	)

	HostRAMInUseBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wrench_host_ram_in_use_bytes",
			Help: "RAM currently occupied by a running action, per host",
		},
		[]string{"host_id"},
	)

	XRootDCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrench_xrootd_cache_hits_total",
			Help: "Total number of XRootD node cache hits/misses by node",
		},
		[]string{"node_id", "result"},
	)

	XRootDBroadcastSearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrench_xrootd_broadcast_searches_total",
			Help: "Total number of XRootD hierarchical broadcast searches started at a node",
		},
		[]string{"node_id"},
	)
)

func init() {
	prometheus.MustRegister(
		JobsSubmittedTotal,
		JobsCompletedTotal,
		ActionsDispatchedTotal,
		HostCoresInUse,
		HostRAMInUseBytes,
		XRootDCacheHitsTotal,
		XRootDBroadcastSearchesTotal,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
