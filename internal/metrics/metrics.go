// Package metrics holds the Prometheus collectors of the module engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	LifecycleOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modengine_lifecycle_operations_total",
			Help: "Lifecycle operations by operation, module and outcome.",
		},
		[]string{"operation", "module", "outcome"},
	)

	// HookFailuresTotal counts every hook error, including the ones the
	// lenient uninstall/upgrade policy suppresses.
	HookFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modengine_hook_failures_total",
			Help: "Module hook failures by hook and module.",
		},
		[]string{"hook", "module"},
	)

	LifecycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modengine_lifecycle_duration_seconds",
			Help:    "Time taken by lifecycle operations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RegistryModules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "modengine_registry_modules",
			Help: "Number of descriptors in the current registry snapshot.",
		},
	)

	RegistryDiscoveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modengine_registry_discovery_duration_seconds",
			Help:    "Time taken to rebuild the registry snapshot.",
			Buckets: prometheus.DefBuckets,
		},
	)

	RegistrySkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modengine_registry_skipped_total",
			Help: "Descriptors skipped during discovery, by reason.",
		},
		[]string{"reason"},
	)

	RegistryRestoresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "modengine_registry_restores_total",
			Help: "Times the registry snapshot was repopulated from its backup.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		LifecycleOperationsTotal,
		HookFailuresTotal,
		LifecycleDuration,
		RegistryModules,
		RegistryDiscoveryDuration,
		RegistrySkippedTotal,
		RegistryRestoresTotal,
	)
}
