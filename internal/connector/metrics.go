package connector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tv1cti_cycles_total",
		Help: "Poll cycles executed, successful or not.",
	})
	cycleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tv1cti_cycle_failures_total",
		Help: "Poll cycles that exhausted every page-size fallback.",
	})
	bundlesImported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tv1cti_bundles_imported_total",
		Help: "STIX bundles committed to OpenCTI.",
	})
	objectsImported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tv1cti_objects_imported_total",
		Help: "STIX objects committed to OpenCTI.",
	})
	lastCycleTime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tv1cti_last_cycle_timestamp_seconds",
		Help: "Unix time of the most recent cycle completion.",
	})
)
