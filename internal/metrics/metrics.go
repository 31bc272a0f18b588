// Package metrics holds the Prometheus collectors for QC runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatasetsProcessed counts datasets through the QC pipeline by platform.
	DatasetsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metaboqc_datasets_processed_total",
		Help: "Datasets processed by the QC pipeline.",
	}, []string{"platform"})

	// FeaturesSelected counts features passing or failing selection.
	FeaturesSelected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metaboqc_features_selected_total",
		Help: "Features evaluated by the feature-selection predicate.",
	}, []string{"result"})

	// CorrectionFallbacks counts features reverted during batch correction.
	CorrectionFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metaboqc_batch_correction_fallbacks_total",
		Help: "Features reverted to uncorrected values during batch correction.",
	})

	// StageDuration records time spent in each pipeline stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metaboqc_stage_duration_seconds",
		Help:    "Duration of QC pipeline stages.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"stage"})

	// ReportsWritten counts reports by type and destination.
	ReportsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metaboqc_reports_written_total",
		Help: "Reports rendered by the reporting adapter.",
	}, []string{"type", "mode"})
)
