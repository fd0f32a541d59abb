// Package metrics provides Prometheus metrics for the training pipeline and
// the runtime classifier, exposed via the standard metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for training and classification.
type Metrics struct {
	// Classification metrics
	Predictions       prometheus.Counter   // Total classifications served
	CascadeRejections prometheus.Counter   // Candidates rejected by the boosting cascade
	PredictionScores  prometheus.Histogram // Distribution of classification scores

	// Training metrics
	Evaluations    prometheus.Counter // Hyperparameter points evaluated
	TrainFailures  prometheus.Counter // Engine training failures during search
	BoosterStages  prometheus.Gauge   // Stages in the trained cascade
	ExamplesStored prometheus.Counter // Labelled examples added to the store
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics against a custom registry, for tests.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "classifier_predictions_total",
			Help: "Total number of classifications served",
		}),
		CascadeRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "classifier_cascade_rejections_total",
			Help: "Candidates rejected by the boosting cascade before the engine ran",
		}),
		PredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "classifier_prediction_scores",
			Help:    "Distribution of sign-corrected classification scores",
			Buckets: prometheus.LinearBuckets(-2, 0.4, 11),
		}),
		Evaluations: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_evaluations_total",
			Help: "Hyperparameter points evaluated by cross-validation",
		}),
		TrainFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_engine_failures_total",
			Help: "Engine training failures on degenerate hyperparameter points",
		}),
		BoosterStages: factory.NewGauge(prometheus.GaugeOpts{
			Name: "training_booster_stages",
			Help: "Number of stages in the trained boosting cascade",
		}),
		ExamplesStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_examples_stored_total",
			Help: "Labelled training examples added to the example store",
		}),
	}
}

// PredictionsInc implements the classifier's metrics sink.
func (m *Metrics) PredictionsInc() { m.Predictions.Inc() }

// CascadeRejectionsInc implements the classifier's metrics sink.
func (m *Metrics) CascadeRejectionsInc() { m.CascadeRejections.Inc() }

// PredictionScoreObserve implements the classifier's metrics sink.
func (m *Metrics) PredictionScoreObserve(score float64) { m.PredictionScores.Observe(score) }

// ExamplesStoredInc implements the trainer's metrics sink.
func (m *Metrics) ExamplesStoredInc() { m.ExamplesStored.Inc() }

// EvaluationsInc implements the trainer's metrics sink.
func (m *Metrics) EvaluationsInc() { m.Evaluations.Inc() }

// TrainFailuresInc implements the trainer's metrics sink.
func (m *Metrics) TrainFailuresInc() { m.TrainFailures.Inc() }

// BoosterStagesSet implements the trainer's metrics sink.
func (m *Metrics) BoosterStagesSet(n float64) { m.BoosterStages.Set(n) }
