// Package metrics records pipeline outcomes as prometheus metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for finished runs
const (
	OutcomeOK           = "ok"
	OutcomeInvalidImage = "invalid_image"
	OutcomeConfigError  = "config_error"
	OutcomeError        = "error"
)

// Recorder collects pipeline metrics in its own registry
type Recorder struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	items         *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	duration      prometheus.Histogram
	totalCalories prometheus.Histogram
}

// NewRecorder creates a Recorder with all collectors registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calorie_estimator",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calorie_estimator",
			Name:      "items_total",
			Help:      "Recognised food items by food name.",
		}, []string{"food"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calorie_estimator",
			Name:      "skipped_items_total",
			Help:      "Detected regions left out of results, by reason.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "calorie_estimator",
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		totalCalories: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "calorie_estimator",
			Name:      "meal_calories",
			Help:      "Total calories per estimated meal.",
			Buckets:   []float64{100, 250, 500, 750, 1000, 1500, 2000, 3000},
		}),
	}

	r.registry.MustRegister(r.runs, r.items, r.skipped, r.duration, r.totalCalories)
	return r
}

// Registry exposes the underlying registry for scraping or export
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRun records a finished run
func (r *Recorder) ObserveRun(outcome string, elapsed time.Duration, totalCalories float64) {
	r.runs.WithLabelValues(outcome).Inc()
	r.duration.Observe(elapsed.Seconds())
	if outcome == OutcomeOK {
		r.totalCalories.Observe(totalCalories)
	}
}

// ObserveItem records one recognised food item
func (r *Recorder) ObserveItem(food string) {
	r.items.WithLabelValues(food).Inc()
}

// ObserveSkipped records one region excluded from a result
func (r *Recorder) ObserveSkipped(reason string) {
	r.skipped.WithLabelValues(reason).Inc()
}

// WriteToTextfile writes the current metrics in the node_exporter textfile format
func (r *Recorder) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
