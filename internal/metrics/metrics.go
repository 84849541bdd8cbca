// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics counts pipeline calls and record shape errors and writes
// them in the Prometheus text format for a node-exporter textfile collector.
package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/bismark-engine/pkg/record"
)

// Outcome labels.
const (
	OutcomeOK         = "ok"
	OutcomeShapeError = "shape_error"
	OutcomeError      = "error"
)

// Recorder collects pipeline metrics in its own registry, not the
// default one.
type Recorder struct {
	registry    *prometheus.Registry
	calls       *prometheus.CounterVec
	shapeErrors *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bismark_calls_total",
			Help: "Pipeline calls by method and outcome.",
		}, []string{"method", "outcome"}),
		shapeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bismark_shape_errors_total",
			Help: "Records rejected because a declared field had the wrong type.",
		}, []string{"record", "field"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bismark_call_duration_seconds",
			Help:    "Wall time of pipeline calls.",
			Buckets: []float64{1, 10, 60, 300, 900, 3600, 4 * 3600, 12 * 3600},
		}, []string{"method"}),
	}
	r.registry.MustRegister(r.calls, r.shapeErrors, r.duration)
	return r
}

// Observe records one finished call. A *record.ShapeError anywhere in the
// chain of err is counted under its record and field.
func (r *Recorder) Observe(method string, d time.Duration, err error) {
	outcome := OutcomeOK
	var se *record.ShapeError
	switch {
	case errors.As(err, &se):
		outcome = OutcomeShapeError
		r.shapeErrors.WithLabelValues(se.Record, se.Field).Inc()
	case err != nil:
		outcome = OutcomeError
	}
	r.calls.WithLabelValues(method, outcome).Inc()
	r.duration.WithLabelValues(method).Observe(d.Seconds())
}

// Registry exposes the underlying registry (for tests and HTTP exposition).
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WriteTextfile writes all metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
