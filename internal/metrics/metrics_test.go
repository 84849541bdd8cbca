// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bismark-engine/pkg/record"
)

func TestObserve(t *testing.T) {
	r := NewRecorder()
	shape := &record.ShapeError{Record: "bismarkParams", Field: "mismatch", Expected: record.Integer, Actual: "string"}

	r.Observe("run_bismark_app", time.Second, nil)
	r.Observe("run_bismark_app", time.Second, fmt.Errorf("decoding params: %w", shape))
	r.Observe("prepare_genome", time.Second, errors.New("exit status 1"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.calls.WithLabelValues("run_bismark_app", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.calls.WithLabelValues("run_bismark_app", OutcomeShapeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.calls.WithLabelValues("prepare_genome", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.shapeErrors.WithLabelValues("bismarkParams", "mismatch")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.duration))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.Observe("status", 10*time.Millisecond, nil)

	path := filepath.Join(t.TempDir(), "textfile", "bismark.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `bismark_calls_total{method="status",outcome="ok"} 1`)
	assert.Contains(t, string(data), "bismark_call_duration_seconds_bucket")
}
