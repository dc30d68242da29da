package monitoring

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.ObserveRequest("POST /cluster-user", "POST", 200, 3*time.Millisecond)
	m.ObserveRequest("POST /cluster-user", "POST", 422, time.Millisecond)
	m.ObservePrediction("cluster-user", "Balanced spender")
	m.ObserveCache("cluster-user", true)
	m.ObserveCache("cluster-user", false)
	m.ObserveCache("cluster-user", false)
	m.SetArtifactsStale(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST /cluster-user", "POST", "422")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictions.WithLabelValues("cluster-user", "Balanced spender")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("cluster-user", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.artifactsStale))

	m.SetArtifactsStale(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.artifactsStale))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET /health", "GET", 200, time.Millisecond)
		m.ObservePrediction("predict-category", "Food")
		m.ObserveCache("predict-category", true)
		m.SetArtifactsStale(true)
		m.SetArtifactTrainedAt("cluster_bundle", time.Now())
	})
}

func TestArtifactWatcherFlagsChanges(t *testing.T) {
	dir := t.TempDir()
	tracked := filepath.Join(dir, "cluster_model.json")
	require.NoError(t, os.WriteFile(tracked, []byte(`{}`), 0o644))

	metrics := NewMetrics()
	w, err := NewArtifactWatcher(dir, []string{"cluster_model.json"}, zap.NewNop(), metrics)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(tracked, []byte(`{"kind":"cluster_bundle"}`), 0o644))

	select {
	case name := <-w.Changes():
		assert.Equal(t, "cluster_model.json", name)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for artifact change")
	}
	assert.True(t, w.Stale())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.artifactsStale))
}

func TestArtifactWatcherMissingDir(t *testing.T) {
	_, err := NewArtifactWatcher(filepath.Join(t.TempDir(), "missing"), nil, zap.NewNop(), nil)
	assert.Error(t, err)
}
