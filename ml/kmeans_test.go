package ml

import (
	"math"
	"testing"
)

func TestStandardScaler(t *testing.T) {
	features := [][]float64{
		{1, 10, 5},
		{3, 20, 5},
	}
	scaler := &StandardScaler{}
	if err := scaler.Fit(features); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scaler.Mean[0] != 2 || scaler.Mean[1] != 15 {
		t.Fatalf("unexpected mean: %v", scaler.Mean)
	}
	if scaler.Scale[0] != 1 || scaler.Scale[1] != 5 {
		t.Fatalf("unexpected scale: %v", scaler.Scale)
	}
	if scaler.Scale[2] != 1 {
		t.Fatalf("expected constant feature to keep scale 1, got %f", scaler.Scale[2])
	}

	scaled, err := scaler.Transform([]float64{3, 10, 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scaled[0] != 1 || scaled[1] != -1 || scaled[2] != 2 {
		t.Fatalf("unexpected scaled values: %v", scaled)
	}
	restored, err := scaler.InverseTransform(scaled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, want := range []float64{3, 10, 7} {
		if math.Abs(restored[i]-want) > 1e-12 {
			t.Fatalf("inverse transform mismatch at %d: %f", i, restored[i])
		}
	}
	if _, err := scaler.Transform([]float64{1}); err == nil {
		t.Fatal("expected error for wrong width")
	}
}

func TestKMeansSeparatesBlobs(t *testing.T) {
	features := [][]float64{
		{0, 0}, {0.2, 0.1}, {0.1, 0.3}, {0.3, 0.2},
		{10, 10}, {10.2, 9.9}, {9.8, 10.1}, {10.1, 10.3},
	}
	km := NewKMeans(KMeansConfig{Clusters: 2, Seed: 42})
	if err := km.Fit(features); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if km.Clusters() != 2 {
		t.Fatalf("expected 2 clusters, got %d", km.Clusters())
	}

	low, _ := km.Predict([]float64{0.1, 0.1})
	high, _ := km.Predict([]float64{10, 10})
	if low == high {
		t.Fatal("expected blobs in different clusters")
	}
	for _, row := range features[:4] {
		if c, _ := km.Predict(row); c != low {
			t.Fatalf("point %v assigned to %d, want %d", row, c, low)
		}
	}
	for _, row := range features[4:] {
		if c, _ := km.Predict(row); c != high {
			t.Fatalf("point %v assigned to %d, want %d", row, c, high)
		}
	}
}

func TestKMeansDeterministic(t *testing.T) {
	features := [][]float64{{1, 2}, {2, 1}, {8, 9}, {9, 8}, {4, 5}, {5, 4}}
	first := NewKMeans(KMeansConfig{Clusters: 3, Seed: 7})
	second := NewKMeans(KMeansConfig{Clusters: 3, Seed: 7})
	if err := first.Fit(features); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := second.Fit(features); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range first.Centroids {
		for j := range first.Centroids[i] {
			if first.Centroids[i][j] != second.Centroids[i][j] {
				t.Fatalf("centroids differ between identical seeded runs")
			}
		}
	}
}

func TestKMeansTooFewSamples(t *testing.T) {
	km := NewKMeans(KMeansConfig{Clusters: 5})
	if err := km.Fit([][]float64{{1}, {2}}); err == nil {
		t.Fatal("expected error when samples < clusters")
	}
	if _, err := km.Predict([]float64{1}); err == nil {
		t.Fatal("expected error for untrained model")
	}
}
