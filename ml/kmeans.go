package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

type KMeansConfig struct {
	Clusters int
	// NInit is the number of k-means++ restarts; the lowest-inertia run wins.
	NInit   int
	MaxIter int
	Tol     float64
	Seed    int64
}

func DefaultKMeansConfig() KMeansConfig {
	return KMeansConfig{
		Clusters: 5,
		NInit:    10,
		MaxIter:  300,
		Tol:      1e-4,
		Seed:     42,
	}
}

// KMeans is a Lloyd's-algorithm partition with k-means++ seeding.
type KMeans struct {
	Centroids [][]float64 `json:"centroids"`
	Inertia   float64     `json:"inertia"`
	Iter      int         `json:"n_iter"`

	config KMeansConfig
}

func NewKMeans(config KMeansConfig) *KMeans {
	defaults := DefaultKMeansConfig()
	if config.Clusters <= 0 {
		config.Clusters = defaults.Clusters
	}
	if config.NInit <= 0 {
		config.NInit = defaults.NInit
	}
	if config.MaxIter <= 0 {
		config.MaxIter = defaults.MaxIter
	}
	if config.Tol <= 0 {
		config.Tol = defaults.Tol
	}
	return &KMeans{config: config}
}

func (km *KMeans) Fit(features [][]float64) error {
	if km.config.MaxIter == 0 {
		km.config = NewKMeans(km.config).config
	}
	k := km.config.Clusters
	if len(features) < k {
		return fmt.Errorf("need at least %d samples, got %d", k, len(features))
	}
	width := len(features[0])
	for i, row := range features {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
	}

	tol := km.config.Tol * meanVariance(features)
	rnd := rand.New(rand.NewSource(km.config.Seed))

	bestInertia := math.Inf(1)
	var bestCentroids [][]float64
	var bestIter int
	for run := 0; run < km.config.NInit; run++ {
		centroids := kmeansPlusPlus(features, k, rnd)
		centroids, inertia, iter := lloyd(features, centroids, km.config.MaxIter, tol)
		if inertia < bestInertia {
			bestInertia = inertia
			bestCentroids = centroids
			bestIter = iter
		}
	}

	km.Centroids = bestCentroids
	km.Inertia = bestInertia
	km.Iter = bestIter
	return nil
}

// Predict returns the index of the nearest centroid; ties go to the lower index.
func (km *KMeans) Predict(features []float64) (int, error) {
	if len(km.Centroids) == 0 {
		return 0, errors.New("model not trained")
	}
	if len(features) != len(km.Centroids[0]) {
		return 0, fmt.Errorf("got %d features, model expects %d", len(features), len(km.Centroids[0]))
	}
	best, _ := nearest(features, km.Centroids)
	return best, nil
}

func (km *KMeans) Clusters() int {
	return len(km.Centroids)
}

func (km *KMeans) validate() error {
	if len(km.Centroids) == 0 {
		return errors.New("k-means has no centroids")
	}
	width := len(km.Centroids[0])
	for i, centroid := range km.Centroids {
		if len(centroid) != width || width == 0 {
			return fmt.Errorf("centroid %d has invalid width %d", i, len(centroid))
		}
	}
	return nil
}

func kmeansPlusPlus(features [][]float64, k int, rnd *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := features[rnd.Intn(len(features))]
	centroids = append(centroids, append([]float64(nil), first...))

	distances := make([]float64, len(features))
	for len(centroids) < k {
		var total float64
		for i, row := range features {
			_, d := nearest(row, centroids)
			distances[i] = d
			total += d
		}
		if total == 0 {
			// All remaining points coincide with a centroid.
			centroids = append(centroids, append([]float64(nil), features[rnd.Intn(len(features))]...))
			continue
		}
		target := rnd.Float64() * total
		chosen := len(features) - 1
		for i, d := range distances {
			target -= d
			if target < 0 {
				chosen = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), features[chosen]...))
	}
	return centroids
}

func lloyd(features [][]float64, centroids [][]float64, maxIter int, tol float64) ([][]float64, float64, int) {
	k := len(centroids)
	width := len(centroids[0])
	assignments := make([]int, len(features))
	distances := make([]float64, len(features))

	iter := 0
	for iter < maxIter {
		iter++
		for i, row := range features {
			assignments[i], distances[i] = nearest(row, centroids)
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, width)
		}
		for i, row := range features {
			c := assignments[i]
			counts[c]++
			for j, value := range row {
				sums[c][j] += value
			}
		}

		var shift float64
		for c := range centroids {
			if counts[c] == 0 {
				// Re-seed an empty cluster with the point farthest from its centroid.
				far := argmax(distances)
				sums[c] = append([]float64(nil), features[far]...)
				counts[c] = 1
				distances[far] = 0
			}
			for j := range sums[c] {
				updated := sums[c][j] / float64(counts[c])
				diff := updated - centroids[c][j]
				shift += diff * diff
				centroids[c][j] = updated
			}
		}
		if shift <= tol {
			break
		}
	}

	var inertia float64
	for _, row := range features {
		_, d := nearest(row, centroids)
		inertia += d
	}
	return centroids, inertia, iter
}

func nearest(row []float64, centroids [][]float64) (int, float64) {
	best := 0
	bestDistance := math.Inf(1)
	for c, centroid := range centroids {
		d := squaredDistance(row, centroid)
		if d < bestDistance {
			best = c
			bestDistance = d
		}
	}
	return best, bestDistance
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

func meanVariance(features [][]float64) float64 {
	width := len(features[0])
	n := float64(len(features))
	var total float64
	for j := 0; j < width; j++ {
		var mean float64
		for _, row := range features {
			mean += row[j]
		}
		mean /= n
		var variance float64
		for _, row := range features {
			diff := row[j] - mean
			variance += diff * diff
		}
		total += variance / n
	}
	return total / float64(width)
}
