package ml

import (
	"math"
	"math/rand"
)

// TrainTestSplit shuffles the indices 0..n-1 with a fixed seed and holds out
// ceil(testRatio*n) of them for testing.
func TrainTestSplit(n int, testRatio float64, seed int64) (train, test []int) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(n)

	testSize := int(math.Ceil(float64(n) * testRatio))
	if testSize >= n {
		testSize = n - 1
	}
	if testSize < 0 {
		testSize = 0
	}
	return indices[testSize:], indices[:testSize]
}

func Accuracy(actual, predicted []string) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return 0
	}
	var correct int
	for i := range actual {
		if actual[i] == predicted[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(actual))
}

// ConfusionMatrix counts predictions with rows indexed by the actual class and
// columns by the predicted class, both in the order of classes.
func ConfusionMatrix(actual, predicted, classes []string) [][]int {
	index := make(map[string]int, len(classes))
	for i, class := range classes {
		index[class] = i
	}
	matrix := make([][]int, len(classes))
	for i := range matrix {
		matrix[i] = make([]int, len(classes))
	}
	for i := range actual {
		if i >= len(predicted) {
			break
		}
		row, okRow := index[actual[i]]
		col, okCol := index[predicted[i]]
		if okRow && okCol {
			matrix[row][col]++
		}
	}
	return matrix
}
