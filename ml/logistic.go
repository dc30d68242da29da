package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

type LogisticConfig struct {
	// C is the inverse L2 regularization strength.
	C            float64
	MaxIter      int
	Tol          float64
	LearningRate float64
	// Standardize fits a StandardScaler on the training rows and applies it
	// inside PredictProba, so callers always pass raw features.
	Standardize bool
}

func DefaultLogisticConfig() LogisticConfig {
	return LogisticConfig{
		C:            1.0,
		MaxIter:      100,
		Tol:          1e-4,
		LearningRate: 0.5,
	}
}

// LogisticRegression is a multinomial (softmax) classifier over string labels.
type LogisticRegression struct {
	Classes   []string        `json:"classes"`
	Coef      [][]float64     `json:"coef"`
	Intercept []float64       `json:"intercept"`
	Scaler    *StandardScaler `json:"scaler,omitempty"`
	Iter      int             `json:"n_iter"`

	config LogisticConfig
}

func NewLogisticRegression(config LogisticConfig) *LogisticRegression {
	defaults := DefaultLogisticConfig()
	if config.C <= 0 {
		config.C = defaults.C
	}
	if config.MaxIter <= 0 {
		config.MaxIter = defaults.MaxIter
	}
	if config.Tol <= 0 {
		config.Tol = defaults.Tol
	}
	if config.LearningRate <= 0 {
		config.LearningRate = defaults.LearningRate
	}
	return &LogisticRegression{config: config}
}

type sparseRow struct {
	idx []int
	val []float64
}

func (lr *LogisticRegression) Fit(features [][]float64, labels []string) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	if lr.config.MaxIter == 0 {
		lr.config = NewLogisticRegression(lr.config).config
	}

	classes := uniqueSorted(labels)
	if len(classes) < 2 {
		return fmt.Errorf("need at least 2 classes, got %d", len(classes))
	}
	classIndex := make(map[string]int, len(classes))
	for i, class := range classes {
		classIndex[class] = i
	}

	var scaler *StandardScaler
	if lr.config.Standardize {
		scaler = &StandardScaler{}
		if err := scaler.Fit(features); err != nil {
			return err
		}
		scaled, err := scaler.TransformAll(features)
		if err != nil {
			return err
		}
		features = scaled
	}

	width := len(features[0])
	rows := make([]sparseRow, len(features))
	for i, row := range features {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
		for j, value := range row {
			if value != 0 {
				rows[i].idx = append(rows[i].idx, j)
				rows[i].val = append(rows[i].val, value)
			}
		}
	}
	targets := make([]int, len(labels))
	for i, label := range labels {
		targets[i] = classIndex[label]
	}

	k := len(classes)
	coef := make([][]float64, k)
	gradCoef := make([][]float64, k)
	for c := range coef {
		coef[c] = make([]float64, width)
		gradCoef[c] = make([]float64, width)
	}
	intercept := make([]float64, k)
	gradIntercept := make([]float64, k)
	probs := make([]float64, k)

	n := float64(len(rows))
	lambda := 1 / (lr.config.C * n)
	iter := 0
	for iter < lr.config.MaxIter {
		iter++
		for c := 0; c < k; c++ {
			clear(gradCoef[c])
		}
		clear(gradIntercept)

		for i, row := range rows {
			for c := 0; c < k; c++ {
				z := intercept[c]
				for p, j := range row.idx {
					z += coef[c][j] * row.val[p]
				}
				probs[c] = z
			}
			softmaxInPlace(probs)
			for c := 0; c < k; c++ {
				diff := probs[c]
				if c == targets[i] {
					diff--
				}
				gradIntercept[c] += diff
				for p, j := range row.idx {
					gradCoef[c][j] += diff * row.val[p]
				}
			}
		}

		maxGrad := 0.0
		for c := 0; c < k; c++ {
			gradIntercept[c] /= n
			maxGrad = math.Max(maxGrad, math.Abs(gradIntercept[c]))
			for j := range gradCoef[c] {
				gradCoef[c][j] = gradCoef[c][j]/n + lambda*coef[c][j]
				maxGrad = math.Max(maxGrad, math.Abs(gradCoef[c][j]))
			}
		}
		if maxGrad < lr.config.Tol {
			break
		}

		step := lr.config.LearningRate
		for c := 0; c < k; c++ {
			intercept[c] -= step * gradIntercept[c]
			for j := range coef[c] {
				coef[c][j] -= step * gradCoef[c][j]
			}
		}
	}

	lr.Classes = classes
	lr.Coef = coef
	lr.Intercept = intercept
	lr.Scaler = scaler
	lr.Iter = iter
	return nil
}

// PredictProba returns one probability per entry of Classes.
func (lr *LogisticRegression) PredictProba(features []float64) ([]float64, error) {
	if len(lr.Coef) == 0 {
		return nil, errors.New("model not trained")
	}
	if len(features) != len(lr.Coef[0]) {
		return nil, fmt.Errorf("got %d features, model expects %d", len(features), len(lr.Coef[0]))
	}
	if lr.Scaler != nil {
		scaled, err := lr.Scaler.Transform(features)
		if err != nil {
			return nil, err
		}
		features = scaled
	}

	probs := make([]float64, len(lr.Classes))
	for c := range probs {
		z := lr.Intercept[c]
		for j, value := range features {
			if value != 0 {
				z += lr.Coef[c][j] * value
			}
		}
		probs[c] = z
	}
	softmaxInPlace(probs)
	return probs, nil
}

// Predict returns the most probable class and its probability. Ties go to
// the class that sorts first.
func (lr *LogisticRegression) Predict(features []float64) (string, float64, error) {
	probs, err := lr.PredictProba(features)
	if err != nil {
		return "", 0, err
	}
	best := argmax(probs)
	return lr.Classes[best], probs[best], nil
}

func (lr *LogisticRegression) Features() int {
	if len(lr.Coef) == 0 {
		return 0
	}
	return len(lr.Coef[0])
}

func (lr *LogisticRegression) validate() error {
	if len(lr.Classes) < 2 {
		return errors.New("classifier needs at least 2 classes")
	}
	if len(lr.Coef) != len(lr.Classes) || len(lr.Intercept) != len(lr.Classes) {
		return errors.New("coefficient rows do not match classes")
	}
	width := len(lr.Coef[0])
	if width == 0 {
		return errors.New("classifier has zero features")
	}
	for c, row := range lr.Coef {
		if len(row) != width {
			return fmt.Errorf("coefficient row %d has %d entries, want %d", c, len(row), width)
		}
	}
	if lr.Scaler != nil {
		if err := lr.Scaler.validate(); err != nil {
			return err
		}
		if len(lr.Scaler.Mean) != width {
			return errors.New("scaler width does not match coefficients")
		}
	}
	return nil
}

func softmaxInPlace(values []float64) {
	maxValue := math.Inf(-1)
	for _, v := range values {
		maxValue = math.Max(maxValue, v)
	}
	var sum float64
	for i, v := range values {
		values[i] = math.Exp(v - maxValue)
		sum += values[i]
	}
	for i := range values {
		values[i] /= sum
	}
}

func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

func uniqueSorted(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	unique := make([]string, 0)
	for _, label := range labels {
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		unique = append(unique, label)
	}
	sort.Strings(unique)
	return unique
}
