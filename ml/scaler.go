package ml

import (
	"errors"
	"fmt"
	"math"
)

// StandardScaler removes the per-feature mean and divides by the population
// standard deviation. Constant features keep a scale of 1.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func (s *StandardScaler) Fit(features [][]float64) error {
	if len(features) == 0 {
		return errors.New("features is empty")
	}
	width := len(features[0])
	if width == 0 {
		return errors.New("features have zero width")
	}

	mean := make([]float64, width)
	for i, row := range features {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
		for j, value := range row {
			mean[j] += value
		}
	}
	n := float64(len(features))
	for j := range mean {
		mean[j] /= n
	}

	scale := make([]float64, width)
	for _, row := range features {
		for j, value := range row {
			diff := value - mean[j]
			scale[j] += diff * diff
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] == 0 {
			scale[j] = 1
		}
	}

	s.Mean = mean
	s.Scale = scale
	return nil
}

func (s *StandardScaler) Transform(values []float64) ([]float64, error) {
	if err := s.check(values); err != nil {
		return nil, err
	}
	result := make([]float64, len(values))
	for i, value := range values {
		result[i] = (value - s.Mean[i]) / s.Scale[i]
	}
	return result, nil
}

func (s *StandardScaler) InverseTransform(values []float64) ([]float64, error) {
	if err := s.check(values); err != nil {
		return nil, err
	}
	result := make([]float64, len(values))
	for i, value := range values {
		result[i] = value*s.Scale[i] + s.Mean[i]
	}
	return result, nil
}

func (s *StandardScaler) TransformAll(features [][]float64) ([][]float64, error) {
	result := make([][]float64, len(features))
	for i, row := range features {
		scaled, err := s.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		result[i] = scaled
	}
	return result, nil
}

func (s *StandardScaler) check(values []float64) error {
	if len(s.Mean) == 0 {
		return errors.New("scaler not fitted")
	}
	if len(values) != len(s.Mean) {
		return fmt.Errorf("got %d features, scaler expects %d", len(values), len(s.Mean))
	}
	return nil
}

func (s *StandardScaler) validate() error {
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return errors.New("scaler mean/scale length mismatch")
	}
	for i, scale := range s.Scale {
		if scale == 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
			return fmt.Errorf("invalid scale %v for feature %d", scale, i)
		}
	}
	return nil
}
