package ml

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// SpendingCategories is the fixed feature order of every spending vector.
// Ties between categories always resolve to the earliest entry.
var SpendingCategories = [4]string{"food", "shopping", "transport", "utilities"}

var categoryTitles = [4]string{"Food", "Shopping", "Transport", "Utilities"}

const (
	balancedSpender  = "Balanced spender"
	balancedSpread   = 0.25
	heavySpenderForm = "%s-heavy spender"
)

type Spending struct {
	Food      float64
	Shopping  float64
	Transport float64
	Utilities float64
}

func (s Spending) Vector() []float64 {
	return []float64{s.Food, s.Shopping, s.Transport, s.Utilities}
}

func (s Spending) Total() float64 {
	return s.Food + s.Shopping + s.Transport + s.Utilities
}

// TopCategory returns the category with the largest amount and that amount.
func (s Spending) TopCategory() (string, float64) {
	values := s.Vector()
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return SpendingCategories[best], values[best]
}

// TopCategoryPercentage is the top category's share of the total, in percent
// rounded to two decimals. It is 0 when nothing was spent.
func (s Spending) TopCategoryPercentage() float64 {
	total := s.Total()
	if total <= 0 {
		return 0
	}
	_, top := s.TopCategory()
	return roundHalfEven(top/total*100, 2)
}

// roundHalfEven rounds the exact binary value of x; ties go to the even digit.
func roundHalfEven(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return decimal.RequireFromString(strconv.FormatFloat(x, 'f', places, 64)).InexactFloat64()
}

// SpenderLabel names a cluster from its centroid in original (unscaled) units.
func SpenderLabel(centroid []float64) string {
	if len(centroid) == 0 {
		return balancedSpender
	}
	maxValue, minValue := centroid[0], centroid[0]
	for _, value := range centroid[1:] {
		maxValue = math.Max(maxValue, value)
		minValue = math.Min(minValue, value)
	}
	if maxValue <= 0 {
		return balancedSpender
	}
	if (maxValue-minValue)/maxValue < balancedSpread {
		return balancedSpender
	}
	dominant := argmax(centroid)
	if dominant >= len(categoryTitles) {
		return fmt.Sprintf(heavySpenderForm, fmt.Sprintf("Feature%d", dominant))
	}
	return fmt.Sprintf(heavySpenderForm, categoryTitles[dominant])
}

// ClusterModel bundles everything the cluster endpoint needs: the scaler fitted
// on raw spending, the k-means partition in scaled space, and one label per cluster.
type ClusterModel struct {
	Scaler *StandardScaler `json:"scaler"`
	KMeans *KMeans         `json:"kmeans"`
	Labels []string        `json:"labels"`
}

type ClusterAssignment struct {
	ClusterID             int
	SpenderType           string
	TopCategory           string
	TopCategoryPercentage float64
}

// NewClusterModel derives the label table from the fitted scaler and k-means.
func NewClusterModel(scaler *StandardScaler, km *KMeans) (*ClusterModel, error) {
	if scaler == nil || km == nil {
		return nil, errors.New("scaler and k-means are required")
	}
	labels := make([]string, len(km.Centroids))
	for i, centroid := range km.Centroids {
		original, err := scaler.InverseTransform(centroid)
		if err != nil {
			return nil, fmt.Errorf("centroid %d: %w", i, err)
		}
		labels[i] = SpenderLabel(original)
	}
	return &ClusterModel{Scaler: scaler, KMeans: km, Labels: labels}, nil
}

// Centroids returns the cluster centers in original spending units.
func (m *ClusterModel) Centroids() ([][]float64, error) {
	centroids := make([][]float64, len(m.KMeans.Centroids))
	for i, centroid := range m.KMeans.Centroids {
		original, err := m.Scaler.InverseTransform(centroid)
		if err != nil {
			return nil, err
		}
		centroids[i] = original
	}
	return centroids, nil
}

func (m *ClusterModel) Assign(spending Spending) (ClusterAssignment, error) {
	scaled, err := m.Scaler.Transform(spending.Vector())
	if err != nil {
		return ClusterAssignment{}, err
	}
	clusterID, err := m.KMeans.Predict(scaled)
	if err != nil {
		return ClusterAssignment{}, err
	}
	if clusterID >= len(m.Labels) {
		return ClusterAssignment{}, fmt.Errorf("no label for cluster %d", clusterID)
	}
	top, _ := spending.TopCategory()
	return ClusterAssignment{
		ClusterID:             clusterID,
		SpenderType:           m.Labels[clusterID],
		TopCategory:           top,
		TopCategoryPercentage: spending.TopCategoryPercentage(),
	}, nil
}

func (m *ClusterModel) validate() error {
	if m.Scaler == nil || m.KMeans == nil {
		return errors.New("cluster bundle is missing scaler or k-means")
	}
	if err := m.Scaler.validate(); err != nil {
		return err
	}
	if err := m.KMeans.validate(); err != nil {
		return err
	}
	if len(m.Scaler.Mean) != len(SpendingCategories) || len(m.KMeans.Centroids[0]) != len(SpendingCategories) {
		return fmt.Errorf("cluster bundle must have %d features", len(SpendingCategories))
	}
	if len(m.Labels) != len(m.KMeans.Centroids) {
		return fmt.Errorf("label table has %d entries for %d clusters", len(m.Labels), len(m.KMeans.Centroids))
	}
	return nil
}
