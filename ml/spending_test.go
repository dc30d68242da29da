package ml

import (
	"math"
	"math/rand"
	"strconv"
	"testing"
)

func TestSpendingTopCategory(t *testing.T) {
	tests := []struct {
		name       string
		spending   Spending
		category   string
		percentage float64
	}{
		{"food dominant", Spending{Food: 100, Shopping: 50, Transport: 25, Utilities: 25}, "food", 50},
		{"all zero", Spending{}, "food", 0},
		{"tie resolves to earlier category", Spending{Shopping: 40, Utilities: 40, Transport: 20}, "shopping", 40},
		{"thirds", Spending{Food: 1, Shopping: 1, Transport: 1}, "food", 33.33},
		{"two thirds", Spending{Transport: 2, Utilities: 1}, "transport", 66.67},
		{"single category", Spending{Utilities: 12.5}, "utilities", 100},
		{"exact tie 40.625 goes to even", Spending{Food: 13, Shopping: 10, Transport: 5, Utilities: 4}, "food", 40.62},
		{"exact tie 28.125 goes to even", Spending{Food: 9, Shopping: 8, Transport: 8, Utilities: 7}, "food", 28.12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, _ := tt.spending.TopCategory()
			if category != tt.category {
				t.Errorf("TopCategory() = %q, want %q", category, tt.category)
			}
			if got := tt.spending.TopCategoryPercentage(); got != tt.percentage {
				t.Errorf("TopCategoryPercentage() = %v, want %v", got, tt.percentage)
			}
		})
	}
}

func TestTopCategoryPercentageRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	amount := func() float64 {
		if rng.Intn(5) == 0 {
			return 0
		}
		return float64(rng.Intn(100000)) / 100
	}

	for i := 0; i < 2000; i++ {
		s := Spending{Food: amount(), Shopping: amount(), Transport: amount(), Utilities: amount()}
		got := s.TopCategoryPercentage()

		values := []float64{s.Food, s.Shopping, s.Transport, s.Utilities}
		top, total := values[0], 0.0
		for _, v := range values {
			total += v
			if v > top {
				top = v
			}
		}
		if total == 0 {
			if got != 0 {
				t.Fatalf("%+v: expected 0 for zero spending, got %v", s, got)
			}
			continue
		}

		exact := top / total * 100
		want, _ := strconv.ParseFloat(strconv.FormatFloat(exact, 'f', 2, 64), 64)
		if got != want {
			t.Fatalf("%+v: expected %v, got %v", s, want, got)
		}
		if got < 0 || got > 100 || math.Abs(got-exact) > 0.005+1e-9 {
			t.Fatalf("%+v: %v is not %v rounded to two decimals", s, got, exact)
		}
	}
}

func TestSpenderLabel(t *testing.T) {
	tests := []struct {
		name     string
		centroid []float64
		want     string
	}{
		{"balanced", []float64{100, 95, 90, 80}, "Balanced spender"},
		{"shopping heavy", []float64{10, 100, 10, 10}, "Shopping-heavy spender"},
		{"utilities heavy", []float64{10, 10, 10, 90}, "Utilities-heavy spender"},
		{"tie picks first", []float64{100, 100, 0, 0}, "Food-heavy spender"},
		{"zero centroid", []float64{0, 0, 0, 0}, "Balanced spender"},
		{"negative centroid", []float64{-3, -1, -2, -5}, "Balanced spender"},
		{"spread at threshold", []float64{100, 75, 80, 90}, "Food-heavy spender"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SpenderLabel(tt.centroid); got != tt.want {
				t.Errorf("SpenderLabel(%v) = %q, want %q", tt.centroid, got, tt.want)
			}
		})
	}
}

func TestClusterModelAssign(t *testing.T) {
	scaler := &StandardScaler{Mean: []float64{0, 0, 0, 0}, Scale: []float64{1, 1, 1, 1}}
	km := &KMeans{Centroids: [][]float64{
		{10, 10, 10, 10},
		{100, 0, 0, 0},
	}}
	model, err := NewClusterModel(scaler, km)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.Labels[0] != "Balanced spender" || model.Labels[1] != "Food-heavy spender" {
		t.Fatalf("unexpected labels: %v", model.Labels)
	}

	assignment, err := model.Assign(Spending{Food: 90, Shopping: 5, Transport: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assignment.ClusterID != 1 || assignment.SpenderType != "Food-heavy spender" {
		t.Fatalf("unexpected assignment: %+v", assignment)
	}
	if assignment.TopCategory != "food" || assignment.TopCategoryPercentage != 90 {
		t.Fatalf("unexpected top category: %+v", assignment)
	}
}
