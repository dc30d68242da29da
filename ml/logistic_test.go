package ml

import (
	"math"
	"testing"
)

func TestLogisticRegressionText(t *testing.T) {
	docs := []string{
		"swiggy dinner",
		"zomato lunch",
		"uber ride",
		"ola cab",
	}
	labels := []string{"Food", "Food", "Transport", "Transport"}

	v := NewTfidfVectorizer(1, 2)
	rows, err := v.FitTransform(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	model := NewLogisticRegression(LogisticConfig{MaxIter: 1000})
	if err := model.Fit(rows, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(model.Classes) != 2 || model.Classes[0] != "Food" || model.Classes[1] != "Transport" {
		t.Fatalf("unexpected classes: %v", model.Classes)
	}

	for i, doc := range docs {
		row, _ := v.Transform(doc)
		label, confidence, err := model.Predict(row)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if label != labels[i] {
			t.Fatalf("doc %q: expected %s, got %s", doc, labels[i], label)
		}
		if confidence < 0.5 || confidence > 1 {
			t.Fatalf("confidence out of range: %f", confidence)
		}
	}
}

func TestLogisticRegressionStandardized(t *testing.T) {
	features := [][]float64{
		{10, 30, 500},
		{12, 28, 450},
		{15, 25, 600},
		{150, 5, 8000},
		{180, 3, 9000},
		{160, 4, 7000},
	}
	labels := []string{"Low", "Low", "Low", "High", "High", "High"}

	model := NewLogisticRegression(LogisticConfig{MaxIter: 500, Standardize: true})
	if err := model.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.Scaler == nil {
		t.Fatal("expected fitted scaler")
	}

	label, _, err := model.Predict([]float64{11, 29, 520})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != "Low" {
		t.Fatalf("expected Low, got %s", label)
	}
	label, _, err = model.Predict([]float64{170, 4, 8500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != "High" {
		t.Fatalf("expected High, got %s", label)
	}

	probs, err := model.PredictProba([]float64{-5, 0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sum float64
	for _, p := range probs {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("expected probabilities to sum to 1, got %f", sum)
	}
}

func TestLogisticRegressionErrors(t *testing.T) {
	model := NewLogisticRegression(DefaultLogisticConfig())
	if _, _, err := model.Predict([]float64{1}); err == nil {
		t.Fatal("expected error for untrained model")
	}
	if err := model.Fit([][]float64{{1}, {2}}, []string{"a", "a"}); err == nil {
		t.Fatal("expected error for a single class")
	}
	if err := model.Fit([][]float64{{1}, {2}}, []string{"a"}); err == nil {
		t.Fatal("expected error for size mismatch")
	}
	if err := model.Fit([][]float64{{1}, {2}}, []string{"a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := model.Predict([]float64{1, 2}); err == nil {
		t.Fatal("expected error for wrong feature count")
	}
}
