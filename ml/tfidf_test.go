package ml

import (
	"math"
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Paid ₹250 at SWIGGY! a")
	want := []string{"paid", "250", "at", "swiggy"}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("expected %v, got %v", want, tokens)
	}
}

func TestTfidfVectorizerFit(t *testing.T) {
	v := NewTfidfVectorizer(1, 2)
	if err := v.Fit([]string{"pay swiggy", "pay uber"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"pay", "pay swiggy", "pay uber", "swiggy", "uber"}
	if !reflect.DeepEqual(v.Vocabulary, want) {
		t.Fatalf("unexpected vocabulary: %v", v.Vocabulary)
	}
	if v.IDF[0] != 1 {
		t.Fatalf("expected idf 1 for a term in every document, got %f", v.IDF[0])
	}
	expected := math.Log(3.0/2.0) + 1
	if math.Abs(v.IDF[3]-expected) > 1e-12 {
		t.Fatalf("expected idf %f, got %f", expected, v.IDF[3])
	}
}

func TestTfidfVectorizerTransform(t *testing.T) {
	v := NewTfidfVectorizer(1, 2)
	if err := v.Fit([]string{"swiggy dinner order", "uber ride home", "amazon shopping order"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	row, err := v.Transform("Swiggy order tonight")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(row) != v.Features() {
		t.Fatalf("expected %d features, got %d", v.Features(), len(row))
	}
	var sumSquares float64
	for _, value := range row {
		if value < 0 {
			t.Fatalf("negative tf-idf weight %f", value)
		}
		sumSquares += value * value
	}
	if math.Abs(sumSquares-1) > 1e-9 {
		t.Fatalf("expected unit norm, got %f", sumSquares)
	}

	unseen, err := v.Transform("completely novel words")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, value := range unseen {
		if value != 0 {
			t.Fatalf("expected zero vector for unseen text, feature %d = %f", i, value)
		}
	}
}

func TestTfidfVectorizerNotFitted(t *testing.T) {
	v := NewTfidfVectorizer(1, 1)
	if _, err := v.Transform("anything"); err == nil {
		t.Fatal("expected error for unfitted vectorizer")
	}
	if err := v.Fit([]string{"a b c"}); err == nil {
		t.Fatal("expected error when no token survives tokenization")
	}
}
