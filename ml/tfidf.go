package ml

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// TfidfVectorizer turns free text into a fixed-length, L2-normalized
// TF-IDF row. The vocabulary is frozen by Fit; terms outside it are ignored.
type TfidfVectorizer struct {
	NgramMin   int       `json:"ngram_min"`
	NgramMax   int       `json:"ngram_max"`
	Vocabulary []string  `json:"vocabulary"`
	IDF        []float64 `json:"idf"`

	index map[string]int
}

func NewTfidfVectorizer(ngramMin, ngramMax int) *TfidfVectorizer {
	if ngramMin <= 0 {
		ngramMin = 1
	}
	if ngramMax < ngramMin {
		ngramMax = ngramMin
	}
	return &TfidfVectorizer{NgramMin: ngramMin, NgramMax: ngramMax}
}

func (v *TfidfVectorizer) Fit(docs []string) error {
	if len(docs) == 0 {
		return errors.New("no documents to fit")
	}

	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range v.terms(doc) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}
	if len(df) == 0 {
		return errors.New("empty vocabulary; documents contain only stop tokens")
	}

	vocabulary := make([]string, 0, len(df))
	for term := range df {
		vocabulary = append(vocabulary, term)
	}
	sort.Strings(vocabulary)

	n := float64(len(docs))
	idf := make([]float64, len(vocabulary))
	for i, term := range vocabulary {
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	v.Vocabulary = vocabulary
	v.IDF = idf
	v.index = buildIndex(vocabulary)
	return nil
}

func (v *TfidfVectorizer) FitTransform(docs []string) ([][]float64, error) {
	if err := v.Fit(docs); err != nil {
		return nil, err
	}
	rows := make([][]float64, len(docs))
	for i, doc := range docs {
		row, err := v.Transform(doc)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}

// Transform is safe for concurrent use once the vectorizer is fitted or loaded.
func (v *TfidfVectorizer) Transform(doc string) ([]float64, error) {
	if len(v.Vocabulary) == 0 {
		return nil, errors.New("vectorizer not fitted")
	}
	index := v.index
	if index == nil {
		index = buildIndex(v.Vocabulary)
	}

	row := make([]float64, len(v.Vocabulary))
	for _, term := range v.terms(doc) {
		if i, ok := index[term]; ok {
			row[i]++
		}
	}

	var sumSquares float64
	for i, count := range row {
		if count == 0 {
			continue
		}
		row[i] = count * v.IDF[i]
		sumSquares += row[i] * row[i]
	}
	if sumSquares > 0 {
		length := math.Sqrt(sumSquares)
		for i := range row {
			row[i] /= length
		}
	}
	return row, nil
}

func (v *TfidfVectorizer) Features() int {
	return len(v.Vocabulary)
}

func (v *TfidfVectorizer) validate() error {
	if len(v.Vocabulary) == 0 {
		return errors.New("vectorizer has empty vocabulary")
	}
	if len(v.Vocabulary) != len(v.IDF) {
		return errors.New("vocabulary/idf length mismatch")
	}
	if v.NgramMin <= 0 || v.NgramMax < v.NgramMin {
		return errors.New("invalid ngram range")
	}
	v.index = buildIndex(v.Vocabulary)
	return nil
}

func (v *TfidfVectorizer) terms(doc string) []string {
	tokens := Tokenize(doc)
	terms := make([]string, 0, len(tokens)*(v.NgramMax-v.NgramMin+1))
	for n := v.NgramMin; n <= v.NgramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

// Tokenize lowercases and NFKC-normalizes text and returns every run of at
// least two word characters.
func Tokenize(text string) []string {
	// cases.Caser is stateful, so one per call.
	lowered := cases.Lower(language.Und).String(norm.NFKC.String(text))
	return tokenPattern.FindAllString(lowered, -1)
}

func buildIndex(vocabulary []string) map[string]int {
	index := make(map[string]int, len(vocabulary))
	for i, term := range vocabulary {
		index[term] = i
	}
	return index
}
