package similarity

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/floats"
)

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns 0 for mismatched lengths, empty input or zero vectors.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	magA := math.Sqrt(floats.Dot(a, a))
	magB := math.Sqrt(floats.Dot(b, b))
	if magA == 0 || magB == 0 {
		return 0
	}

	return floats.Dot(a, b) / (magA * magB)
}

// TermVectors builds aligned term-frequency vectors for two texts over the
// union of their vocabularies
func TermVectors(a, b string) ([]float64, []float64) {
	tfA := termFrequencies(a)
	tfB := termFrequencies(b)

	vocab := make([]string, 0, len(tfA)+len(tfB))
	for term := range tfA {
		vocab = append(vocab, term)
	}
	for term := range tfB {
		if _, ok := tfA[term]; !ok {
			vocab = append(vocab, term)
		}
	}
	sort.Strings(vocab)

	va := make([]float64, len(vocab))
	vb := make([]float64, len(vocab))
	for i, term := range vocab {
		va[i] = tfA[term]
		vb[i] = tfB[term]
	}

	return va, vb
}

// TextSimilarity is the term-frequency cosine similarity of two texts
func TextSimilarity(a, b string) float64 {
	va, vb := TermVectors(a, b)
	return CosineSimilarity(va, vb)
}

func termFrequencies(text string) map[string]float64 {
	tf := make(map[string]float64)
	for _, token := range tokenize(text) {
		tf[token]++
	}
	return tf
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})
}
