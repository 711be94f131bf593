package resolve

import (
	"math"
	"strings"
	"unicode"
)

const vectorDimensions = 128

// levenshtein computes the edit distance between two strings by runes.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// levenshteinSimilarity normalizes edit distance into [0,1]. Two empty
// strings are fully similar.
func levenshteinSimilarity(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

// jaccardSimilarity compares the whitespace-tokenized forms of two names.
func jaccardSimilarity(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 1.0
	}

	setA := make(map[string]struct{}, len(tokensA))
	for _, t := range tokensA {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tokensB))
	for _, t := range tokensB {
		setB[t] = struct{}{}
	}

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

// nameSimilarity blends edit-distance and token-overlap similarity into
// a single score used by the fuzzy stage.
func nameSimilarity(a, b string) float64 {
	return (levenshteinSimilarity(a, b) + jaccardSimilarity(a, b)) / 2.0
}

// descriptionVector hashes a description into a fixed-dimension
// bag-of-words vector. Tokens are lowercased, split on non-letter,
// non-digit boundaries, and bucketed by a polynomial hash (base 31).
func descriptionVector(text string) [vectorDimensions]float64 {
	var vec [vectorDimensions]float64

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, token := range tokens {
		hash := uint32(0)
		for _, r := range token {
			hash = hash*31 + uint32(r)
		}
		vec[hash%vectorDimensions]++
	}

	return vec
}

// cosineSimilarity compares two hashed description vectors. A zero vector
// is never similar to anything.
func cosineSimilarity(a, b [vectorDimensions]float64) float64 {
	dot := 0.0
	normA := 0.0
	normB := 0.0
	for i := 0; i < vectorDimensions; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// descriptionSimilarity is the semantic-stage score for two descriptions.
func descriptionSimilarity(a, b string) float64 {
	return cosineSimilarity(descriptionVector(a), descriptionVector(b))
}
