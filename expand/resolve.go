package expand

import (
	"github.com/agnivade/levenshtein"

	"github.com/hupe1980/semview/model"
)

// MaxSuggestionDistance is the largest edit distance that still yields a
// "did you mean" suggestion.
const MaxSuggestionDistance = 3

// FindDimension returns the first declared dimension whose name matches
// ASCII case-insensitively, or nil.
func FindDimension(def *model.Definition, name string) *model.Dimension {
	for i := range def.Dimensions {
		if equalFoldASCII(def.Dimensions[i].Name, name) {
			return &def.Dimensions[i]
		}
	}
	return nil
}

// FindMetric returns the first declared metric whose name matches ASCII
// case-insensitively, or nil.
func FindMetric(def *model.Definition, name string) *model.Metric {
	for i := range def.Metrics {
		if equalFoldASCII(def.Metrics[i].Name, name) {
			return &def.Metrics[i]
		}
	}
	return nil
}

// SuggestClosest returns the candidate with the smallest case-insensitive
// Levenshtein distance to query, provided that distance is at most
// MaxSuggestionDistance. Ties keep the earliest candidate.
func SuggestClosest(query string, candidates []string) (string, bool) {
	q := lowerASCII(query)
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(q, lowerASCII(c))
		if d > MaxSuggestionDistance {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist >= 0
}

func lowerASCII(s string) string {
	for i := 0; i < len(s); i++ {
		if c := s[i]; 'A' <= c && c <= 'Z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				if 'A' <= b[j] && b[j] <= 'Z' {
					b[j] += 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return s
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
