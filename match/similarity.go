package match

import (
	"strings"

	"github.com/tunelift/tunelift/types"
)

const (
	titleWeight      = 0.6
	artistWeight     = 0.4
	similarityFactor = 1000
)

// tokenize lowercases s and splits it into tokens on spaces, slashes,
// hyphens, underscores and middle dots.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		switch r {
		case ' ', '/', '-', '_', '·', '・':
			return true
		}
		return false
	})
}

// jaccard computes the token-set Jaccard similarity of two token lists.
// Two empty sets count as identical.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// similarity blends title and artist similarity between a track and a
// candidate.
func similarity(track types.Track, cand types.Candidate) float64 {
	title := jaccard(tokenize(track.Name), tokenize(cand.Title))
	artist := jaccard(tokenize(track.Artists()), tokenize(strings.Join(cand.Artists, " / ")))
	return titleWeight*title + artistWeight*artist
}

// score rates a candidate against a track; lower is better. The duration gap
// in milliseconds is offset by a similarity bonus.
func score(track types.Track, cand types.Candidate) float64 {
	var diff float64
	if track.DurationMs > 0 {
		d := cand.DurationMs - track.DurationMs
		if d < 0 {
			d = -d
		}
		diff = float64(d)
	}
	return diff - similarityFactor*similarity(track, cand)
}
