// Package textsim scores how alike two short strings are.
package textsim

import "strings"

// Dice is the Sørensen–Dice coefficient over character bigrams, compared
// case-insensitively. Bigram multiplicity counts. Equal strings score 1;
// empty strings and strings shorter than two characters score 0 unless equal.
func Dice(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	s := []rune(strings.ToLower(a))
	t := []rune(strings.ToLower(b))
	if string(s) == string(t) {
		return 1
	}
	if len(s) < 2 || len(t) < 2 {
		return 0
	}

	as := bigrams(s)
	bs := bigrams(t)

	intersection := 0
	for g, n := range as {
		if m, ok := bs[g]; ok {
			intersection += min(n, m)
		}
	}
	total := (len(s) - 1) + (len(t) - 1)
	return float64(2*intersection) / float64(total)
}

func bigrams(r []rune) map[[2]rune]int {
	out := make(map[[2]rune]int, len(r))
	for i := 0; i+1 < len(r); i++ {
		out[[2]rune{r[i], r[i+1]}]++
	}
	return out
}

// Best returns the candidate most similar to s and its score. Ties keep the
// earlier candidate. An empty candidate list scores 0.
func Best(s string, candidates []string) (string, float64) {
	best, score := "", 0.0
	for _, c := range candidates {
		if d := Dice(s, c); d > score {
			best, score = c, d
		}
	}
	return best, score
}
