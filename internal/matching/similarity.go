// Package matching pairs instruments across venues by title overlap and
// computes the price spread of each pair.
package matching

import "strings"

// minTokenLen is the exclusive lower bound on the length of a token that
// counts towards similarity.
const minTokenLen = 2

// Normalize lowercases s, drops every character outside [a-z0-9 ] and
// collapses runs of spaces.
func Normalize(s string) string {
	lower := strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the normalized tokens of s.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// significant returns the distinct tokens of toks longer than minTokenLen.
func significant(toks []string) map[string]struct{} {
	out := make(map[string]struct{}, len(toks))
	for _, tok := range toks {
		if len(tok) > minTokenLen {
			out[tok] = struct{}{}
		}
	}
	return out
}

// Similarity scores the lexical overlap of two titles in [0,1]: the number of
// distinct tokens longer than two characters that the titles share, divided
// by the larger total token count. Short tokens only dilute the score, so a
// title is fully similar to itself only when every token is significant. Two
// empty titles score 0.
func Similarity(a, b string) float64 {
	toksA, toksB := Tokens(a), Tokens(b)
	denom := max(len(toksA), len(toksB))
	if denom == 0 {
		return 0
	}
	sa, sb := significant(toksA), significant(toksB)
	if len(sb) < len(sa) {
		sa, sb = sb, sa
	}
	shared := 0
	for tok := range sa {
		if _, ok := sb[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(denom)
}
