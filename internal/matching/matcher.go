package matching

import (
	"cmp"
	"slices"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// DefaultThreshold is the similarity a pair of titles must reach to match.
const DefaultThreshold = 0.4

// Pairs returns every cross-venue pair whose titles reach threshold, regardless
// of spread. Every instrument of a is compared with every instrument of b, so
// one instrument may appear in several pairs. Output order follows a, then b.
func Pairs(a, b []domain.Instrument, threshold float64) []domain.MatchCandidate {
	var out []domain.MatchCandidate
	for _, ia := range a {
		for _, ib := range b {
			sim := Similarity(ia.Title, ib.Title)
			if sim < threshold {
				continue
			}
			out = append(out, candidate(ia, ib, sim))
		}
	}
	return out
}

// Match returns the pairs of a and b that reach threshold and whose spread is
// at least minSpread cents.
func Match(a, b []domain.Instrument, threshold float64, minSpread int) []domain.MatchCandidate {
	return FilterSpread(Pairs(a, b, threshold), minSpread)
}

// FilterSpread keeps the candidates whose spread is at least minSpread.
func FilterSpread(pairs []domain.MatchCandidate, minSpread int) []domain.MatchCandidate {
	var out []domain.MatchCandidate
	for _, p := range pairs {
		if p.Spread >= minSpread {
			out = append(out, p)
		}
	}
	return out
}

// SortBySpread orders candidates by descending spread, keeping the input order
// among equal spreads.
func SortBySpread(pairs []domain.MatchCandidate) {
	slices.SortStableFunc(pairs, func(x, y domain.MatchCandidate) int {
		return cmp.Compare(y.Spread, x.Spread)
	})
}

func candidate(a, b domain.Instrument, sim float64) domain.MatchCandidate {
	spread := a.YesPrice - b.YesPrice
	dir := domain.BuyASellB
	if spread > 0 {
		dir = domain.BuyBSellA
	} else {
		spread = -spread
	}
	return domain.MatchCandidate{
		IDA:        a.ID,
		IDB:        b.ID,
		TitleA:     a.Title,
		TitleB:     b.Title,
		PriceA:     a.YesPrice,
		PriceB:     b.YesPrice,
		Similarity: sim,
		Spread:     spread,
		Direction:  dir,
	}
}
