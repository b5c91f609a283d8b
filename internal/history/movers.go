package history

import (
	"cmp"
	"slices"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// DefaultTopMovers is the number of movers returned by the view.
const DefaultTopMovers = 5

// TopMovers ranks quotes by the absolute size of their delta and returns the
// top k. Quotes with no delta or a zero delta are skipped; ties keep input
// order.
func TopMovers(quotes []domain.Quote, k int) []domain.Mover {
	movers := make([]domain.Mover, 0, len(quotes))
	for _, q := range quotes {
		if q.Delta == nil || *q.Delta == 0 {
			continue
		}
		movers = append(movers, domain.Mover{
			Venue:    q.Venue,
			ID:       q.ID,
			Title:    q.Title,
			YesPrice: q.YesPrice,
			Delta:    *q.Delta,
		})
	}
	slices.SortStableFunc(movers, func(a, b domain.Mover) int {
		return cmp.Compare(abs(b.Delta), abs(a.Delta))
	})
	if k >= 0 && len(movers) > k {
		movers = movers[:k]
	}
	return movers
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
