package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells which venue to buy and which to sell.
type Direction string

const (
	// BuyASellB buys on venue A (Kalshi) and sells on venue B (Polymarket).
	BuyASellB Direction = "BuyA_SellB"
	// BuyBSellA buys on venue B (Polymarket) and sells on venue A (Kalshi).
	BuyBSellA Direction = "BuyB_SellA"
)

// Label returns the human-readable trade direction.
func (d Direction) Label() string {
	if d == BuyBSellA {
		return "Buy Poly / Sell Kalshi"
	}
	return "Buy Kalshi / Sell Poly"
}

// OpportunityStatus is the lifecycle state of an Opportunity.
type OpportunityStatus string

const (
	OpportunityOpen   OpportunityStatus = "open"
	OpportunityClosed OpportunityStatus = "closed"
)

// PairKey builds the ledger key for a matched pair.
func PairKey(idA, idB string) string {
	return idA + "|" + idB
}

// MatchCandidate pairs one venue-A instrument with one venue-B instrument.
type MatchCandidate struct {
	IDA        string    `json:"id_a"`
	IDB        string    `json:"id_b"`
	TitleA     string    `json:"title_a"`
	TitleB     string    `json:"title_b"`
	PriceA     int       `json:"price_a"`
	PriceB     int       `json:"price_b"`
	Similarity float64   `json:"similarity"`
	Spread     int       `json:"spread"`
	Direction  Direction `json:"direction"`
}

// Key returns the ledger key of the candidate's pair.
func (c MatchCandidate) Key() string {
	return PairKey(c.IDA, c.IDB)
}

// ProfitPer100 returns the gross profit in dollars per $100 deployed for a
// spread quoted in cents, rounded to cents.
func ProfitPer100(spread int) decimal.Decimal {
	return decimal.NewFromInt(int64(spread)).
		Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

// Opportunity is a tracked, lifecycle-managed record of one matched pair whose
// spread crossed the configured minimum.
type Opportunity struct {
	ID                 string            `json:"id"`
	Key                string            `json:"key"`
	TitleA             string            `json:"title_a"`
	TitleB             string            `json:"title_b"`
	IDA                string            `json:"id_a"`
	IDB                string            `json:"id_b"`
	PriceA             int               `json:"price_a"`
	PriceB             int               `json:"price_b"`
	Spread             int               `json:"spread"`
	Direction          Direction         `json:"direction"`
	Similarity         float64           `json:"similarity"`
	ProfitPer100       decimal.Decimal   `json:"profit_per_100"`
	DetectionMinSpread int               `json:"detection_min_spread"`
	Status             OpportunityStatus `json:"status"`
	DetectedAt         time.Time         `json:"detected_at"`
	ClosedAt           *time.Time        `json:"closed_at"`
	DurationMinutes    *int              `json:"duration_minutes"`
}

// IsOpen reports whether the opportunity is still open.
func (o Opportunity) IsOpen() bool {
	return o.Status == OpportunityOpen
}
