package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Alert conditions.
const (
	ConditionAbove  = "above"
	ConditionBelow  = "below"
	ConditionSpread = "spread ≥"
)

// ArbMarketID is the MarketID carried by alerts created from opportunities.
const ArbMarketID = "arb"

// AlertEvent is the one-shot notification emitted when an opportunity opens.
type AlertEvent struct {
	OpportunityKey string          `json:"opportunity_key"`
	CounterpartID  string          `json:"counterpart_id"`
	Title          string          `json:"title"`
	Spread         int             `json:"spread"`
	Direction      Direction       `json:"direction"`
	PriceA         int             `json:"price_a"`
	PriceB         int             `json:"price_b"`
	ProfitPer100   decimal.Decimal `json:"profit_per_100"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ArbData carries the opportunity snapshot attached to an arbitrage alert.
type ArbData struct {
	OpportunityKey string          `json:"opportunity_key"`
	PriceA         int             `json:"price_a"`
	PriceB         int             `json:"price_b"`
	Direction      string          `json:"direction"`
	ProfitPer100   decimal.Decimal `json:"profit_per_100"`
}

// Alert is an entry of the alert list. Manual alerts watch one instrument's
// price; arbitrage alerts are created already triggered.
type Alert struct {
	ID          string     `json:"id"`
	MarketID    string     `json:"market_id"`
	MarketName  string     `json:"market_name"`
	RefID       string     `json:"ref_id"`
	Condition   string     `json:"condition"`
	TargetPrice int        `json:"target_price"`
	Triggered   bool       `json:"triggered"`
	TriggeredAt *time.Time `json:"triggered_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	Arb         *ArbData   `json:"arb_data,omitempty"`
}

// Hit reports whether price satisfies the alert's condition.
func (a Alert) Hit(price int) bool {
	switch a.Condition {
	case ConditionAbove:
		return price >= a.TargetPrice
	case ConditionBelow:
		return price <= a.TargetPrice
	default:
		return false
	}
}
