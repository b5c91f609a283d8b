package notify

import (
	"fmt"
	"strings"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// OpportunityOpened formats a newly detected cross-venue spread.
func OpportunityOpened(o domain.Opportunity) (title, message string) {
	title = fmt.Sprintf("New spread %d¢", o.Spread)
	var b strings.Builder
	fmt.Fprintf(&b, "Kalshi: %s (%s) @ %d¢\n", o.TitleA, o.IDA, o.PriceA)
	fmt.Fprintf(&b, "Polymarket: %s (%s) @ %d¢\n", o.TitleB, o.IDB, o.PriceB)
	fmt.Fprintf(&b, "%s, $%s per $100", o.Direction.Label(), o.ProfitPer100.StringFixed(2))
	return title, b.String()
}

// OpportunityClosed formats the closure of a tracked spread.
func OpportunityClosed(o domain.Opportunity) (title, message string) {
	title = fmt.Sprintf("Spread closed %s", o.Key)
	dur := "?"
	if o.DurationMinutes != nil {
		dur = fmt.Sprintf("%d min", *o.DurationMinutes)
	}
	return title, fmt.Sprintf("%s | %s, was %d¢, lasted %s", o.TitleA, o.TitleB, o.Spread, dur)
}

// AlertTriggered formats a triggered alert.
func AlertTriggered(a domain.Alert, price int) (title, message string) {
	if a.Arb != nil {
		return a.MarketName, fmt.Sprintf("%s, Kalshi %d¢ vs Polymarket %d¢",
			a.Arb.Direction, a.Arb.PriceA, a.Arb.PriceB)
	}
	return "Alert triggered", fmt.Sprintf("%s is %d¢ (target: %s %d¢)",
		a.MarketName, price, a.Condition, a.TargetPrice)
}

// ScanError formats a failed scan cycle.
func ScanError(err error) (title, message string) {
	return "Scan failed", err.Error()
}
