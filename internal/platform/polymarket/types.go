package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string. Empty or
// unparseable strings decode as 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, _ = strconv.ParseFloat(strings.TrimSpace(s), 64)
	*f = flexFloat(n)
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIEvent represents an event as returned by the Polymarket Gamma API.
// An event groups one or more related markets.
type APIEvent struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Slug      string      `json:"slug"`
	Active    flexBool    `json:"active"`
	Closed    flexBool    `json:"closed"`
	Volume24h flexFloat   `json:"volume24hr"`
	Markets   []APIMarket `json:"markets"`
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID             string    `json:"id"`
	Question       string    `json:"question"`
	GroupItemTitle string    `json:"groupItemTitle"`
	Slug           string    `json:"slug"`
	Active         flexBool  `json:"active"`
	Closed         flexBool  `json:"closed"`
	Outcomes       string    `json:"outcomes"`      // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	OutcomePrices  string    `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.5\",\"0.5\"]"
	Volume         flexFloat `json:"volume"`
	Volume24h      flexFloat `json:"volume24hr"`
	LiquidityNum   flexFloat `json:"liquidityNum"`
	EndDate        string    `json:"endDate"`
}

// Prices decodes OutcomePrices into cents, one per outcome. Entries that do
// not parse are 0; a malformed list yields nil.
func (m APIMarket) Prices() []int {
	if m.OutcomePrices == "" {
		return nil
	}
	var raw []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &raw); err != nil {
		var nums []float64
		if err := json.Unmarshal([]byte(m.OutcomePrices), &nums); err != nil {
			return nil
		}
		for _, n := range nums {
			raw = append(raw, strconv.FormatFloat(n, 'f', -1, 64))
		}
	}
	out := make([]int, len(raw))
	for i, s := range raw {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			continue
		}
		out[i] = toCents(f)
	}
	return out
}
