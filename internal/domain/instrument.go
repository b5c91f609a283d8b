package domain

// Venue identifies one of the two prediction-market platforms.
type Venue string

const (
	VenueKalshi     Venue = "kalshi"
	VenuePolymarket Venue = "polymarket"
)

// HistoryPrefix returns the key prefix used for price history entries of
// instruments listed on this venue.
func (v Venue) HistoryPrefix() string {
	switch v {
	case VenueKalshi:
		return "k:"
	case VenuePolymarket:
		return "p:"
	default:
		return string(v) + ":"
	}
}

// HistoryKey returns the price history key for an instrument id on this venue.
func (v Venue) HistoryKey(id string) string {
	return v.HistoryPrefix() + id
}

// Instrument is a single venue contract after canonicalization. YesPrice is in
// integer cents; 0 means no reliable quote.
type Instrument struct {
	Venue       Venue   `json:"venue"`
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	YesPrice    int     `json:"yes_price"`
	NoPrice     int     `json:"no_price,omitempty"`
	Volume      float64 `json:"volume"`
	Volume24h   float64 `json:"volume_24h,omitempty"`
	Liquidity   float64 `json:"liquidity,omitempty"`
	EventTicker string  `json:"event_ticker,omitempty"`
}

// HistoryKey returns the price history key for the instrument.
func (i Instrument) HistoryKey() string {
	return i.Venue.HistoryKey(i.ID)
}

// Quote is an instrument enriched with its cycle-over-cycle price change.
// Delta is nil on the first sighting of the instrument.
type Quote struct {
	Instrument
	Delta     *int   `json:"delta"`
	Sparkline string `json:"sparkline,omitempty"`
}
