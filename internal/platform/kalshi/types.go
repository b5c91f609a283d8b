package kalshi

// --------------------------------------------------------------------------
// Kalshi API DTOs
// --------------------------------------------------------------------------

// KalshiEvent is an event as returned by GET /events with nested markets.
type KalshiEvent struct {
	EventTicker  string         `json:"event_ticker"`
	SeriesTicker string         `json:"series_ticker"`
	Title        string         `json:"title"`
	SubTitle     string         `json:"sub_title"`
	Category     string         `json:"category"`
	Markets      []KalshiMarket `json:"markets"`
}

// KalshiMarket represents a market as returned by the Kalshi REST API. Prices
// are in cents.
type KalshiMarket struct {
	Ticker       string  `json:"ticker"`
	EventTicker  string  `json:"event_ticker"`
	Title        string  `json:"title"`
	Subtitle     string  `json:"subtitle"`
	Status       string  `json:"status"` // "open", "closed", "settled"
	YesBid       float64 `json:"yes_bid"`
	YesAsk       float64 `json:"yes_ask"`
	NoBid        float64 `json:"no_bid"`
	NoAsk        float64 `json:"no_ask"`
	LastPrice    float64 `json:"last_price"`
	Volume       float64 `json:"volume"`
	Volume24H    float64 `json:"volume_24h"`
	OpenInterest float64 `json:"open_interest"`
	Liquidity    float64 `json:"liquidity"`
	OpenTime     string  `json:"open_time"`
	CloseTime    string  `json:"close_time"`
	Result       string  `json:"result"` // "yes", "no", "" (unsettled)
}

// KalshiMarketPosition is one entry of GET /portfolio/positions.
type KalshiMarketPosition struct {
	Ticker             string  `json:"ticker"`
	Position           int64   `json:"position"` // >0 yes contracts, <0 no contracts
	TotalTraded        float64 `json:"total_traded"`
	MarketExposure     float64 `json:"market_exposure"`
	RealizedPnl        float64 `json:"realized_pnl"`
	RestingOrdersCount int64   `json:"resting_orders_count"`
	FeesPaid           float64 `json:"fees_paid"`
}

// KalshiPositionsResponse is the body of GET /portfolio/positions.
type KalshiPositionsResponse struct {
	MarketPositions []KalshiMarketPosition `json:"market_positions"`
	Cursor          string                 `json:"cursor"`
}

// KalshiBalanceResponse is the body of GET /portfolio/balance. Balance is in
// cents.
type KalshiBalanceResponse struct {
	Balance int64 `json:"balance"`
}

// KalshiErrorResponse represents a Kalshi API error response.
type KalshiErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
