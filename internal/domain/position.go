package domain

import "github.com/shopspring/decimal"

// PortfolioPosition is one holding in the Kalshi portfolio view. Prices are in
// cents; PnL is in dollars.
type PortfolioPosition struct {
	Ticker        string          `json:"ticker"`
	Market        string          `json:"market"`
	Side          string          `json:"side"` // "Yes" or "No"
	Qty           int64           `json:"qty"`
	AvgPrice      int             `json:"avg_price"`
	CurrentPrice  int             `json:"current_price"`
	RestingOrders int64           `json:"resting_orders"`
	PnL           decimal.Decimal `json:"pnl"`
}

// Portfolio aggregates positions with P&L. Live is false when the mock
// portfolio is shown because the venue account is not configured or
// unreachable.
type Portfolio struct {
	Live       bool                `json:"live"`
	Positions  []PortfolioPosition `json:"positions"`
	TotalPnL   decimal.Decimal     `json:"total_pnl"`
	TotalValue decimal.Decimal     `json:"total_value"`
	WinRate    int                 `json:"win_rate"`
}
