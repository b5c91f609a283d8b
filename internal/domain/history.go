package domain

import "time"

// PriceSample is one observation in an instrument's price history.
type PriceSample struct {
	T time.Time `json:"t"`
	P int       `json:"p"`
}

// Mover is an instrument ranked by the size of its latest price change.
type Mover struct {
	Venue    Venue  `json:"venue"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	YesPrice int    `json:"yes_price"`
	Delta    int    `json:"delta"`
}
