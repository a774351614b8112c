package models

import "time"

// PricePoint is a mirrored snapshot of the latest close after a history refresh.
type PricePoint struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Samples    int       `json:"samples"`
	TradingDay string    `json:"tradingDay"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"createdAt"`
}
