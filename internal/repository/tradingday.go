package repository

import "time"

// TradingDay is the UTC calendar date of ts (YYYY-MM-DD). Daily buy limits
// use the same boundary.
func TradingDay(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}
