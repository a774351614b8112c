package strategy

import (
	"fmt"
	"math"
	"strings"
)

// Rung is one projected average-down buy.
type Rung struct {
	Level        uint32  `json:"level"`
	TriggerPrice float64 `json:"triggerPrice"`
	Size         float64 `json:"size"`
	Holding      float64 `json:"holding"`
	CostBasis    float64 `json:"costBasis"`
	ExitPrice    float64 `json:"exitPrice"`
}

type LadderParams struct {
	Holding        float64
	CostBasis      float64
	QuoteBalance   float64
	Level          uint32
	TriggerPercent float64
	ProfitPercent  float64
	GrowthFactor   float64
	Multiplier     float64
	MinNotional    float64
	MaxRungs       int
}

// DCASize is the quote notional for an average-down buy at level (1-based):
// balance × m × r × (1+r)^(level−1).
func DCASize(balance, m, r float64, level uint32) float64 {
	if level == 0 {
		level = 1
	}
	return balance * m * r * math.Pow(1+r, float64(level-1))
}

// ExitPrice is the unit price at which selling holding returns basis plus
// profitPct percent.
func ExitPrice(holding, basis, profitPct float64) float64 {
	if holding <= 0 {
		return 0
	}
	return basis * (1 + profitPct/100) / holding
}

// TriggerPrice is the unit price at which the position is down triggerPct
// percent against basis.
func TriggerPrice(holding, basis, triggerPct float64) float64 {
	if holding <= 0 {
		return 0
	}
	return basis * (1 - triggerPct/100) / holding
}

// Project walks the DCA ladder from the current position, assuming each buy
// fills exactly at its trigger price. It stops at MaxRungs, or when the next
// size falls below MinNotional or exceeds the remaining balance.
func Project(p LadderParams) ([]Rung, error) {
	if p.Holding <= 0 || p.CostBasis <= 0 {
		return nil, fmt.Errorf("no open position to project")
	}
	if p.TriggerPercent <= 0 || p.TriggerPercent >= 100 {
		return nil, fmt.Errorf("trigger percent must be in (0, 100)")
	}
	if p.GrowthFactor <= 0 {
		return nil, fmt.Errorf("growth factor must be positive")
	}
	if p.MaxRungs < 1 {
		return nil, fmt.Errorf("max rungs must be at least 1")
	}
	m := p.Multiplier
	if m <= 0 {
		m = 1
	}

	holding, basis, balance := p.Holding, p.CostBasis, p.QuoteBalance
	var ladder []Rung
	for level := p.Level + 1; len(ladder) < p.MaxRungs; level++ {
		size := DCASize(balance, m, p.GrowthFactor, level)
		if size < p.MinNotional || size > balance || size <= 0 {
			break
		}
		price := TriggerPrice(holding, basis, p.TriggerPercent)
		holding += size / price
		basis += size
		balance -= size
		ladder = append(ladder, Rung{
			Level:        level,
			TriggerPrice: price,
			Size:         size,
			Holding:      holding,
			CostBasis:    basis,
			ExitPrice:    ExitPrice(holding, basis, p.ProfitPercent),
		})
	}
	return ladder, nil
}

func FormatLadder(ladder []Rung, quote string) string {
	if len(ladder) == 0 {
		return "No DCA rungs within balance."
	}

	var b strings.Builder
	b.WriteString("┌──────────────────────────────────────────────────┐\n")
	b.WriteString("│                  DCA LADDER                      │\n")
	b.WriteString("├──────────────────────────────────────────────────┤\n")
	for _, r := range ladder {
		fmt.Fprintf(&b, "│ #%-2d @ %10.2f │ %15s │ exit %10.2f │\n",
			r.Level, r.TriggerPrice,
			fmt.Sprintf("%.2f %s", r.Size, quote),
			r.ExitPrice)
	}
	b.WriteString("└──────────────────────────────────────────────────┘")
	return b.String()
}
