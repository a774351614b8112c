package risk

import "math"

type Label int

const (
	HighRisk Label = iota
	WeakZone
	Safe
	VerySafe
)

func (l Label) String() string {
	switch l {
	case HighRisk:
		return "HighRisk"
	case WeakZone:
		return "WeakZone"
	case Safe:
		return "Safe"
	case VerySafe:
		return "VerySafe"
	default:
		return "Unknown"
	}
}

// Assessment is the classification of a target price against price history.
type Assessment struct {
	Label          Label   `json:"label"`
	TouchCount     int     `json:"touchCount"`
	SizeMultiplier float64 `json:"sizeMultiplier"`
	TargetPrice    float64 `json:"targetPrice"`
}

// Tier upper bounds (inclusive) on touch count.
const (
	highRiskMaxTouches = 2
	weakZoneMaxTouches = 6
	safeMaxTouches     = 15
)

// Classify maps a touch count to its tier.
func Classify(touches int) (Label, float64) {
	switch {
	case touches <= highRiskMaxTouches:
		return HighRisk, 0.25
	case touches <= weakZoneMaxTouches:
		return WeakZone, 0.5
	case touches <= safeMaxTouches:
		return Safe, 0.75
	default:
		return VerySafe, 1.0
	}
}

// BucketKey discretizes price into a bucket of the given width. The rounded
// bucket edge is scaled by 1000 so fractional widths produce distinct keys.
func BucketKey(price, width float64) uint64 {
	return uint64(math.Round(price/width) * width * 1000)
}

// TargetPrice inflates current by profitPct percent.
func TargetPrice(current, profitPct float64) float64 {
	return current * (1 + profitPct/100)
}

// TouchCount counts samples sharing the bucket of target.
func TouchCount(samples []float64, width, target float64) int {
	key := BucketKey(target, width)
	n := 0
	for _, p := range samples {
		if BucketKey(p, width) == key {
			n++
		}
	}
	return n
}

// Assess classifies currentPrice inflated by profitPct against samples.
func Assess(samples []float64, width, currentPrice, profitPct float64) Assessment {
	target := TargetPrice(currentPrice, profitPct)
	touches := TouchCount(samples, width, target)
	label, mult := Classify(touches)
	return Assessment{
		Label:          label,
		TouchCount:     touches,
		SizeMultiplier: mult,
		TargetPrice:    target,
	}
}
