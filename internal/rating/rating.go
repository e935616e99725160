package rating

import "math"

// Tier pairs a minimum magnitude with the label it earns.
type Tier struct {
	Threshold float64
	Label     string
}

// Table is an ordered list of tiers, highest threshold first.
type Table []Tier

// PriceTiers rate percentage moves of the last price.
var PriceTiers = Table{
	{Threshold: 5.0, Label: "🔥🔥🔥🔥"},
	{Threshold: 4.0, Label: "🔥🔥🔥"},
	{Threshold: 3.0, Label: "🔥🔥"},
	{Threshold: 2.0, Label: "🔥"},
}

// OpenInterestTiers rate percentage moves of futures open interest.
var OpenInterestTiers = Table{
	{Threshold: 5.0, Label: "⚡⚡⚡⚡"},
	{Threshold: 3.5, Label: "⚡⚡⚡"},
	{Threshold: 3.0, Label: "⚡⚡"},
	{Threshold: 2.5, Label: "⚡"},
}

// Rate returns the label of the first tier whose threshold is reached by the
// absolute magnitude, or an empty string when none is.
func (t Table) Rate(magnitude float64) string {
	abs := math.Abs(magnitude)
	for _, tier := range t {
		if tier.Threshold <= abs {
			return tier.Label
		}
	}
	return ""
}

// Floor is the smallest threshold of the table. A move has to reach it to count
// as a trigger.
func (t Table) Floor() float64 {
	if len(t) == 0 {
		return math.Inf(1)
	}
	floor := t[0].Threshold
	for _, tier := range t[1:] {
		floor = math.Min(floor, tier.Threshold)
	}
	return floor
}

// Triggers reports whether the magnitude reaches the floor of the table.
func (t Table) Triggers(magnitude float64) bool {
	return math.Abs(magnitude) >= t.Floor()
}
