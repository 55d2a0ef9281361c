package credibility

import (
	"fmt"
	"sort"
)

const (
	TierExcellent = "Excellent"
	TierGood      = "Good"
	TierFair      = "Fair"
	TierPoor      = "Poor"
	TierVeryPoor  = "Very Poor"
)

// Tier is a named score band. Min and Max are inclusive. Percent is the
// conversion multiplier expressed in hundredths (120 == 1.2x).
type Tier struct {
	Name    string `json:"name"`
	Min     int    `json:"min"`
	Max     int    `json:"max"`
	Percent int    `json:"percent"`
}

// Multiplier returns the tier's base conversion multiplier.
func (t Tier) Multiplier() float64 {
	return float64(t.Percent) / 100
}

func (t Tier) Contains(score int) bool {
	return score >= t.Min && score <= t.Max
}

// DefaultTiers is the household conversion table.
var DefaultTiers = []Tier{
	{Name: TierExcellent, Min: 90, Max: 100, Percent: 120},
	{Name: TierGood, Min: 75, Max: 89, Percent: 100},
	{Name: TierFair, Min: 60, Max: 74, Percent: 80},
	{Name: TierPoor, Min: 40, Max: 59, Percent: 50},
	{Name: TierVeryPoor, Min: 0, Max: 39, Percent: 30},
}

// TierTable is a validated set of tiers that partitions [MinScore, MaxScore].
type TierTable struct {
	tiers []Tier // ascending by Min
}

// NewTierTable validates tiers and builds a lookup table. The tiers must cover
// every score from MinScore to MaxScore exactly once.
func NewTierTable(tiers []Tier) (*TierTable, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: empty tier table", ErrInvariantViolation)
	}

	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	next := MinScore
	for _, t := range sorted {
		if t.Percent <= 0 {
			return nil, fmt.Errorf("%w: tier %q has non-positive multiplier", ErrInvariantViolation, t.Name)
		}
		if t.Max < t.Min {
			return nil, fmt.Errorf("%w: tier %q has inverted range %d-%d", ErrInvariantViolation, t.Name, t.Min, t.Max)
		}
		if t.Min < next {
			return nil, fmt.Errorf("%w: tier %q overlaps at score %d", ErrInvariantViolation, t.Name, t.Min)
		}
		if t.Min > next {
			return nil, fmt.Errorf("%w: no tier covers score %d", ErrInvariantViolation, next)
		}
		next = t.Max + 1
	}
	if next != MaxScore+1 {
		return nil, fmt.Errorf("%w: tiers end at %d, want %d", ErrInvariantViolation, next-1, MaxScore)
	}

	return &TierTable{tiers: sorted}, nil
}

// TierFor returns the tier containing score. Out-of-range scores are clamped first.
func (tt *TierTable) TierFor(score int) Tier {
	score = Clamp(score)
	for _, t := range tt.tiers {
		if t.Contains(score) {
			return t
		}
	}
	// Unreachable for a validated table.
	return tt.tiers[0]
}

// NextTierAbove returns the tier with the smallest lower bound strictly greater
// than score. ok is false when score is already in the top tier.
func (tt *TierTable) NextTierAbove(score int) (Tier, bool) {
	for _, t := range tt.tiers {
		if t.Min > score {
			return t, true
		}
	}
	return Tier{}, false
}

// Tiers returns the table from highest to lowest band.
func (tt *TierTable) Tiers() []Tier {
	out := make([]Tier, 0, len(tt.tiers))
	for i := len(tt.tiers) - 1; i >= 0; i-- {
		out = append(out, tt.tiers[i])
	}
	return out
}
