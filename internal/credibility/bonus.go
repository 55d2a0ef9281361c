package credibility

import "time"

// BonusPolicy governs the temporary redemption bonus: a child who climbs from
// below Low to at least High earns Percent/100 extra conversion for Duration,
// lost early if the score drops back under High.
type BonusPolicy struct {
	High     int
	Low      int
	Duration time.Duration
	Percent  int
}

func DefaultBonusPolicy() BonusPolicy {
	return BonusPolicy{
		High:     95,
		Low:      60,
		Duration: 7 * 24 * time.Hour,
		Percent:  130,
	}
}

// ShouldActivate reports whether an approval that started at prior should
// switch the bonus on.
func (p BonusPolicy) ShouldActivate(st *State, prior int) bool {
	if st.BonusActive || st.Score < p.High {
		return false
	}
	return prior < p.Low || st.RecoveringFromLow
}

// ShouldDeactivate reports whether the score has fallen out of bonus range.
func (p BonusPolicy) ShouldDeactivate(st *State) bool {
	return st.BonusActive && st.Score < p.High
}

// Expired reports whether an active bonus has run past its expiry at now.
func (p BonusPolicy) Expired(st *State, now time.Time) bool {
	return st.BonusActive && st.BonusExpiry != nil && !now.Before(*st.BonusExpiry)
}

// Active reports whether the bonus applies to conversions at now.
func (p BonusPolicy) Active(st *State, now time.Time) bool {
	return st.BonusActive && !p.Expired(st, now)
}
