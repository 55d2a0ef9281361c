package credibility

import "time"

const (
	HalfDecayAge = 30 * 24 * time.Hour
	FullDecayAge = 60 * 24 * time.Hour
)

// DecayRecovery reports how many penalty points of a rejection become
// recoverable at now, and the decay flags the event carries afterwards.
// Half recovery rounds down; the full step recovers whatever remains.
// Non-rejections, undone rejections and fully decayed rejections recover nothing.
func DecayRecovery(ev Event, now time.Time) (recovered int, decayed, fully bool) {
	if ev.Kind != EventRejected || ev.Undone || ev.FullyDecayed {
		return 0, ev.Decayed, ev.FullyDecayed
	}

	penalty := abs(ev.Amount)
	age := now.Sub(ev.Timestamp)

	switch {
	case age >= FullDecayAge:
		return penalty - recoveredByDecay(ev), true, true
	case age >= HalfDecayAge && !ev.Decayed:
		return penalty / 2, true, false
	}
	return 0, ev.Decayed, false
}

// recoveredByDecay is how much of a rejection's penalty earlier decay passes
// have already returned to the score.
func recoveredByDecay(ev Event) int {
	penalty := abs(ev.Amount)
	switch {
	case ev.FullyDecayed:
		return penalty
	case ev.Decayed:
		return penalty / 2
	}
	return 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
