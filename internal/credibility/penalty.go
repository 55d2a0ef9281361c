package credibility

import "time"

const (
	ApprovalAward    = 2
	StreakBonusAward = 5
	StreakLength     = 10

	BasePenalty    = -10
	StackedPenalty = -15

	// StackingWindow is how recent the previous rejection must be for the
	// next one to stack.
	StackingWindow = 7 * 24 * time.Hour
)

// PenaltyFor returns the score penalty for a rejection at now, given the
// timestamp of the most recent earlier rejection (nil if there is none).
func PenaltyFor(lastRejection *time.Time, now time.Time) int {
	if lastRejection != nil && now.Sub(*lastRejection) <= StackingWindow {
		return StackedPenalty
	}
	return BasePenalty
}
