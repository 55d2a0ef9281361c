package credibility

const (
	MinScore     = 0
	MaxScore     = 100
	DefaultScore = 100
)

// Clamp bounds a score to [MinScore, MaxScore]. Every score written into a
// State passes through here.
func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
