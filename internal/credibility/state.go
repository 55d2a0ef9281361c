package credibility

import (
	"fmt"
	"time"
)

// State is the persisted credibility record for one child.
type State struct {
	Score               int        `json:"score"`
	ConsecutiveApproved int        `json:"consecutive_approved"`
	BonusActive         bool       `json:"bonus_active"`
	BonusExpiry         *time.Time `json:"bonus_expiry,omitempty"`

	// RecoveringFromLow is set once the score has been seen below the
	// redemption low threshold and cleared when the bonus activates.
	RecoveringFromLow bool `json:"recovering_from_low,omitempty"`

	History History `json:"history"`
}

// NewState returns the default state for a user seen for the first time.
func NewState() *State {
	return &State{Score: DefaultScore}
}

// Validate checks the invariants a loaded state must hold.
func (s *State) Validate() error {
	if s.Score < MinScore || s.Score > MaxScore {
		return fmt.Errorf("%w: score %d outside [%d, %d]", ErrInvariantViolation, s.Score, MinScore, MaxScore)
	}
	if s.ConsecutiveApproved < 0 {
		return fmt.Errorf("%w: negative approval streak %d", ErrInvariantViolation, s.ConsecutiveApproved)
	}
	if s.BonusActive != (s.BonusExpiry != nil) {
		return fmt.Errorf("%w: bonus active=%t without matching expiry", ErrInvariantViolation, s.BonusActive)
	}
	for i, ev := range s.History {
		if ev.ResultingScore < MinScore || ev.ResultingScore > MaxScore {
			return fmt.Errorf("%w: history[%d] resulting score %d", ErrInvariantViolation, i, ev.ResultingScore)
		}
	}
	return nil
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := *s
	if s.BonusExpiry != nil {
		exp := *s.BonusExpiry
		c.BonusExpiry = &exp
	}
	if s.History != nil {
		c.History = make(History, len(s.History))
		copy(c.History, s.History)
	}
	return &c
}

// adjust applies delta through Clamp and returns the change actually applied.
func (s *State) adjust(delta int) int {
	prior := s.Score
	s.Score = Clamp(s.Score + delta)
	return s.Score - prior
}
