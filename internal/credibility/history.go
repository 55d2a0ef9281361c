package credibility

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a score-changing or informational history entry.
type EventKind string

const (
	EventApproved                 EventKind = "approved"
	EventRejected                 EventKind = "rejected"
	EventRejectionUndone          EventKind = "rejection_undone"
	EventStreakBonus              EventKind = "streak_bonus"
	EventDecayRecovery            EventKind = "decay_recovery"
	EventRedemptionBonusActivated EventKind = "redemption_bonus_activated"
	EventRedemptionBonusExpired   EventKind = "redemption_bonus_expired"
)

// Event is one entry in a user's credibility history.
//
// Amount is the score delta actually applied after clamping. Nominal carries
// the un-clamped award or penalty for approved, streak, rejected, undo and
// decay entries and is informational only: decay and undo of a rejection act
// on its Amount, never its Nominal. A rejection at score 4 records Amount -4
// and Nominal -10, and can give back at most 4 points.
type Event struct {
	ID             uuid.UUID `json:"id"`
	Kind           EventKind `json:"kind"`
	Amount         int       `json:"amount"`
	Nominal        int       `json:"nominal,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	ResultingScore int       `json:"resulting_score"`
	TaskID         string    `json:"task_id,omitempty"`
	ReviewerID     string    `json:"reviewer_id,omitempty"`
	Notes          string    `json:"notes,omitempty"`

	// Rejection bookkeeping.
	Decayed      bool `json:"decayed,omitempty"`
	FullyDecayed bool `json:"fully_decayed,omitempty"`
	Undone       bool `json:"undone,omitempty"`

	StreakCount int `json:"streak_count,omitempty"`
}

// History is the append-only, insertion-ordered event log for one user.
type History []Event

// Append adds ev to the end of the log.
func (h *History) Append(ev Event) {
	*h = append(*h, ev)
}

// LastRejection returns the most recent rejected event, undone or not.
func (h History) LastRejection() (Event, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Kind == EventRejected {
			return h[i], true
		}
	}
	return Event{}, false
}

// FindRejection returns the index of the most recent rejection for the
// task/reviewer pair that has not already been undone, or -1.
func (h History) FindRejection(taskID, reviewerID string) int {
	for i := len(h) - 1; i >= 0; i-- {
		ev := h[i]
		if ev.Kind == EventRejected && !ev.Undone && ev.TaskID == taskID && ev.ReviewerID == reviewerID {
			return i
		}
	}
	return -1
}

// Count returns how many events of kind are in the log.
func (h History) Count(kind EventKind) int {
	n := 0
	for _, ev := range h {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// Recent returns up to limit events, newest first. A non-positive limit
// returns the whole log.
func (h History) Recent(limit int) []Event {
	if limit <= 0 || limit > len(h) {
		limit = len(h)
	}
	out := make([]Event, 0, limit)
	for i := len(h) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h[i])
	}
	return out
}
