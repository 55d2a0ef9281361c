package hermes

import "time"

// Inbound subjects published by the household task service.
const (
	SubjectTaskApproved    = "household.task.approved"
	SubjectTaskRejected    = "household.task.rejected"
	SubjectRejectionUndone = "household.task.rejection_undone"
	SubjectSessionStarted  = "household.session.started"
)

// Outbound subjects.
const (
	SubjectCredibilityUpdated = "household.credibility.updated"
	SubjectCredibilityBonus   = "household.credibility.bonus"
)

// TaskReviewEvent is a parent's verdict on a child's task. The same payload
// is used for approvals, rejections and undone rejections. The verdict is
// timestamped when it is processed, so the payload carries no time.
type TaskReviewEvent struct {
	UserID     string `json:"user_id"`
	TaskID     string `json:"task_id"`
	ReviewerID string `json:"reviewer_id"`
	Notes      string `json:"notes,omitempty"`
}

// SessionEvent marks a child opening the app; it triggers a decay pass.
type SessionEvent struct {
	UserID string `json:"user_id"`
}

// CredibilityUpdated is published after every operation that changed a state.
type CredibilityUpdated struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Operation      string    `json:"operation"`
	PriorScore     int       `json:"prior_score"`
	Score          int       `json:"score"`
	Tier           string    `json:"tier"`
	ConversionRate float64   `json:"conversion_rate"`
	BonusActive    bool      `json:"bonus_active"`
	Events         []string  `json:"events"`
	Timestamp      time.Time `json:"timestamp"`
}

// BonusChanged is published when the redemption bonus switches on or off.
type BonusChanged struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Active    bool       `json:"active"`
	Expiry    *time.Time `json:"expiry,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
